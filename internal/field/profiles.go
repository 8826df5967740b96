package field

import "github.com/san-kum/fieldcanon/internal/dynamo"

// Profile names the kind of input being compiled.
type Profile string

const (
	ProfileScript        Profile = "SCRIPT"
	ProfileModelArtifact Profile = "MODEL_ARTIFACT"
	ProfileConfig        Profile = "CONFIG"
	ProfileGraph         Profile = "GRAPH"
	ProfileLog           Profile = "LOG"
	ProfileReingest      Profile = "FNO_REINGEST"

	DefaultProfile = ProfileScript
)

// ProfileParams seeds the tension decomposition and curvature.
type ProfileParams struct {
	BaseTension      float64
	SyntaxWeight     float64
	Curvature        float64
	SemanticFraction float64
}

var profiles = map[Profile]ProfileParams{
	ProfileScript:        {BaseTension: 0.1, SyntaxWeight: 0.8, Curvature: 5.0, SemanticFraction: 0.1},
	ProfileModelArtifact: {BaseTension: 0.2, SyntaxWeight: 0.4, Curvature: 8.0, SemanticFraction: 0.5},
	ProfileConfig:        {BaseTension: 0.05, SyntaxWeight: 0.2, Curvature: 2.0, SemanticFraction: 0.2},
	ProfileGraph:         {BaseTension: 0.15, SyntaxWeight: 0.1, Curvature: 4.0, SemanticFraction: 0.3},
	ProfileLog:           {BaseTension: 0.02, SyntaxWeight: 0.9, Curvature: 1.0, SemanticFraction: 0.05},
	ProfileReingest:      {BaseTension: 1e-3, SyntaxWeight: 0.0, Curvature: 1.0, SemanticFraction: 0.9},
}

var profileOrder = []Profile{
	ProfileScript, ProfileModelArtifact, ProfileConfig, ProfileGraph, ProfileLog, ProfileReingest,
}

// ParseProfile never fails: unknown names fall back to DefaultProfile.
func ParseProfile(name string) Profile {
	p := Profile(name)
	if p.Valid() {
		return p
	}
	return DefaultProfile
}

func (p Profile) Valid() bool {
	_, ok := profiles[p]
	return ok
}

func (p Profile) Params() ProfileParams {
	if params, ok := profiles[p]; ok {
		return params
	}
	return profiles[DefaultProfile]
}

func ListProfiles() []Profile {
	out := make([]Profile, len(profileOrder))
	copy(out, profileOrder)
	return out
}

// Seed builds the initial state for a profile with the given input energy.
func (p Profile) Seed(energy float64, cfg dynamo.Config) dynamo.State {
	params := p.Params()
	s := dynamo.State{
		TensionSyntax:   params.BaseTension * params.SyntaxWeight,
		TensionSemantic: params.BaseTension * params.SemanticFraction,
		Curvature:       dynamo.Clamp(params.Curvature, cfg.CurvatureMin, cfg.CurvatureMax),
		Energy:          energy,
		Coherence:       dynamo.InitialCoherence,
	}
	s.TensionStructural = params.BaseTension - s.TensionSyntax - s.TensionSemantic
	s.Resum()
	return s
}
