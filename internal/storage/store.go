package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/clock"
	"github.com/san-kum/fieldcanon/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
	auditFile    = "audit.json"
)

type Store struct {
	baseDir string
	clock   clock.Clock
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, clock: clock.Real{}}
}

// WithClock sets the clock used for run timestamps.
func (s *Store) WithClock(c clock.Clock) *Store {
	s.clock = c
	return s
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string               `json:"id"`
	Input      string               `json:"input"`
	Identifier string               `json:"identifier"`
	Profile    string               `json:"profile"`
	Timestamp  time.Time            `json:"timestamp"`
	Config     dynamo.Config        `json:"config"`
	Status     dynamo.Status        `json:"status"`
	Steps      int                  `json:"steps"`
	Phases     []dynamo.PhaseResult `json:"phases"`
	Final      dynamo.State         `json:"final"`
	Metrics    map[string]float64   `json:"metrics"`
	TrailID    string               `json:"trail_id,omitempty"`
}

// Run is what Save persists: the compile result plus, optionally, the audit
// trail of the governed session that followed.
type Run struct {
	Input      string
	Identifier string
	Profile    string
	Config     dynamo.Config
	Result     *dynamo.Result
	Audit      *audit.Export
}

func (s *Store) Save(run Run) (string, error) {
	if run.Result == nil {
		return "", fmt.Errorf("save run: no result")
	}
	runID := fmt.Sprintf("%s_%s", strings.ToLower(run.Profile), uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Input:      run.Input,
		Identifier: run.Identifier,
		Profile:    run.Profile,
		Timestamp:  s.clock.Now(),
		Config:     run.Config,
		Status:     run.Result.Status,
		Steps:      run.Result.StepsTaken,
		Phases:     run.Result.Phases,
		Final:      run.Result.Final,
		Metrics:    run.Result.Metrics,
	}
	if run.Audit != nil {
		meta.TrailID = run.Audit.ID
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeTrace(filepath.Join(runDir, traceFile), run.Result.Trace); err != nil {
		return "", err
	}
	if run.Audit != nil {
		if err := writeJSON(filepath.Join(runDir, auditFile), run.Audit); err != nil {
			return "", err
		}
	}
	return runID, nil
}

// SaveAudit writes or replaces the audit export of an existing run.
func (s *Store) SaveAudit(runID string, e audit.Export) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	meta.TrailID = e.ID
	runDir := filepath.Join(s.baseDir, runID)
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, auditFile), e)
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadAudit reads and re-verifies the run's audit export.
func (s *Store) LoadAudit(runID string) (audit.Export, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, auditFile))
	if err != nil {
		return audit.Export{}, err
	}
	defer f.Close()
	return audit.ReadExport(f)
}

var traceHeader = []string{
	"step", "tension", "tension_syntax", "tension_semantic", "tension_structural",
	"curvature", "phase", "energy", "coherence",
}

func writeTrace(path string, trace []dynamo.State) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(traceHeader); err != nil {
		return err
	}
	for _, x := range trace {
		fields := x.Fields()
		row := []string{strconv.Itoa(x.Step)}
		for _, name := range traceHeader[1:] {
			row = append(row, strconv.FormatFloat(fields[name], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) LoadTrace(runID string) ([]dynamo.State, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(traceHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []dynamo.State{}, nil
	}

	trace := make([]dynamo.State, 0, len(records)-1)
	for i, record := range records[1:] {
		var vals [9]float64
		for j, cell := range record {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("trace row %d column %s: %w", i+1, traceHeader[j], err)
			}
			vals[j] = v
		}
		trace = append(trace, dynamo.State{
			Step:              int(vals[0]),
			Tension:           vals[1],
			TensionSyntax:     vals[2],
			TensionSemantic:   vals[3],
			TensionStructural: vals[4],
			Curvature:         vals[5],
			Phase:             vals[6],
			Energy:            vals[7],
			Coherence:         vals[8],
		})
	}
	return trace, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
