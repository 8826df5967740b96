package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// ExportData is the single-document form of a compile run.
type ExportData struct {
	Input      string               `json:"input"`
	Identifier string               `json:"identifier"`
	Profile    string               `json:"profile"`
	Config     dynamo.Config        `json:"config"`
	Status     dynamo.Status        `json:"status"`
	Steps      int                  `json:"steps"`
	Phases     []dynamo.PhaseResult `json:"phases"`
	Final      dynamo.State         `json:"final"`
	Trace      []dynamo.State       `json:"trace"`
	Metrics    map[string]float64   `json:"metrics"`
	Rendered   string               `json:"rendered"`
}

func NewExportData(run Run, rendered string) ExportData {
	return ExportData{
		Input:      run.Input,
		Identifier: run.Identifier,
		Profile:    run.Profile,
		Config:     run.Config,
		Status:     run.Result.Status,
		Steps:      run.Result.StepsTaken,
		Phases:     run.Result.Phases,
		Final:      run.Result.Final,
		Trace:      run.Result.Trace,
		Metrics:    run.Result.Metrics,
		Rendered:   rendered,
	}
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteExport(file, data)
}

func WriteExport(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
