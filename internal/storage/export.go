package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
)

type ExportData struct {
	Metadata  *RunMetadata         `json:"metadata"`
	StepIndex []int                `json:"step_index"`
	Series    map[string][]float64 `json:"series"`
}

// Export writes a run and its solution as one JSON document.
func (s *Store) Export(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	sol, err := s.LoadSolution(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		Metadata:  meta,
		StepIndex: sol.StepIndex,
		Series:    make(map[string][]float64, len(sol.Columns)),
	}
	for _, c := range sol.Columns {
		if data.Series[c], err = sol.Series(c); err != nil {
			return err
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportFile writes Export to path.
func (s *Store) ExportFile(runID, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.Export(runID, file)
}

// WritePattern writes a Jacobian sparsity pattern as rows of 0 and 1.
func WritePattern(w io.Writer, p mat.Matrix) error {
	cw := csv.NewWriter(w)
	rows, cols := p.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = "0"
			if p.At(i, j) != 0 {
				record[j] = "1"
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
