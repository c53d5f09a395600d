package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	solutionFile = "solution.csv"
)

// ErrNotFound is returned for an unknown run.
var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes what was simulated.
type RunInfo struct {
	Model      string
	Preset     string
	Params     string
	Experiment string
	Steps      []string
}

type StepRecord struct {
	Index       int      `json:"index"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	Samples     int      `json:"samples"`
	Duration    float64  `json:"duration_s"`
	Events      []string `json:"events,omitempty"`
	Homotopy    int      `json:"homotopy,omitempty"`
	ElapsedMs   float64  `json:"elapsed_ms"`
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Preset     string             `json:"preset,omitempty"`
	Params     string             `json:"params,omitempty"`
	Experiment string             `json:"experiment,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Success    bool               `json:"success"`
	Steps      []StepRecord       `json:"steps"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes metadata.json and solution.csv for the stitched solution
// and returns the run id.
func (s *Store) Save(info RunInfo, cycle *sim.CycleSolution) (string, error) {
	if cycle == nil {
		return "", fmt.Errorf("%w: nothing to save", dynamo.ErrConfig)
	}
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", info.Model, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := Describe(info, cycle)
	meta.ID = runID
	meta.Timestamp = now

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeSolution(filepath.Join(runDir, solutionFile), cycle); err != nil {
		return "", err
	}
	return runID, nil
}

// Describe summarizes a cycle without writing it.
func Describe(info RunInfo, cycle *sim.CycleSolution) RunMetadata {
	meta := RunMetadata{
		Model:      info.Model,
		Preset:     info.Preset,
		Params:     info.Params,
		Experiment: info.Experiment,
		Success:    cycle.Success(),
		Metrics:    cycle.Metrics,
	}
	for k, sol := range cycle.Steps {
		rec := StepRecord{
			Index:     k,
			Status:    sol.Status.String(),
			Message:   sol.Message,
			Samples:   len(sol.T),
			Homotopy:  sol.Homotopy,
			ElapsedMs: float64(sol.Elapsed.Microseconds()) / 1000,
		}
		if k < len(info.Steps) {
			rec.Description = info.Steps[k]
		}
		if n := len(sol.T); n > 0 {
			rec.Duration = sol.T[n-1]
		}
		if sol.Event != nil {
			for _, l := range sol.Event.Limits {
				rec.Events = append(rec.Events, l.String())
			}
		}
		meta.Steps = append(meta.Steps, rec)
	}
	return meta
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

func writeSolution(path string, cycle *sim.CycleSolution) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := append([]string{"step"}, sim.ObservableNames...)
	if err := w.Write(header); err != nil {
		return err
	}

	for i, obs := range cycle.Observables {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(cycle.StepIndex[i]))
		for _, v := range obs.Values() {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
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
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Solution is a stored solution.csv: one row per sample.
type Solution struct {
	Columns   []string
	StepIndex []int
	Rows      [][]float64
}

// Series returns one column.
func (sol *Solution) Series(name string) ([]float64, error) {
	col := -1
	for i, c := range sol.Columns {
		if c == name {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownObservable, name)
	}
	out := make([]float64, len(sol.Rows))
	for i, row := range sol.Rows {
		out[i] = row[col]
	}
	return out, nil
}

func (s *Store) LoadSolution(runID string) (*Solution, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, solutionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty solution file", runID)
	}

	sol := &Solution{Columns: records[0][1:]}
	for i, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", runID, i+1, err)
		}
		row := make([]float64, len(record)-1)
		for j, field := range record[1:] {
			if row[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", runID, i+1, err)
			}
		}
		sol.StepIndex = append(sol.StepIndex, step)
		sol.Rows = append(sol.Rows, row)
	}
	return sol, nil
}
