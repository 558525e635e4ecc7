package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

var axisNames = []string{"roll", "pitch", "yaw"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was configured.
type RunInfo struct {
	Model      string  `json:"model"`
	Integrator string  `json:"integrator"`
	Controller string  `json:"controller"`
	Preset     string  `json:"preset,omitempty"`
	Dt         float64 `json:"dt"`
	Duration   float64 `json:"duration"`
	Seed       int64   `json:"seed"`
	Horizon    int     `json:"horizon,omitempty"`
	Step       float64 `json:"step,omitempty"`
	WarmStart  string  `json:"warm_start,omitempty"`

	// Setpoint is the initial desired attitude.
	Setpoint []float64 `json:"setpoint,omitempty"`
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RunInfo
	Steps   int                `json:"steps"`
	Faults  int                `json:"faults"`
	Metrics map[string]float64 `json:"metrics"`
}

// Run is a loaded trajectory.
type Run struct {
	Times    []float64
	States   [][]float64
	Controls [][]float64
}

func (s *Store) Save(info RunInfo, result *dynamo.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%s_%d", info.Model, info.Controller, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Timestamp: now,
		RunInfo:   info,
		Steps:     result.StepsTaken,
		Faults:    result.Faults,
		Metrics:   result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result); err != nil {
		return "", err
	}
	return runID, nil
}

func stateHeader(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		if i < len(axisNames) {
			out[i] = prefix + axisNames[i]
		} else {
			out[i] = fmt.Sprintf("%s%d", prefix, i)
		}
	}
	return out
}

// WriteCSV writes one row per recorded time: the attitude, then the control
// applied from that time. The last row has no control and repeats zeros.
func WriteCSV(f io.Writer, result *dynamo.Result) error {
	w := csv.NewWriter(f)
	defer w.Flush()

	if len(result.States) == 0 {
		return nil
	}

	numStates := len(result.States[0])
	numControls := 0
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
	}

	header := append([]string{"time"}, stateHeader(numStates, "")...)
	header = append(header, stateHeader(numControls, "u_")...)
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{strconv.FormatFloat(result.Times[i], 'f', 6, 64)}
		for _, val := range result.States[i] {
			row = append(row, strconv.FormatFloat(val, 'g', 10, 64))
		}
		for j := 0; j < numControls; j++ {
			val := 0.0
			if i < len(result.Controls) && j < len(result.Controls[i]) {
				val = result.Controls[i][j]
			}
			row = append(row, strconv.FormatFloat(val, 'g', 10, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// List returns stored runs, newest first.
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
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadRun reads the trajectory of a stored run, splitting attitude and
// control columns by their header names.
func (s *Store) LoadRun(runID string) (*Run, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	run := &Run{}
	if len(records) < 2 {
		return run, nil
	}

	numStates := 0
	for _, name := range records[0][1:] {
		if len(name) >= 2 && name[:2] == "u_" {
			break
		}
		numStates++
	}

	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		vals := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s: bad value %q: %w", runID, field, err)
			}
			vals[j] = v
		}
		run.Times = append(run.Times, vals[0])
		run.States = append(run.States, vals[1:1+numStates])
		run.Controls = append(run.Controls, vals[1+numStates:])
	}
	return run, nil
}

// Result converts a loaded run back to a simulation result.
func (r *Run) Result(meta *RunMetadata) *dynamo.Result {
	res := &dynamo.Result{Times: r.Times, Metrics: map[string]float64{}}
	for _, st := range r.States {
		res.States = append(res.States, dynamo.State(st))
	}
	for i, u := range r.Controls {
		if i == len(r.Controls)-1 {
			break
		}
		res.Controls = append(res.Controls, dynamo.Control(u))
	}
	if meta != nil {
		res.Metrics = meta.Metrics
		res.StepsTaken = meta.Steps
		res.Faults = meta.Faults
	}
	return res
}
