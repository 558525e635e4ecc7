package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

func sampleResult() *dynamo.Result {
	return &dynamo.Result{
		States: []dynamo.State{
			{0, 0, 0},
			{0.1, -0.01, 0.002},
			{0.2, -0.015, 0.001},
		},
		Controls: []dynamo.Control{
			{10, -1, 0.5},
			{0, 0.25, -0.5},
		},
		Times:      []float64{0, 0.1, 0.2},
		Metrics:    map[string]float64{"tracking_rms": 0.12},
		StepsTaken: 2,
		Faults:     1,
	}
}

func TestStoreSaveLoad(t *testing.T) {
	assert := assert.New(t)

	st := New(t.TempDir())
	assert.NoError(st.Init())

	info := RunInfo{Model: "rate_damped", Integrator: "rk4", Controller: "mpc", Dt: 0.1, Duration: 0.2, Seed: 42, Horizon: 10}
	runID, err := st.Save(info, sampleResult())
	assert.NoError(err)
	assert.NotEmpty(runID)

	meta, err := st.Load(runID)
	assert.NoError(err)
	assert.Equal("rate_damped", meta.Model)
	assert.Equal(int64(42), meta.Seed)
	assert.Equal(10, meta.Horizon)
	assert.Equal(1, meta.Faults)
	assert.Equal(0.12, meta.Metrics["tracking_rms"])

	run, err := st.LoadRun(runID)
	assert.NoError(err)
	assert.Equal([]float64{0, 0.1, 0.2}, run.Times)
	assert.Len(run.States, 3)
	assert.Equal([]float64{0.1, -0.01, 0.002}, run.States[1])
	assert.Equal([]float64{10, -1, 0.5}, run.Controls[0])
	assert.Equal([]float64{0, 0, 0}, run.Controls[2])

	res := run.Result(meta)
	assert.Len(res.Controls, 2)
	assert.Equal(2, res.StepsTaken)
}

func TestStoreList(t *testing.T) {
	assert := assert.New(t)

	st := New(filepath.Join(t.TempDir(), "runs"))
	runs, err := st.List()
	assert.NoError(err)
	assert.Empty(runs)

	assert.NoError(st.Init())
	_, err = st.Save(RunInfo{Model: "a", Controller: "pid"}, sampleResult())
	assert.NoError(err)
	_, err = st.Save(RunInfo{Model: "b", Controller: "mpc"}, sampleResult())
	assert.NoError(err)
	assert.NoError(os.Mkdir(filepath.Join(st.baseDir, "junk"), 0755))

	runs, err = st.List()
	assert.NoError(err)
	assert.Len(runs, 2)
	assert.Equal("b", runs[0].Model)
}

func TestEncodeJSON(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	assert.NoError(EncodeJSON(&buf, RunInfo{Model: "coupled", Controller: "mpc"}, sampleResult()))

	var data ExportData
	assert.NoError(json.Unmarshal(buf.Bytes(), &data))
	assert.Equal("coupled", data.Model)
	assert.Len(data.States, 3)
	assert.Len(data.Controls, 2)
	assert.Equal(2, data.Steps)
}

func TestExportFiles(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	assert.NoError(ExportJSON(filepath.Join(dir, "run.json"), RunInfo{Model: "x"}, sampleResult()))
	assert.NoError(ExportCSV(filepath.Join(dir, "run.csv"), sampleResult()))

	data, err := os.ReadFile(filepath.Join(dir, "run.csv"))
	assert.NoError(err)
	assert.Contains(string(data), "time,roll,pitch,yaw,u_roll,u_pitch,u_yaw")

	written, err := ExportPNG(filepath.Join(dir, "run.png"), sampleResult())
	assert.NoError(err)
	assert.Equal([]string{filepath.Join(dir, "run.png"), filepath.Join(dir, "run_control.png")}, written)
	for _, p := range written {
		info, err := os.Stat(p)
		assert.NoError(err)
		assert.Greater(info.Size(), int64(0))
	}
}

func TestTrajectory(t *testing.T) {
	assert := assert.New(t)

	m, err := Trajectory([]float64{0, 1}, [][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.NoError(err)
	r, c := m.Dims()
	assert.Equal(2, r)
	assert.Equal(4, c)
	assert.Equal(5.0, m.At(1, 2))

	_, err = Trajectory(nil, nil)
	assert.Error(err)
	_, err = Trajectory([]float64{0, 1}, [][]float64{{1, 2}, {3}})
	assert.Error(err)

	assert.Equal("a/b_control.png", suffixPath("a/b.png", "_control"))
	assert.Equal("a.d/b_control", suffixPath("a.d/b", "_control"))
}
