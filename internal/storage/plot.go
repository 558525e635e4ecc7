package storage

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
)

// Trajectory packs times and one row per sample into a matrix whose first
// column is time.
func Trajectory(times []float64, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty trajectory")
	}
	n := len(rows)
	if len(times) < n {
		n = len(times)
	}
	cols := len(rows[0])
	m := mat.NewDense(n, cols+1, nil)
	for i := 0; i < n; i++ {
		if len(rows[i]) != cols {
			return nil, fmt.Errorf("sample %d has %d columns, want %d", i, len(rows[i]), cols)
		}
		m.Set(i, 0, times[i])
		for j, v := range rows[i] {
			m.Set(i, j+1, v)
		}
	}
	return m, nil
}

func columnPoints(m *mat.Dense, col int) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, 0)
		pts[i].Y = m.At(i, col)
	}
	return pts
}

func linePlot(title, ylabel string, m *mat.Dense, names []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	_, cols := m.Dims()
	for j := 1; j < cols; j++ {
		line, err := plotter.NewLine(columnPoints(m, j))
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(j - 1)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(names[j-1], line)
	}
	return p, nil
}

// NewAttitudePlot plots attitude against time, one line per axis.
func NewAttitudePlot(result *dynamo.Result) (*plot.Plot, error) {
	rows := make([][]float64, len(result.States))
	for i, s := range result.States {
		rows[i] = s
	}
	m, err := Trajectory(result.Times, rows)
	if err != nil {
		return nil, err
	}
	_, cols := m.Dims()
	return linePlot("Attitude", "angle (rad)", m, stateHeader(cols-1, ""))
}

// NewControlPlot plots the applied control against time.
func NewControlPlot(result *dynamo.Result) (*plot.Plot, error) {
	rows := make([][]float64, len(result.Controls))
	for i, u := range result.Controls {
		rows[i] = u
	}
	m, err := Trajectory(result.Times, rows)
	if err != nil {
		return nil, err
	}
	_, cols := m.Dims()
	return linePlot("Control", "command", m, stateHeader(cols-1, "u_"))
}

// ExportPNG writes the attitude plot to path and, when controls were
// recorded, the control plot next to it with a _control suffix.
func ExportPNG(path string, result *dynamo.Result) ([]string, error) {
	p, err := NewAttitudePlot(result)
	if err != nil {
		return nil, err
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return nil, err
	}
	written := []string{path}

	if len(result.Controls) == 0 {
		return written, nil
	}
	cp, err := NewControlPlot(result)
	if err != nil {
		return written, err
	}
	ctrlPath := suffixPath(path, "_control")
	if err := cp.Save(8*vg.Inch, 4*vg.Inch, ctrlPath); err != nil {
		return written, err
	}
	return append(written, ctrlPath), nil
}

func suffixPath(path, suffix string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i] + suffix + path[i:]
		}
	}
	return path + suffix
}
