package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/mpc"
)

const historyCapacity = 300

var axisLabels = []string{"roll", "pitch", "yaw"}

type TickMsg time.Time

type statsSource interface {
	Stats() mpc.Stats
}

type resetter interface{ Reset() }

// Loop is what the live view drives: a plant advanced by an integrator
// under a controller, tracking a setpoint.
type Loop struct {
	Plant      dynamo.System
	Integrator dynamo.Integrator
	Controller dynamo.Controller
	Setpoint   mpc.SetpointSource
	Initial    dynamo.State
	Dt         float64
	Duration   float64
	Name       string
}

// Model contains the loop state and the history buffers for the charts.
type Model struct {
	loop    Loop
	state   dynamo.State
	u       dynamo.Control
	desired dynamo.State
	t       float64
	fault   error

	running  bool
	done     bool
	showHelp bool

	attitude [dynamo.Dim][]float64
	command  [dynamo.Dim][]float64

	params        map[string]float64
	initialParams map[string]float64
	paramKeys     []string
	selected      int
}

func NewModel(loop Loop) Model {
	params := make(map[string]float64)
	if c, ok := loop.Plant.(dynamo.Configurable); ok {
		for k, v := range c.GetParams() {
			params[k] = v
		}
	}
	keys := make([]string, 0, len(params))
	initialParams := make(map[string]float64, len(params))
	for k, v := range params {
		keys = append(keys, k)
		initialParams[k] = v
	}
	sort.Strings(keys)

	m := Model{
		loop:          loop,
		running:       true,
		params:        params,
		initialParams: initialParams,
		paramKeys:     keys,
	}
	m.reset()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "tab":
			m.cycleParam()
		case "up", "k":
			m.adjustParam(1.05)
		case "down", "j":
			m.adjustParam(0.95)
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && !m.done {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) step() {
	if m.loop.Duration > 0 && m.t >= m.loop.Duration-1e-9 {
		m.done = true
		return
	}
	if m.loop.Setpoint != nil {
		m.desired = m.loop.Setpoint.Setpoint(m.t, m.state)
	}
	m.u = m.loop.Controller.Compute(m.state, m.t)
	if fr, ok := m.loop.Controller.(dynamo.FaultReporter); ok {
		m.fault = fr.LastFault()
	}
	if obs, ok := m.loop.Plant.(dynamo.Observer); ok {
		obs.OnStep(m.state, m.u, m.t)
	}

	m.state = m.loop.Integrator.Step(m.loop.Plant, m.state, m.u, m.t, m.loop.Dt)
	m.t += m.loop.Dt
	if !m.state.IsValid() {
		m.done = true
	}

	for i := 0; i < dynamo.Dim; i++ {
		m.attitude[i] = appendBounded(m.attitude[i], m.state[i])
		if i < len(m.u) {
			m.command[i] = appendBounded(m.command[i], m.u[i])
		}
	}
}

func appendBounded(buf []float64, v float64) []float64 {
	buf = append(buf, v)
	if len(buf) > historyCapacity {
		buf = buf[1:]
	}
	return buf
}

func (m *Model) reset() {
	m.t = 0
	m.done = false
	m.fault = nil
	m.state = m.loop.Initial.Clone()
	m.u = make(dynamo.Control, dynamo.Dim)
	m.desired = m.loop.Initial.Clone()
	for i := range m.attitude {
		m.attitude[i] = m.attitude[i][:0]
		m.command[i] = m.command[i][:0]
	}
	if r, ok := m.loop.Plant.(resetter); ok {
		r.Reset()
	}
	if r, ok := m.loop.Controller.(resetter); ok {
		r.Reset()
	}
	for k, v := range m.initialParams {
		m.params[k] = v
		if c, ok := m.loop.Plant.(dynamo.Configurable); ok {
			_ = c.SetParam(k, v)
		}
	}
}

func (m *Model) cycleParam() {
	if len(m.paramKeys) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.paramKeys)
}

func (m *Model) adjustParam(factor float64) {
	if len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	newVal := m.params[key] * factor
	if c, ok := m.loop.Plant.(dynamo.Configurable); ok {
		if err := c.SetParam(key, newVal); err != nil {
			return
		}
	}
	m.params[key] = newVal
}

// Time returns the simulated time.
func (m Model) Time() float64 { return m.t }

func (m Model) State() dynamo.State { return m.state.Clone() }

func (m Model) Running() bool { return m.running }

func (m Model) Done() bool { return m.done }

func (m Model) chart(series [dynamo.Dim][]float64, caption string) string {
	if len(series[0]) < 2 {
		return ""
	}
	data := make([][]float64, 0, dynamo.Dim)
	for _, s := range series {
		data = append(data, s)
	}
	return asciigraph.PlotMany(data,
		asciigraph.Height(6),
		asciigraph.Width(50),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green, asciigraph.Blue),
	)
}

func (m Model) View() string {
	st := themeStyles(CurrentTheme)

	status := st.ok.Render("RUNNING")
	switch {
	case m.done:
		status = st.warn.Render("DONE")
	case !m.running:
		status = st.warn.Render("PAUSED")
	}
	if m.fault != nil {
		status += "  " + st.bad.Render("FAIL-SAFE")
	}

	var charts strings.Builder
	if c := m.chart(m.attitude, "attitude (rad): roll red, pitch green, yaw blue"); c != "" {
		charts.WriteString(st.graph.Render(c) + "\n")
	}
	if c := m.chart(m.command, "command"); c != "" {
		charts.WriteString(st.graph.Render(c))
	}

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.loop.Name)) + "\n")
	s.WriteString(status + "\n\n")
	s.WriteString(st.label.Render("Time") + st.value.Render(fmt.Sprintf("%.2fs", m.t)) + "\n")
	if m.loop.Duration > 0 {
		s.WriteString(st.label.Render("Progress") + st.value.Render(ProgressBar(m.t/m.loop.Duration, 20)) + "\n")
	}
	s.WriteString("\n")
	for i, name := range axisLabels {
		line := fmt.Sprintf("%+.4f → %+.4f  u %+7.3f", m.state[i], m.desired[i], m.u[i])
		s.WriteString(st.label.Render(name) + st.value.Render(line) + "\n")
	}
	s.WriteString(st.label.Render("Error") + st.value.Render(fmt.Sprintf("%.4f", errorNorm(m.state, m.desired))) + "\n")

	if src, ok := m.loop.Controller.(statsSource); ok {
		stats := src.Stats()
		rate := 0.0
		if stats.Cycles > 0 {
			rate = float64(stats.Converged) / float64(stats.Cycles)
		}
		s.WriteString("\nSOLVER\n")
		s.WriteString(st.label.Render("Cycles") + st.value.Render(fmt.Sprintf("%d", stats.Cycles)) + "\n")
		s.WriteString(st.label.Render("Converged") + st.value.Render(fmt.Sprintf("%.0f%%", 100*rate)) + "\n")
		s.WriteString(st.label.Render("Timeouts") + st.value.Render(fmt.Sprintf("%d", stats.Timeouts)) + "\n")
	}

	s.WriteString("\nPLANT\n")
	if len(m.paramKeys) == 0 {
		s.WriteString(st.label.Render("  (none)") + "\n")
	}
	for i, k := range m.paramKeys {
		line := fmt.Sprintf("%-12s %.3f", k, m.params[k])
		if i == m.selected {
			s.WriteString(st.active.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.value.Render(line) + "\n")
		}
	}
	s.WriteString(st.help.Render("SP:Pause R:Reset Q:Quit ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, charts.String(), st.panel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

func errorNorm(x, desired dynamo.State) float64 {
	sum := 0.0
	for i := range x {
		if i < len(desired) {
			d := x[i] - desired[i]
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reset                    ║
║  Q        - Quit                     ║
║  Tab      - Cycle plant parameters   ║
║  Up/K     - Increase parameter (+5%) ║
║  Down/J   - Decrease parameter (-5%) ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`

// Run starts the live view on the terminal and blocks until the user quits.
func Run(loop Loop) error {
	p := tea.NewProgram(NewModel(loop), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
