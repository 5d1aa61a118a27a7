package viz

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/message"
	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/settings"
	"github.com/san-kum/trisim/internal/sim"
	"github.com/san-kum/trisim/internal/storage"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	width         = 60
	height        = 22
	trailCapacity = 240
	energyHistory = 40
	panelWidth    = 52
)

type TickMsg time.Time

type startedMsg struct{ err error }

// Model drives a sim.Driver from Bubble Tea tick messages.
type Model struct {
	driver   *sim.Driver
	store    *storage.TemplateStore
	settings settings.Settings
	interval time.Duration

	canvas   *Canvas
	origin   r2.Vec
	scale    float64
	palettes [physics.NumBodies]Palette
	trails   [physics.NumBodies][]r2.Vec
	energy   []float64

	format     settings.NumberFormat
	showTrails bool
	showCOG    bool
	starting   bool
	notice     *message.UserMessage
}

// NewModel prepares a view of s. The run is started by Init; store may be
// nil, which disables saving.
func NewModel(d *sim.Driver, s settings.Settings, store *storage.TemplateStore, interval time.Duration) Model {
	m := Model{
		driver:     d,
		store:      store,
		settings:   s,
		interval:   interval,
		canvas:     NewCanvas(width, height),
		format:     s.Format,
		showTrails: s.Trails,
		showCOG:    s.CenterOfGravity,
		starting:   true,
	}
	for i, b := range s.Bodies {
		m.palettes[i] = NewPalette(b, i)
		m.trails[i] = make([]r2.Vec, 0, trailCapacity)
	}
	m.fit(s.Bodies)
	return m
}

// fit centers the view on the initial center of mass and scales it so the
// starting configuration fills two thirds of the canvas.
func (m *Model) fit(bodies [physics.NumBodies]physics.Body) {
	sys := physics.NewThreeBodyFromBodies(bodies)
	m.origin = sys.CenterOfMass(physics.StateFromBodies(bodies))

	extent := 0.0
	for _, b := range bodies {
		extent = math.Max(extent, r2.Norm(r2.Sub(b.Position, m.origin)))
	}
	if extent == 0 || math.IsNaN(extent) {
		extent = 1
	}
	half := float64(min(width*2, height*4)) / 2
	m.scale = half / (1.5 * extent)
}

func (m Model) project(p r2.Vec) (int, int) {
	d := r2.Scale(m.scale, r2.Sub(p, m.origin))
	return width + int(math.Round(d.X)), height*2 - int(math.Round(d.Y))
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) start() tea.Cmd {
	d, s := m.driver, m.settings
	return func() tea.Msg { return startedMsg{err: d.Start(s)} }
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.start(), m.tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.driver.Status() != sim.Finished {
				_ = m.driver.Stop()
			}
			return m, tea.Quit
		case " ", "p":
			switch m.driver.Status() {
			case sim.Running:
				_ = m.driver.Pause()
			case sim.Paused:
				_ = m.driver.Resume()
			}
		case "t":
			m.showTrails = !m.showTrails
			for i := range m.trails {
				m.trails[i] = m.trails[i][:0]
			}
		case "c":
			m.showCOG = !m.showCOG
		case "f":
			formats := settings.Formats()
			m.format = formats[(int(m.format)+1)%len(formats)]
		case "s":
			m.save()
		case "esc", "enter":
			m.notice = nil
		}

	case startedMsg:
		m.starting = false
		m.report(msg.err)
		m.observe()

	case TickMsg:
		if !m.starting {
			m.report(m.driver.Tick(time.Time(msg)))
			m.observe()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) report(err error) {
	if err == nil || errors.Is(err, dynamo.ErrIllegalTransition) {
		return
	}
	n := message.FromError(err, m.driver.Time())
	m.notice = &n
}

// observe records trails and energy from the driver's current frame.
func (m *Model) observe() {
	f := m.driver.Frame()
	if f.Bodies[0].ID == 0 {
		return
	}
	if m.showTrails {
		for i, b := range f.Bodies {
			if n := len(m.trails[i]); n > 0 && m.trails[i][n-1] == b.Position {
				continue
			}
			m.trails[i] = append(m.trails[i], b.Position)
			if len(m.trails[i]) > trailCapacity {
				m.trails[i] = m.trails[i][1:]
			}
		}
	}

	sys := physics.NewThreeBodyFromBodies(f.Bodies)
	if e := sys.Energy(physics.StateFromBodies(f.Bodies)); !math.IsInf(e, 0) {
		m.energy = append(m.energy, e)
		if len(m.energy) > energyHistory {
			m.energy = m.energy[1:]
		}
	}
}

// save stores the current bodies as the initial state of a new template.
func (m *Model) save() {
	if m.store == nil {
		return
	}
	bodies := m.driver.Bodies()
	if bodies[0].ID == 0 {
		return
	}

	s := m.settings.WithSkipTo(0).WithFormat(m.format)
	for i, b := range bodies {
		b.Acceleration = r2.Vec{}
		s.Bodies[i] = b
	}

	name := "live-" + time.Now().Format("20060102-150405")
	n := message.New(message.SaveConfirm, name)
	if err := m.store.Save(name, s); err != nil {
		n = message.FromError(err, m.driver.Time())
	}
	m.notice = &n
}

func (m Model) draw(f sim.Frame) {
	m.canvas.Clear()

	if m.showTrails {
		for i, trail := range m.trails {
			for _, p := range trail {
				x, y := m.project(p)
				m.canvas.Paint(x, y, m.palettes[i].Trail)
			}
		}
	}

	if m.showCOG {
		sys := physics.NewThreeBodyFromBodies(f.Bodies)
		x, y := m.project(sys.CenterOfMass(physics.StateFromBodies(f.Bodies)))
		cog := lipgloss.Color("#888899")
		m.canvas.DrawLine(x-2, y, x+2, y, cog)
		m.canvas.DrawLine(x, y-2, x, y+2, cog)
	}

	for i, b := range f.Bodies {
		x, y := m.project(b.Position)
		m.canvas.Dot(x, y, 1, m.palettes[i].Body)
	}
}

func (m Model) View() string {
	f := m.driver.Frame()
	status := m.driver.Status()
	started := f.Bodies[0].ID != 0

	if started {
		m.draw(f)
	}

	title, _ := colorful.Hex("#00ffff")
	accent, _ := colorful.Hex("#ff00ff")

	var s strings.Builder
	s.WriteString(HeaderStyle.Render(GradientText("THREE BODY", title, accent)) + "\n")
	s.WriteString(statusStyle(status).Render(strings.ToUpper(status.String())))
	s.WriteString(Subtle.Render("  t = ") + MetricValue.Render(m.format.Format(f.Time)) + "\n")

	if m.starting && m.settings.Skips() {
		pct := m.driver.Time() / m.settings.SkipTo
		s.WriteString(Subtle.Render("skipping ") + ProgressBar(pct, 24) +
			Subtle.Render(fmt.Sprintf(" %3.0f%%", 100*math.Min(pct, 1))) + "\n")
	}
	s.WriteString("\n")

	if started {
		for i, b := range f.Bodies {
			s.WriteString(m.bodyPanel(i, b))
		}
	}

	s.WriteString(Subtle.Render("energy ") + SparklineChart(m.energy, energyHistory) + "\n")
	s.WriteString(Separator(panelWidth) + "\n")
	s.WriteString(KeyHint.Render("SP:Pause T:Trails C:Center F:Format S:Save Q:Quit"))

	panel := GlassPanel.Width(panelWidth).Render(s.String())
	view := lipgloss.JoinHorizontal(lipgloss.Top, m.canvas.String(), panel)
	if m.notice != nil {
		view += "\n" + MessageBox(*m.notice, width+panelWidth)
	}
	return view
}

func (m Model) bodyPanel(i int, b physics.Body) string {
	name := b.Label
	if name == "" {
		name = fmt.Sprintf("Body %d", b.ID)
	}
	head := lipgloss.NewStyle().Bold(true).Foreground(m.palettes[i].Body).Render(name)

	row := func(label string, v r2.Vec) string {
		return MetricLabel.Render(label) +
			MetricValue.Render(fmt.Sprintf("%14s %14s", m.format.Format(v.X), m.format.Format(v.Y))) + "\n"
	}
	return head + Subtle.Render(fmt.Sprintf("  m = %s", m.format.Format(b.Mass))) + "\n" +
		row("pos", b.Position) +
		row("vel", b.Velocity) +
		row("acc", b.Acceleration) + "\n"
}
