package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/continuation"
)

const (
	canvasWidth  = 70
	canvasHeight = 20
	sparkWidth   = 40
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	specialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	canvasStyle  = lipgloss.NewStyle().Padding(1, 2)
	statsStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(42)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type tickMsg time.Time

// FeedMsg carries one accepted continuation step into the view.
type FeedMsg struct {
	Snapshot continuation.Snapshot
	Special  *continuation.SpecialPoint
}

// DoneMsg signals the end of the run.
type DoneMsg struct {
	Status continuation.Status
}

// Live is a Bubble Tea model showing the bifurcation diagram as a
// continuation run produces points. Feed it through the channel returned
// by [NewLive], typically from a Finalizer hook, and close the channel
// (or send DoneMsg) when the run ends.
type Live struct {
	title   string
	measure func(bif.State) float64
	feed    <-chan FeedMsg

	ps, vs   []float64
	specials []continuation.SpecialPoint
	last     continuation.Snapshot
	status   string
	running  bool
	paused   bool
	canvas   *Canvas
}

// NewLive builds the view and the channel to feed it. A nil measure
// plots the first state component.
func NewLive(title string, measure func(bif.State) float64) (*Live, chan FeedMsg) {
	if measure == nil {
		measure = func(x bif.State) float64 { return x[0] }
	}
	feed := make(chan FeedMsg, 256)
	return &Live{
		title:   title,
		measure: measure,
		feed:    feed,
		status:  "running",
		running: true,
		canvas:  NewCanvas(canvasWidth, canvasHeight),
	}, feed
}

// Feeder adapts the feed channel into a continuation Finalizer hook.
func Feeder(feed chan<- FeedMsg) func(continuation.Snapshot, *continuation.Branch) bool {
	seen := 0
	return func(s continuation.Snapshot, br *continuation.Branch) bool {
		msg := FeedMsg{Snapshot: s}
		if len(br.Special) > seen {
			sp := br.Special[len(br.Special)-1]
			msg.Special = &sp
			seen = len(br.Special)
		}
		select {
		case feed <- msg:
		default:
			// Never block the solver on a slow terminal.
		}
		return true
	}
}

func (m *Live) Init() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		}
	case DoneMsg:
		m.running = false
		m.status = msg.Status.String()
	case tickMsg:
		m.drain()
		if !m.paused {
			m.redraw()
		}
		return m, tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return tickMsg(t) })
	}
	return m, nil
}

// drain pulls everything the run has produced since the last frame.
func (m *Live) drain() {
	for {
		select {
		case msg, ok := <-m.feed:
			if !ok {
				if m.running {
					m.running = false
					m.status = "finished"
				}
				return
			}
			m.last = msg.Snapshot
			m.ps = append(m.ps, msg.Snapshot.P)
			m.vs = append(m.vs, m.measure(msg.Snapshot.X))
			if msg.Special != nil {
				m.specials = append(m.specials, *msg.Special)
			}
		default:
			return
		}
	}
}

func (m *Live) redraw() {
	m.canvas.Clear()
	if len(m.ps) < 2 {
		return
	}
	minX, maxX := m.ps[0], m.ps[0]
	minY, maxY := m.vs[0], m.vs[0]
	for i := range m.ps {
		if m.ps[i] < minX {
			minX = m.ps[i]
		}
		if m.ps[i] > maxX {
			maxX = m.ps[i]
		}
		if m.vs[i] < minY {
			minY = m.vs[i]
		}
		if m.vs[i] > maxY {
			maxY = m.vs[i]
		}
	}
	vp := NewViewport(m.canvas, minX, maxX, minY, maxY)
	for i := 1; i < len(m.ps); i++ {
		vp.PlotLine(m.ps[i-1], m.vs[i-1], m.ps[i], m.vs[i])
	}
	for _, sp := range m.specials {
		vp.PlotMarker(sp.P, m.measure(sp.X))
	}
}

func (m *Live) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")
	status := m.status
	if m.paused {
		status = "display paused"
	}
	s.WriteString(status + "\n\n")

	s.WriteString(labelStyle.Render("Steps") + valueStyle.Render(fmt.Sprintf("%d", len(m.ps))) + "\n")
	s.WriteString(labelStyle.Render("Param") + valueStyle.Render(fmt.Sprintf("%.6g", m.last.P)) + "\n")
	s.WriteString(labelStyle.Render("Step size") + valueStyle.Render(fmt.Sprintf("%.3g", m.last.Ds)) + "\n")
	s.WriteString(labelStyle.Render("Newton") + valueStyle.Render(fmt.Sprintf("%d iters", m.last.NewtonIters)) + "\n")
	s.WriteString(labelStyle.Render("Unstable") + valueStyle.Render(fmt.Sprintf("%d", m.last.NUnstable)) + "\n")
	if len(m.vs) > 1 {
		s.WriteString("\n" + SparklineChart(m.vs, sparkWidth) + "\n")
	}

	s.WriteString("\nSPECIAL POINTS\n")
	if len(m.specials) == 0 {
		s.WriteString(labelStyle.Render("  (none)") + "\n")
	}
	for _, sp := range m.specials {
		s.WriteString(specialStyle.Render(fmt.Sprintf("  %s p=%.6g", sp.Type, sp.P)) + "\n")
	}
	s.WriteString(helpStyle.Render("\nSP:Pause display  Q:Quit"))

	canvasView := canvasStyle.Render(m.canvas.String())
	statsView := statsStyle.Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}
