// Package tui renders live solve progress in the terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/engine"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const barWidth = 36

type stepMsg struct {
	step, total int
	X           float64
}

type doneMsg struct {
	sol *engine.Solution
	err error
}

// Options describe what the progress view shows.
type Options struct {
	Title   string
	Surface float64
	// Height converts slant depth to height in cm; nil hides it.
	Height func(X float64) float64
	Fluxes []string
	Mag    float64
	// FrameRate caps progress redraws per second.
	FrameRate int
	Output    io.Writer
}

type model struct {
	opts   Options
	cancel context.CancelFunc

	step, total int
	X           float64
	start       time.Time
	elapsed     time.Duration

	done      bool
	cancelled bool
	sol       *engine.Solution
	err       error
}

func newModel(opts Options, cancel context.CancelFunc) model {
	return model{opts: opts, cancel: cancel, start: time.Now()}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			// the solve returns the context error and ends the program
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	case stepMsg:
		m.step, m.total, m.X = msg.step, msg.total, msg.X
		m.elapsed = time.Since(m.start)
	case doneMsg:
		m.done = true
		m.sol, m.err = msg.sol, msg.err
		m.elapsed = time.Since(m.start)
		if m.sol != nil {
			m.X = m.sol.Surface
			m.step = m.sol.Steps
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m model) progress() float64 {
	if m.opts.Surface <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, m.X/m.opts.Surface))
}

func (m model) View() string {
	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("solving")
	switch {
	case m.done && m.err != nil:
		statusIcon = red.Render("✗")
		statusText = red.Render("failed")
	case m.done:
		statusText = green.Render("done")
	case m.cancelled:
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("cancelling")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", statusIcon, cyan.Render(m.opts.Title), statusText))

	filled := int(m.progress() * barWidth)
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	depth := fmt.Sprintf("X=%.1f/%.1f g/cm²", m.X, m.opts.Surface)
	steps := fmt.Sprintf("step %d", m.step)
	if m.total > 0 {
		steps = fmt.Sprintf("step %d/%d", m.step, m.total)
	}
	if m.opts.Height != nil {
		depth += fmt.Sprintf(" h=%.1f km", m.opts.Height(m.X)/1e5)
	}
	b.WriteString(fmt.Sprintf("   %s %s  %s  %s\n", bar, dim.Render(depth), dim.Render(steps),
		dim.Render(m.elapsed.Round(time.Millisecond).String())))

	if m.err != nil {
		b.WriteString("\n   " + red.Render(m.err.Error()) + "\n")
	}
	if m.sol != nil {
		b.WriteString("\n")
		for _, name := range m.opts.Fluxes {
			f, err := m.sol.Flux(name, m.opts.Mag)
			if err != nil {
				b.WriteString(fmt.Sprintf("   %-16s %s\n", name, red.Render(err.Error())))
				continue
			}
			b.WriteString(fmt.Sprintf("   %-16s %s  %s\n", name, cyan.Render(sparkline(logFlux(f), 24)),
				white.Render(fmt.Sprintf("max %.3e", peak(f)))))
		}
	}

	if !m.done {
		b.WriteString("\n" + dim.Render("   q cancel") + "\n")
	}
	return b.String()
}

func logFlux(f []float64) []float64 {
	out := make([]float64, len(f))
	for i, v := range f {
		out[i] = math.Log10(math.Max(v, 1e-300))
	}
	return out
}

func peak(f []float64) float64 {
	p := 0.0
	for _, v := range f {
		p = math.Max(p, v)
	}
	return p
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		sb.WriteRune(chars[max(0, min(7, idx))])
	}
	return sb.String()
}

// observer forwards solver steps to the program at most frameRate times a
// second; the final step always gets through.
type observer struct {
	send     func(tea.Msg)
	interval time.Duration
	last     time.Time
}

func newObserver(send func(tea.Msg), frameRate int) *observer {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &observer{send: send, interval: time.Second / time.Duration(frameRate)}
}

func (o *observer) OnStep(step, total int, X float64) {
	if step != total && time.Since(o.last) < o.interval {
		return
	}
	o.last = time.Now()
	o.send(stepMsg{step: step, total: total, X: X})
}

// SolveFunc runs one solve reporting steps to obs.
type SolveFunc func(ctx context.Context, obs dynamo.Observer) (*engine.Solution, error)

// RunSolve shows progress while solve runs and returns its result.
// Quitting cancels the solve.
func RunSolve(ctx context.Context, opts Options, solve SolveFunc) (*engine.Solution, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var progOpts []tea.ProgramOption
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	p := tea.NewProgram(newModel(opts, cancel), progOpts...)

	go func() {
		sol, err := solve(ctx, newObserver(p.Send, opts.FrameRate))
		p.Send(doneMsg{sol: sol, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(model)
	if !ok {
		return nil, fmt.Errorf("tui: unexpected model %T", final)
	}
	return m.sol, m.err
}
