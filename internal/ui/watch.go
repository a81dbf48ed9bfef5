package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/errors"
)

// ReadFunc reads the watched tag once.
type ReadFunc func(ctx context.Context) (types.Value, error)

const historySize = 8

type tickMsg struct{}

type readMsg struct {
	value types.Value
	err   error
	at    time.Time
}

// WatchModel polls one tag on an interval and redraws on every reply.
// A fatal session error ends the program; status errors are shown and
// polling continues.
type WatchModel struct {
	ctx      context.Context
	tag      string
	interval time.Duration
	read     ReadFunc
	styles   Styles

	value    types.Value
	lastErr  error
	fatal    error
	last     time.Time
	reads    int
	failures int
	history  []string
	paused   bool
	quitting bool
}

// NewWatchModel returns a model that polls read every interval.
func NewWatchModel(ctx context.Context, tag string, interval time.Duration, read ReadFunc, s Styles) WatchModel {
	if interval <= 0 {
		interval = time.Second
	}
	return WatchModel{ctx: ctx, tag: tag, interval: interval, read: read, styles: s}
}

// Err returns the fatal error that stopped the watch, if any.
func (m WatchModel) Err() error { return m.fatal }

// Reads returns how many polls completed, failed ones included.
func (m WatchModel) Reads() int { return m.reads }

func (m WatchModel) Init() tea.Cmd {
	return m.poll()
}

func (m WatchModel) poll() tea.Cmd {
	ctx, read := m.ctx, m.read
	return func() tea.Msg {
		v, err := read(ctx)
		return readMsg{value: v, err: err, at: time.Now()}
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "p", " ":
			m.paused = !m.paused
			if !m.paused {
				return m, m.poll()
			}
		}
		return m, nil

	case readMsg:
		m.reads++
		m.last = msg.at
		if msg.err != nil {
			m.failures++
			m.lastErr = msg.err
			if errors.IsFatal(msg.err) {
				m.fatal = msg.err
				m.quitting = true
				return m, tea.Quit
			}
		} else {
			m.lastErr = nil
			m.value = msg.value
			m.history = append(m.history, msg.value.String())
			if len(m.history) > historySize {
				m.history = m.history[len(m.history)-historySize:]
			}
		}
		if m.paused {
			return m, nil
		}
		return m, m.tick()

	case tickMsg:
		if m.paused {
			return m, nil
		}
		return m, m.poll()
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.styles
	var b strings.Builder

	if m.value.IsZero() {
		b.WriteString(s.Dim.Render("waiting for first read..."))
	} else {
		b.WriteString(RenderValue(m.tag, m.value, s))
	}
	b.WriteString("\n\n")

	status := fmt.Sprintf("reads %d  failures %d  every %s", m.reads, m.failures, m.interval)
	if !m.last.IsZero() {
		status += "  last " + m.last.Format("15:04:05.000")
	}
	if m.paused {
		status += "  " + s.Warning.Render("paused")
	}
	b.WriteString(s.Dim.Render(status))

	if m.lastErr != nil {
		b.WriteString("\n" + s.Error.Render(m.lastErr.Error()))
	}
	if len(m.history) > 1 {
		b.WriteString("\n\n" + s.Column.Render("HISTORY"))
		for i := len(m.history) - 1; i >= 0; i-- {
			b.WriteString("\n" + s.Muted.Render(m.history[i]))
		}
	}
	b.WriteString("\n\n" + KeyHints([]KeyHint{{"p", "Pause"}, {"q", "Quit"}}, s))
	return b.String()
}

// RunWatch runs the watch model on the terminal until the user quits or
// the session fails.
func RunWatch(m WatchModel, opts ...tea.ProgramOption) error {
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return err
	}
	if wm, ok := final.(WatchModel); ok {
		return wm.Err()
	}
	return nil
}
