package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type flushFinishedMsg struct {
	attempted int
	err       error
}

// flushProgressModel shows a spinner, the queue size and the elapsed time
// while the outbox is delivered.
type flushProgressModel struct {
	spinner   spinner.Model
	elapsed   stopwatch.Model
	pending   int
	server    string
	flush     tea.Cmd
	attempted int
	err       error
	done      bool
}

var (
	flushCountStyle  = lipgloss.NewStyle().Bold(true)
	flushServerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func newFlushProgressModel(pending int, server string, flush tea.Cmd) flushProgressModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return flushProgressModel{
		spinner: s,
		elapsed: stopwatch.NewWithInterval(100 * time.Millisecond),
		pending: pending,
		server:  server,
		flush:   flush,
	}
}

func (m flushProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.elapsed.Init(), m.flush)
}

func (m flushProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case flushFinishedMsg:
		m.done = true
		m.attempted = msg.attempted
		m.err = msg.err
		return m, tea.Quit
	default:
		var cmd tea.Cmd
		m.elapsed, cmd = m.elapsed.Update(msg)
		return m, cmd
	}
}

func (m flushProgressModel) View() string {
	if m.done {
		return ""
	}

	items := "items"
	if m.pending == 1 {
		items = "item"
	}
	line := fmt.Sprintf("%s Flushing %s queued %s", m.spinner.View(), flushCountStyle.Render(fmt.Sprint(m.pending)), items)
	if m.server != "" {
		line += " to " + flushServerStyle.Render(m.server)
	}
	return fmt.Sprintf("%s (%s)", line, m.elapsed.View())
}

// runFlushProgress shows flush progress on output and returns how many items
// flush attempted.
func runFlushProgress(ctx context.Context, output io.Writer, pending int, serverURL string, flush func(context.Context) (int, error)) (int, error) {
	flushCmd := func() tea.Msg {
		attempted, err := flush(ctx)
		return flushFinishedMsg{attempted: attempted, err: err}
	}

	p := tea.NewProgram(
		newFlushProgressModel(pending, serverHost(serverURL), flushCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return 0, err
	}

	result, ok := finalModel.(flushProgressModel)
	if !ok {
		return 0, fmt.Errorf("unexpected final progress model type %T", finalModel)
	}

	return result.attempted, result.err
}

func serverHost(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	return parsed.Host
}
