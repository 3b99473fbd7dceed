// Package app is the terminal dashboard over the import queue, for watching
// workers drain uploads in real time.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vitalsync/healthimport/internal/db"
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	headerStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)

	statusStyle = map[string]lipgloss.Style{
		db.StatusUploaded:   lipgloss.NewStyle().Foreground(lipgloss.Color("248")),
		db.StatusProcessing: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		db.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		db.StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// FetchFunc returns the most recent queue rows for display.
type FetchFunc func(ctx context.Context, limit int) ([]db.Import, error)

const (
	refreshInterval = 2 * time.Second
	displayLimit    = 25
)

// --- Messages ---

type queueMsg struct {
	imports []db.Import
	err     error
}

type tickMsg time.Time

// Model is the bubbletea model for the watch command.
type Model struct {
	fetch    FetchFunc
	spinner  spinner.Model
	progress progress.Model

	imports   []db.Import
	lastErr   error
	lastFetch time.Time
	quitting  bool

	termWidth int
}

// NewModel builds the dashboard model around a queue fetch function.
func NewModel(fetch FetchFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		fetch:    fetch,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd(), tickCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.progress.Width = msg.Width - 8
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), tickCmd())

	case queueMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.imports = msg.imports
			m.lastFetch = time.Now()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Import Queue"))
	b.WriteString(" " + m.spinner.View() + "\n\n")

	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("fetch error: %v", m.lastErr)) + "\n\n")
	}

	total := len(m.imports)
	terminal := 0
	for _, imp := range m.imports {
		if imp.Status == db.StatusCompleted || imp.Status == db.StatusFailed {
			terminal++
		}
	}
	if total > 0 {
		b.WriteString(m.progress.ViewAs(float64(terminal)/float64(total)) + "\n\n")
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-36s %-11s %-20s %s", "ID", "STATUS", "UPLOADED", "ERROR")))
	b.WriteString("\n")
	for _, imp := range m.imports {
		style, ok := statusStyle[imp.Status]
		if !ok {
			style = infoStyle
		}
		line := fmt.Sprintf("%-36s %-11s %-20s %s",
			imp.ID, imp.Status, imp.UploadedAt.UTC().Format("2006-01-02 15:04:05"),
			truncate(imp.ErrorMessage.String, 40))
		b.WriteString(style.Render(line) + "\n")
	}

	b.WriteString("\n" + infoStyle.Render(fmt.Sprintf("refreshed %s · q to quit",
		m.lastFetch.Format("15:04:05"))))
	return b.String()
}

func (m *Model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()
		imports, err := m.fetch(ctx, displayLimit)
		return queueMsg{imports: imports, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
