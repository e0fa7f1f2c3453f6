// Package watch is a read-only terminal view of the running daemon's
// per-checker state.
package watch

import (
	"errors"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"preventsleep/internal/agent"
	"preventsleep/internal/logging"
)

type tickMsg time.Time

// Model is the Bubble Tea model of the watch view
type Model struct {
	statusPath string
	refresh    time.Duration
	logger     *logging.Logger
	now        func() time.Time

	status    agent.Status
	hasStatus bool
	lastError string
	quitting  bool
}

// NewModel creates a model reading statusPath every refresh interval
func NewModel(statusPath string, refresh time.Duration, logger *logging.Logger) Model {
	m := Model{
		statusPath: statusPath,
		refresh:    refresh,
		logger:     logger,
		now:        time.Now,
	}
	m.load()
	return m
}

// Init starts the refresh timer
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles key presses and refresh ticks
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.load()
		return m, m.tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.load()
		}
	}
	return m, nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// load reads the status file written by the daemon
func (m *Model) load() {
	status, err := agent.LoadStatus(m.statusPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.lastError = "No status file - is prevent-sleep running?"
		} else {
			m.lastError = err.Error()
			m.logger.Debug("watch.load_failed", "Failed to load status", map[string]interface{}{
				"path":  m.statusPath,
				"error": err.Error(),
			})
		}
		m.hasStatus = false
		return
	}

	m.status = status
	m.hasStatus = true
	m.lastError = ""
}
