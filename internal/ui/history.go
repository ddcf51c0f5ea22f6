package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/mbdeck/internal/api"
)

// historyState holds the last fetched history page.
type historyState struct {
	loaded  bool
	records []api.HistoryRecord
	err     error
}

func (m *Model) handleHistory(msg historyMsg) {
	m.history = historyState{loaded: true, records: msg.records, err: msg.err}
	if msg.err != nil {
		m.setError(msg.err)
	}
	m.updateHistoryViewport()
	m.historyViewport.GotoTop()
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Export) {
		if len(m.history.records) == 0 {
			m.setStatus("Nothing to export")
			return m, nil
		}
		return m, exportHistoryCmd(m.history.records, ".")
	}
	switch {
	case key.Matches(msg, m.keys.Top):
		m.historyViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.historyViewport.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.historyViewport, cmd = m.historyViewport.Update(msg)
	return m, cmd
}

func (m *Model) updateHistoryViewport() {
	if !m.ready {
		return
	}
	m.historyViewport.SetContent(strings.Join(historyLines(m.history.records), "\n"))
}

// historyLines renders records one per line in the order given.
func historyLines(records []api.HistoryRecord) []string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		when := r.Timestamp
		if t := r.ParsedTime(); !t.IsZero() {
			when = t.Local().Format("2006-01-02 15:04:05")
		}
		source := r.Source
		if source == "" {
			source = "-"
		}
		lines = append(lines, fmt.Sprintf("%-19s  dev %-3d  %-18s %5d  %s -> %s  (%s)",
			when, r.SlaveID, r.BankLabel(), r.Address, r.OldText(), r.NewText(), source))
	}
	return lines
}

func (m Model) renderHistory() string {
	styles := m.theme.Styles()
	height := m.contentHeight()

	title := fmt.Sprintf("History (%d)", len(m.history.records))
	var body string
	switch {
	case !m.history.loaded:
		body = styles.MutedText.Render("Loading...")
	case m.history.err != nil:
		body = styles.DangerText.Render(statusText(m.history.err))
	case len(m.history.records) == 0:
		body = styles.MutedText.Render("No changes recorded")
	default:
		body = m.historyViewport.View()
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(
		m.renderTitledBox(title, body, m.width-2, height, true),
	)
}
