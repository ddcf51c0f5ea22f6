package ui

import (
	"fmt"
	"strings"

	"github.com/five82/mbdeck/internal/api"
)

type statsState struct {
	loaded bool
	stats  api.Stats
	err    error
}

// statsLines renders the counters and the per function code table.
func statsLines(s api.Stats) []string {
	lines := []string{
		fmt.Sprintf("Total requests       %d", s.TotalRequests),
		fmt.Sprintf("Successful requests  %d", s.SuccessfulRequests),
		fmt.Sprintf("Success rate         %s", s.FormatSuccessRate()),
		"",
	}
	codes := s.SortedFunctionCodes()
	if len(codes) == 0 {
		return append(lines, "No function codes served yet")
	}
	lines = append(lines, "Function codes")
	for _, fc := range codes {
		lines = append(lines, fmt.Sprintf("  %-5s %-34s %8d", fc.Code, fc.Label, fc.Count))
	}
	return lines
}

func (m Model) renderStats() string {
	styles := m.theme.Styles()
	var body string
	switch {
	case !m.stats.loaded:
		body = styles.MutedText.Render("Loading...")
	case m.stats.err != nil:
		body = styles.DangerText.Render(statusText(m.stats.err))
	default:
		body = strings.Join(statsLines(m.stats.stats), "\n")
	}
	return m.renderTitledBox("Simulator statistics", body, m.width, m.contentHeight(), true)
}
