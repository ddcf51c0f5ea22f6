package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the connection and device status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)
	snap := m.snapshot

	parts := []string{bg.Render("mbdeck", styles.Logo)}

	channel, badge := channelLabel(snap.Channel, snap.ChannelRetryAt, time.Now())
	if m.direct {
		channel, badge = "DIRECT", "direct"
	}
	parts = append(parts, styles.BadgeStyle(badge).Render(channel))

	if snap.HasDevice() {
		device := fmt.Sprintf("%d", snap.SlaveID)
		if pos := indexOf(snap.Devices, snap.SlaveID); pos >= 0 && len(snap.Devices) > 1 {
			device += fmt.Sprintf(" (%d/%d)", pos+1, len(snap.Devices))
		}
		parts = append(parts, bg.Render("Device:", styles.MutedText)+bg.Space()+bg.Render(device, styles.Text))
	} else {
		parts = append(parts, bg.Render("No device", styles.WarningText))
	}

	updated := "never"
	if !snap.LastUpdated.IsZero() {
		updated = snap.LastUpdated.Format("15:04:05")
	}
	parts = append(parts, bg.Render("Updated:", styles.MutedText)+bg.Space()+bg.Render(updated, styles.Text))

	switch {
	case snap.IsOffline():
		parts = append(parts, bg.Render(fmt.Sprintf("OFFLINE (%d failures)", snap.ConsecutiveFailures), styles.DangerText))
	case snap.ConsecutiveFailures > 0:
		parts = append(parts, bg.Render(fmt.Sprintf("%d failure", snap.ConsecutiveFailures), styles.WarningText))
	}

	if msg := statusText(snap.LastError); msg != "" && m.width >= 100 {
		parts = append(parts, bg.Render(truncate(msg, max(m.width/3, 20)), styles.DangerText))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// channelLabel returns the badge text and color key for a channel state.
// A closed channel waiting to reconnect shows the remaining cooldown.
func channelLabel(state string, retryAt, now time.Time) (string, string) {
	switch state {
	case "open":
		return "LIVE", "open"
	case "connecting":
		return "CONNECTING", "connecting"
	case "closed":
		if !retryAt.IsZero() {
			left := retryAt.Sub(now).Round(time.Second)
			if left < 0 {
				left = 0
			}
			return fmt.Sprintf("CLOSED retry %ds", int(left/time.Second)), "closed"
		}
		return "CLOSED", "closed"
	}
	return "CONNECTING", "connecting"
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewTools:
		commands = []cmd{{"j/k", "Select"}, {"enter", "Open"}}
	case ViewHistory:
		commands = []cmd{{"j/k", "Scroll"}, {"x", "Export"}, {"r", "Reload"}}
	case ViewStats:
		commands = []cmd{{"r", "Reload"}}
	case ViewConfig:
		commands = []cmd{{"enter", "Resize"}, {"r", "Reload"}}
	default:
		commands = []cmd{{"h/l", "Bank"}, {"j/k", "Address"}, {"enter", "Edit"}, {"Space", "Toggle"}}
	}
	commands = append(commands, cmd{"[/]", "Device"}, cmd{"tab", m.cycleView(1).String()}, cmd{"?", "More"})

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+2)
	segments = append(segments, bg.Render(m.currentView.String(), styles.AccentText.Bold(true)))
	for _, c := range commands {
		segments = append(segments, bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments, bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}

// renderStatusLine renders the result of the last operator action.
func (m Model) renderStatusLine() string {
	style := lipgloss.NewStyle().Width(m.width).Padding(0, 1).Foreground(lipgloss.Color(m.theme.Muted))
	if m.isError {
		style = style.Foreground(lipgloss.Color(m.theme.Danger))
	}
	return style.Render(truncate(m.status, max(m.width-2, 0)))
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// truncate shortens s to limit runes, ending in "..." when cut.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
