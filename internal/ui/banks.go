package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
	"github.com/five82/mbdeck/internal/regcodec"
)

// bankState is the cursor position in the banks view.
type bankState struct {
	focus  int // index into device.Banks
	cursor [4]int
}

func (b bankState) bank() device.Bank {
	return device.Banks[b.focus]
}

// clamp keeps every cursor inside its bank after a snapshot changed size.
func (b *bankState) clamp(data device.Snapshot) {
	for i, bank := range device.Banks {
		n := data.Len(bank)
		if b.cursor[i] >= n {
			b.cursor[i] = max(n-1, 0)
		}
		if b.cursor[i] < 0 {
			b.cursor[i] = 0
		}
	}
}

func (b *bankState) move(data device.Snapshot, delta int) {
	b.cursor[b.focus] += delta
	b.clamp(data)
}

func (m Model) handleBanksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	data := m.snapshot.Data
	page := max(m.bankRows()-1, 1)

	switch {
	case key.Matches(msg, m.keys.Left):
		m.banks.focus = (m.banks.focus + len(device.Banks) - 1) % len(device.Banks)
	case key.Matches(msg, m.keys.Right):
		m.banks.focus = (m.banks.focus + 1) % len(device.Banks)
	case key.Matches(msg, m.keys.Up):
		m.banks.move(data, -1)
	case key.Matches(msg, m.keys.Down):
		m.banks.move(data, 1)
	case key.Matches(msg, m.keys.PageUp):
		m.banks.move(data, -page)
	case key.Matches(msg, m.keys.PageDown):
		m.banks.move(data, page)
	case key.Matches(msg, m.keys.Top):
		m.banks.cursor[m.banks.focus] = 0
	case key.Matches(msg, m.keys.Bottom):
		m.banks.cursor[m.banks.focus] = max(data.Len(m.banks.bank())-1, 0)
	case key.Matches(msg, m.keys.Edit):
		return m.beginEdit()
	case key.Matches(msg, m.keys.ToggleCoil):
		return m.toggleCoil()
	}
	return m, nil
}

// beginEdit opens an edit session on the cell under the cursor.
func (m Model) beginEdit() (tea.Model, tea.Cmd) {
	bank := m.banks.bank()
	address := m.banks.cursor[m.banks.focus]
	if !m.snapshot.HasDevice() {
		m.setError(fault.New(fault.NoDevice, "edit", "select a device first"))
		return m, nil
	}
	if m.editor == nil {
		return m, nil
	}
	prior, _ := m.snapshot.Data.At(bank, address)
	s, err := m.editor.Begin(bank, address, prior, m.snapshot.Data.Len(bank))
	if err != nil {
		m.setError(err)
		return m, nil
	}

	hint := "integer 0-65535"
	if bank.IsBit() {
		hint = "true or 1 for ON, anything else OFF"
	}
	m.modal = newFormModal(formEdit,
		fmt.Sprintf("Edit %s [%d] on device %d", bank.Label(), address, m.snapshot.SlaveID),
		formField{label: "Value", placeholder: hint, value: s.Initial()},
	)
	return m, nil
}

// toggleCoil flips the coil under the cursor through a one-shot edit session.
func (m Model) toggleCoil() (tea.Model, tea.Cmd) {
	bank := m.banks.bank()
	if bank != device.Coils || m.editor == nil || !m.snapshot.HasDevice() {
		return m, nil
	}
	address := m.banks.cursor[m.banks.focus]
	prior, ok := m.snapshot.Data.At(bank, address)
	if !ok {
		return m, nil
	}
	if _, err := m.editor.Begin(bank, address, prior, m.snapshot.Data.Len(bank)); err != nil {
		m.setError(err)
		return m, nil
	}
	raw := "true"
	if prior.Bit {
		raw = "false"
	}
	return m, commitEditCmd(m.ctx, m.editor, sessionRef{bank: bank, address: address}, raw)
}

func (m Model) handleEditResult(msg editResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if f, ok := m.modal.(*formModal); ok && f.kind == formEdit {
			f.setError(statusText(msg.err))
			return m, nil
		}
		// One-shot toggle: nothing to correct, so drop the session.
		if m.editor != nil {
			_ = m.editor.Cancel()
		}
		m.setError(msg.err)
		return m, nil
	}
	if f, ok := m.modal.(*formModal); ok && f.kind == formEdit {
		m.modal = nil
	}
	m.setStatus(fmt.Sprintf("Wrote %s [%d]", msg.bank.Label(), msg.address))
	return m, nil
}

// bankRows is the number of cell rows visible in one pane.
func (m Model) bankRows() int {
	h := m.contentHeight()
	if m.width < 100 {
		h /= 2
	}
	return max(h-2, 1)
}

func (m Model) renderBanks() string {
	height := m.contentHeight()
	styles := m.theme.Styles()

	if !m.snapshot.HasDevice() {
		msg := styles.MutedText.Render("No device selected")
		if len(m.snapshot.Devices) == 0 {
			msg = styles.MutedText.Render("No devices reported by the simulator")
		}
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, msg)
	}

	if m.width >= 100 {
		w := m.width / 4
		panes := make([]string, len(device.Banks))
		for i := range device.Banks {
			pw := w
			if i == len(device.Banks)-1 {
				pw = m.width - w*3
			}
			panes[i] = m.renderBankPane(i, pw, height)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, panes...)
	}

	left := m.width / 2
	right := m.width - left
	top := height / 2
	bottom := height - top
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, m.renderBankPane(0, left, top), m.renderBankPane(1, right, top))
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, m.renderBankPane(2, left, bottom), m.renderBankPane(3, right, bottom))
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func (m Model) renderBankPane(idx, width, height int) string {
	bank := device.Banks[idx]
	data := m.snapshot.Data
	focused := idx == m.banks.focus

	bgColor := m.theme.SurfaceAlt
	if focused {
		bgColor = m.theme.FocusBg
	}
	inner := max(width-2, 1)
	rows := max(height-2, 1)

	n := data.Len(bank)
	title := fmt.Sprintf("%s (%d)", bank.Label(), n)
	if !bank.Writable() {
		title += " ro"
	}

	if n == 0 {
		empty := lipgloss.NewStyle().
			Foreground(lipgloss.Color(m.theme.Muted)).
			Background(lipgloss.Color(bgColor)).
			Render("empty")
		return m.renderTitledBox(title, empty, width, height, focused)
	}

	cursor := m.banks.cursor[idx]
	start := windowStart(cursor, n, rows)
	lines := make([]string, 0, rows)
	for addr := start; addr < min(start+rows, n); addr++ {
		v, _ := data.At(bank, addr)
		text := formatCell(bank, addr, v, inner)
		style := lipgloss.NewStyle().Width(inner).Background(lipgloss.Color(bgColor)).Foreground(lipgloss.Color(m.theme.Text))
		switch {
		case addr == cursor && focused:
			style = style.Background(lipgloss.Color(m.theme.SelectionBg)).Foreground(lipgloss.Color(m.theme.SelectionText))
		case bank.IsBit() && v.Bit:
			style = style.Foreground(lipgloss.Color(m.theme.Success))
		case bank.IsBit():
			style = style.Foreground(lipgloss.Color(m.theme.Faint))
		}
		lines = append(lines, style.Render(text))
	}
	return m.renderTitledBox(title, strings.Join(lines, "\n"), width, height, focused)
}

// windowStart returns the first visible address so that cursor stays roughly
// centred in a window of rows cells over a bank of n.
func windowStart(cursor, n, rows int) int {
	if n <= rows {
		return 0
	}
	start := cursor - rows/2
	if start < 0 {
		return 0
	}
	if start > n-rows {
		return n - rows
	}
	return start
}

// formatCell renders one bank row. Registers show decimal and hex, and the
// two characters they carry when the word looks like text and there is room.
func formatCell(bank device.Bank, address int, v device.Value, width int) string {
	if bank.IsBit() {
		return fmt.Sprintf("%5d  %s", address, v.Format(bank))
	}
	line := fmt.Sprintf("%5d  %5d  0x%04X", address, v.Word, v.Word)
	words := []uint16{v.Word}
	if width >= len(line)+6 && regcodec.IsLikelyText(words) {
		line += fmt.Sprintf("  %q", regcodec.DecodeRegisters(words))
	}
	return line
}

// renderTitledBox draws a single-line border around content with title in
// the top edge.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	borderColor, bgColor := m.theme.Border, m.theme.SurfaceAlt
	if focused {
		borderColor, bgColor = m.theme.BorderFocus, m.theme.FocusBg
	}
	bg := NewBgStyle(bgColor)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColor))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 0)
	title = truncate(title, max(innerWidth-2, 0))
	leftPad := max((innerWidth-lipgloss.Width(title)-2)/2, 0)
	rightPad := max(innerWidth-lipgloss.Width(title)-2-leftPad, 0)

	top := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)
	bottom := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Background(lipgloss.Color(bgColor))
	contentLines := strings.Split(content, "\n")
	boxHeight := max(height-2, 0)

	out := make([]string, 0, boxHeight+2)
	out = append(out, top)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		out = append(out, bg.Render("│", borderStyle)+contentStyle.Render(line)+bg.Render("│", borderStyle))
	}
	out = append(out, bottom)
	return strings.Join(out, "\n")
}
