package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
	"github.com/five82/mbdeck/internal/regcodec"
)

const defaultStringLength = 10

type tool struct {
	kind  formKind
	name  string
	about string
}

var tools = []tool{
	{formWriteString, "Write string", "Pack text two characters per holding register"},
	{formReadString, "Read string", "Decode holding registers as text on the simulator"},
	{formReadRecord, "Read record", "Show a block of holding registers from the mirror"},
	{formWriteRecord, "Write record", "Write comma separated values to consecutive registers"},
}

// toolState holds the tools view selection and the last result.
type toolState struct {
	cursor int
	title  string
	lines  []string
}

func (m Model) handleToolsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.tools.cursor > 0 {
			m.tools.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.tools.cursor < len(tools)-1 {
			m.tools.cursor++
		}
	case key.Matches(msg, m.keys.Edit):
		m.modal = toolForm(tools[m.tools.cursor])
	}
	return m, nil
}

func toolForm(t tool) *formModal {
	addr := formField{label: "Address", placeholder: "0"}
	switch t.kind {
	case formWriteString:
		return newFormModal(t.kind, t.name, addr, formField{label: "Text", placeholder: "Latin-1 text"})
	case formReadString:
		return newFormModal(t.kind, t.name, addr, formField{label: "Length", placeholder: "registers (default 10)"})
	case formReadRecord:
		return newFormModal(t.kind, t.name, addr, formField{label: "Length", placeholder: "registers (default 10)"})
	default:
		return newFormModal(t.kind, t.name, addr, formField{label: "Values", placeholder: "e.g. 1, 2, 0x41"})
	}
}

// handleSubmit validates a submitted form and starts its operation.
// Validation errors are reported in the form without touching the network.
func (m Model) handleSubmit(msg formSubmitMsg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case formEdit:
		if m.editor == nil {
			return m, nil
		}
		s, ok := m.editor.Active()
		if !ok {
			m.failModal(fault.NoSession)
			return m, nil
		}
		return m, commitEditCmd(m.ctx, m.editor, sessionRef{bank: s.Bank, address: s.Address}, msg.values[0])

	case formResize:
		deltas, err := parseResizeForm(msg.values)
		if err == nil && deltas.IsEmpty() {
			err = fault.New(fault.NoOpResize, "resize", "enter at least one bank length")
		}
		if err != nil {
			m.failModal(err)
			return m, nil
		}
		return m, resizeCmd(m.ctx, m.mirror, deltas)
	}

	slaveID := m.snapshot.SlaveID
	if !m.snapshot.HasDevice() {
		m.failModal(fault.New(fault.NoDevice, "tool", "select a device first"))
		return m, nil
	}
	address, err := parseAddress(msg.values[0])
	if err != nil {
		m.failModal(err)
		return m, nil
	}

	switch msg.kind {
	case formWriteString:
		text := msg.values[1]
		if _, err := regcodec.EncodeText(text); err != nil {
			m.failModal(err)
			return m, nil
		}
		if text == "" {
			m.failModal(fault.New(fault.Validation, "write string", "text is empty"))
			return m, nil
		}
		return m, writeStringCmd(m.ctx, m.service, m.driver, slaveID, address, text)

	case formReadString:
		length, err := parseLength(msg.values[1], address)
		if err != nil {
			m.failModal(err)
			return m, nil
		}
		return m, readStringCmd(m.ctx, m.service, slaveID, address, length)

	case formReadRecord:
		length, err := parseLength(msg.values[1], address)
		if err != nil {
			m.failModal(err)
			return m, nil
		}
		lines, err := readRecord(m.snapshot.Data, address, length)
		result := toolResultMsg{title: "Read record", lines: lines, err: err}
		return m, func() tea.Msg { return result }

	case formWriteRecord:
		values, err := regcodec.ParseValues(msg.values[1])
		if err != nil {
			m.failModal(err)
			return m, nil
		}
		return m, writeRecordCmd(m.ctx, m.mirror, address, values)
	}
	return m, nil
}

func (m Model) handleToolResult(msg toolResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.failModal(msg.err)
		return m, nil
	}
	m.modal = nil
	m.currentView = ViewTools
	m.tools.title = msg.title
	m.tools.lines = msg.lines
	m.setStatus(msg.title + " done")
	return m, nil
}

func writeStringCmd(ctx context.Context, svc api.Service, driver Driver, slaveID, address int, text string) tea.Cmd {
	return func() tea.Msg {
		res, err := svc.WriteString(ctx, slaveID, address, text)
		if err != nil {
			return toolResultMsg{err: err}
		}
		if driver != nil {
			driver.Trigger()
		}
		return toolResultMsg{title: "Write string", lines: []string{
			fmt.Sprintf("Text length       %d", res.TextLength),
			fmt.Sprintf("Registers written %d", res.RegistersWritten),
			fmt.Sprintf("Address range     %s", res.AddressRange),
		}}
	}
}

func readStringCmd(ctx context.Context, svc api.Service, slaveID, address, length int) tea.Cmd {
	return func() tea.Msg {
		res, err := svc.ReadString(ctx, slaveID, address, length)
		if err != nil {
			return toolResultMsg{err: err}
		}
		return toolResultMsg{title: "Read string", lines: readStringLines(res)}
	}
}

func readStringLines(res api.ReadStringResult) []string {
	dec := make([]string, len(res.Registers))
	for i, w := range res.Registers {
		dec[i] = strconv.Itoa(int(w))
	}
	return []string{
		fmt.Sprintf("Text          %q", res.Text),
		fmt.Sprintf("Decoded       %q", regcodec.DecodeRegisters(res.Registers)),
		fmt.Sprintf("Address range %s", res.AddressRange),
		fmt.Sprintf("Registers     %s", strings.Join(dec, ", ")),
		fmt.Sprintf("Hex           %s", strings.Join(regcodec.FormatHex(res.Registers), " ")),
	}
}

// readRecord reads a block from the mirrored holding registers. Addresses
// past the end of the bank read as zero.
func readRecord(data device.Snapshot, address, length int) ([]string, error) {
	if length > device.MaxBankSize-address {
		return nil, fault.New(fault.Validation, "read record", "%d registers from address %d run past %d", length, address, device.MaxBankSize-1)
	}
	words := data.WordRange(device.HoldingRegisters, address, length)
	block, err := regcodec.PackRecordBlock(words, address, length)
	if err != nil {
		return nil, err
	}
	dec := make([]string, len(block.Values))
	for i, w := range block.Values {
		dec[i] = strconv.Itoa(int(w))
	}
	lines := []string{
		fmt.Sprintf("Address range %s", block.Range()),
		fmt.Sprintf("Values        %s", strings.Join(dec, ", ")),
	}
	if regcodec.IsLikelyText(block.Values) {
		lines = append(lines,
			fmt.Sprintf("Text          %q", regcodec.DecodeRegisters(block.Values)),
			fmt.Sprintf("Hex           %s", strings.Join(regcodec.FormatHex(block.Values), " ")),
		)
	}
	return lines, nil
}

// writeRecordCmd writes values to consecutive holding registers in address
// order and stops at the first failure.
func writeRecordCmd(ctx context.Context, mirror Mirror, address int, values []uint16) tea.Cmd {
	return func() tea.Msg {
		for i, v := range values {
			addr := address + i
			if err := mirror.WriteSingle(ctx, device.HoldingRegisters, addr, device.WordValue(v)); err != nil {
				return toolResultMsg{err: &fault.E{
					C:   fault.Of(err),
					Op:  "write record",
					Msg: fmt.Sprintf("stopped at register %d, %d of %d written", addr, i, len(values)),
					Err: err,
				}}
			}
		}
		block, _ := regcodec.PackRecordBlock(values, address, len(values))
		return toolResultMsg{title: "Write record", lines: []string{
			fmt.Sprintf("Registers written %d", len(values)),
			fmt.Sprintf("Address range     %s", block.Range()),
		}}
	}
}

func parseAddress(raw string) (int, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 || n > 0xFFFF {
		return 0, fault.New(fault.Validation, "address", "%q is not an address in 0-65535", text)
	}
	return n, nil
}

// parseLength reads a register count starting at address. The block must
// end inside the 65536-register address space.
func parseLength(raw string, address int) (int, error) {
	text := strings.TrimSpace(raw)
	limit := device.MaxBankSize - address
	if text == "" {
		return min(defaultStringLength, limit), nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 {
		return 0, fault.New(fault.Validation, "length", "%q is not a positive length", text)
	}
	if n > limit {
		return 0, fault.New(fault.Validation, "length", "%d registers from address %d run past %d", n, address, device.MaxBankSize-1)
	}
	return n, nil
}

func (m Model) renderTools() string {
	styles := m.theme.Styles()
	height := m.contentHeight()
	listWidth := min(max(m.width/3, 28), m.width)
	outWidth := m.width - listWidth

	bgColor := m.theme.FocusBg
	var rows []string
	for i, t := range tools {
		style := lipgloss.NewStyle().Width(listWidth - 2).Background(lipgloss.Color(bgColor)).Foreground(lipgloss.Color(m.theme.Text))
		if i == m.tools.cursor {
			style = style.Background(lipgloss.Color(m.theme.SelectionBg)).Foreground(lipgloss.Color(m.theme.SelectionText))
		}
		rows = append(rows, style.Render(" "+t.name))
	}
	rows = append(rows, "", styles.MutedText.Background(lipgloss.Color(bgColor)).Render(" "+tools[m.tools.cursor].about))
	list := m.renderTitledBox("Tools", strings.Join(rows, "\n"), listWidth, height, true)

	title := "Result"
	body := styles.MutedText.Render("enter opens the selected tool")
	if m.tools.title != "" {
		title = m.tools.title
		body = strings.Join(m.tools.lines, "\n")
	}
	out := m.renderTitledBox(title, body, outWidth, height, false)
	return lipgloss.JoinHorizontal(lipgloss.Top, list, out)
}
