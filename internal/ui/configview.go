package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
)

type configState struct {
	loaded bool
	cfg    api.SlaveConfig
	err    error
}

func (m Model) handleConfigKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Edit) {
		return m, nil
	}
	if !m.snapshot.HasDevice() {
		m.setError(fault.New(fault.NoDevice, "resize", "select a device first"))
		return m, nil
	}
	if m.direct {
		m.setError(fault.New(fault.Unsupported, "resize", "bank sizes are fixed in direct mode"))
		return m, nil
	}
	fields := make([]formField, len(device.Banks))
	for i, b := range device.Banks {
		fields[i] = formField{
			label:       shortBankLabel(b),
			placeholder: fmt.Sprintf("now %d, blank keeps", m.currentSize(b)),
		}
	}
	m.modal = newFormModal(formResize, fmt.Sprintf("Resize device %d", m.snapshot.SlaveID), fields...)
	return m, nil
}

// currentSize prefers the simulator's reported config over the snapshot.
func (m Model) currentSize(b device.Bank) int {
	if m.config.loaded && m.config.err == nil {
		return m.config.cfg.Sizes.Of(b)
	}
	return m.snapshot.Data.Len(b)
}

func (m Model) handleResizeResult(msg resizeResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.failModal(msg.err)
		return m, nil
	}
	m.modal = nil
	m.config = configState{
		loaded: true,
		cfg:    api.SlaveConfig{SlaveID: m.snapshot.SlaveID, Sizes: msg.sizes},
	}
	m.setStatus("Bank sizes updated")
	return m, nil
}

// parseResizeForm reads one field per bank in device.Banks order. Blank
// fields leave the bank unchanged.
func parseResizeForm(values []string) (device.SizeDeltas, error) {
	var deltas device.SizeDeltas
	for i, b := range device.Banks {
		if i >= len(values) {
			break
		}
		text := strings.TrimSpace(values[i])
		if text == "" {
			continue
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return device.SizeDeltas{}, fault.New(fault.Validation, "resize", "%s: %q is not an integer", b.Label(), text)
		}
		deltas.Set(b, n)
	}
	if err := deltas.Validate(); err != nil {
		return device.SizeDeltas{}, err
	}
	return deltas, nil
}

func shortBankLabel(b device.Bank) string {
	switch b {
	case device.Coils:
		return "Coils"
	case device.DiscreteInputs:
		return "Discrete"
	case device.HoldingRegisters:
		return "Holding"
	default:
		return "Input"
	}
}

func (m Model) renderConfig() string {
	styles := m.theme.Styles()
	var lines []string
	switch {
	case !m.config.loaded:
		lines = []string{styles.MutedText.Render("Loading...")}
	case m.config.err != nil:
		lines = []string{styles.DangerText.Render(statusText(m.config.err))}
	default:
		lines = append(lines, fmt.Sprintf("Device %d", m.config.cfg.SlaveID), "")
		for _, b := range device.Banks {
			lines = append(lines, fmt.Sprintf("  %-18s %6d", b.Label(), m.config.cfg.Sizes.Of(b)))
		}
	}
	lines = append(lines, "")
	if m.direct {
		lines = append(lines, styles.MutedText.Render("Bank sizes come from the config file in direct mode"))
	} else {
		lines = append(lines, styles.MutedText.Render("enter to resize banks (0-65536 each)"))
	}
	return m.renderTitledBox("Bank configuration", strings.Join(lines, "\n"), m.width, m.contentHeight(), true)
}
