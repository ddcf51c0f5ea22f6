package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// formKind says what a submitted form does.
type formKind int

const (
	formEdit formKind = iota
	formWriteString
	formReadString
	formReadRecord
	formWriteRecord
	formResize
)

// formField describes one input of a form.
type formField struct {
	label       string
	placeholder string
	value       string
}

// formSubmitMsg carries the raw field values of a submitted form. The form
// stays open until the model closes it, so a failed submit can be corrected.
type formSubmitMsg struct {
	kind   formKind
	values []string
}

// formModal is a small stack of labelled text inputs.
type formModal struct {
	kind   formKind
	title  string
	inputs []textinput.Model
	labels []string
	focus  int
	err    string
	busy   bool
}

func newFormModal(kind formKind, title string, fields ...formField) *formModal {
	f := &formModal{kind: kind, title: title}
	for i, field := range fields {
		in := textinput.New()
		in.Placeholder = field.placeholder
		in.CharLimit = 256
		in.Width = 36
		in.SetValue(field.value)
		in.CursorEnd()
		if i == 0 {
			in.Focus()
		}
		f.inputs = append(f.inputs, in)
		f.labels = append(f.labels, field.label)
	}
	return f
}

// Values returns the current text of every field.
func (f *formModal) Values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = in.Value()
	}
	return out
}

func (f *formModal) setError(msg string) {
	f.err = msg
	f.busy = false
}

func (f *formModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return f, nil, false
	}
	switch {
	case key.Matches(km, keys.Escape):
		return f, nil, true

	case key.Matches(km, keys.Confirm):
		if f.busy {
			return f, nil, false
		}
		f.busy = true
		f.err = ""
		submit := formSubmitMsg{kind: f.kind, values: f.Values()}
		return f, func() tea.Msg { return submit }, false

	case key.Matches(km, keys.Tab), km.String() == "down":
		f.move(1)
		return f, nil, false

	case key.Matches(km, keys.ShiftTab), km.String() == "up":
		f.move(-1)
		return f, nil, false
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd, false
}

func (f *formModal) move(delta int) {
	if len(f.inputs) < 2 {
		return
	}
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *formModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(f.title))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 40)))
	b.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted)).Width(10)
	for i, in := range f.inputs {
		label := labelStyle
		if i == f.focus {
			label = label.Foreground(lipgloss.Color(theme.Accent))
		}
		b.WriteString(label.Render(f.labels[i]))
		b.WriteString(in.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case f.busy:
		b.WriteString(styles.WarningText.Render("Working..."))
	case f.err != "":
		b.WriteString(styles.DangerText.Render(f.err))
	default:
		b.WriteString(styles.FaintText.Render("enter submit · tab next field · esc cancel"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Width(56).
		Render(b.String())

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
