package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines colors and styles for the UI.
type Theme struct {
	Name string

	Background string // behind modals and help
	Surface    string // header and command bar
	SurfaceAlt string // unfocused panes
	FocusBg    string // focused pane

	SelectionBg   string
	SelectionText string

	Border      string
	BorderFocus string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string // coils that are ON
	Warning string
	Danger  string

	// BadgeColors colors the channel state badge and the bank titles,
	// keyed by notify state name or bank key.
	BadgeColors map[string]string
}

// palette is the raw color set a theme is derived from. Roles are assigned
// once in theme(), so every palette lights the same parts of the console.
type palette struct {
	name                        string
	ink, base, raised, focus    string // darkest to lightest backgrounds
	selection, line             string
	fg, comment, dim            string
	blue, cyan, green           string
	yellow, red, violet, orange string
}

func (p palette) theme() Theme {
	return Theme{
		Name:          p.name,
		Background:    p.ink,
		Surface:       p.base,
		SurfaceAlt:    p.raised,
		FocusBg:       p.focus,
		SelectionBg:   p.selection,
		SelectionText: p.fg,
		Border:        p.line,
		BorderFocus:   p.blue,
		Text:          p.fg,
		Muted:         p.comment,
		Faint:         p.dim,
		Accent:        p.blue,
		Success:       p.green,
		Warning:       p.yellow,
		Danger:        p.red,
		BadgeColors: map[string]string{
			"open":              p.green,
			"connecting":        p.yellow,
			"closed":            p.red,
			"direct":            p.dim,
			"coils":             p.blue,
			"discrete_inputs":   p.cyan,
			"holding_registers": p.violet,
			"input_registers":   p.orange,
		},
	}
}

// Upstream palettes: EdenEast/nightfox.nvim, rebelot/kanagawa.nvim and the
// Tailwind slate/sky scale.
var palettes = []palette{
	{
		name: "Nightfox",
		ink:  "#131a24", base: "#192330", raised: "#212e3f", focus: "#29394f",
		selection: "#2b3b51", line: "#39506d",
		fg: "#cdcecf", comment: "#738091", dim: "#71839b",
		blue: "#719cd6", cyan: "#63cdcf", green: "#81b29a",
		yellow: "#dbc074", red: "#c94f6d", violet: "#9d79d6", orange: "#f4a261",
	},
	{
		name: "Kanagawa",
		ink:  "#16161D", base: "#1F1F28", raised: "#2A2A37", focus: "#363646",
		selection: "#2D4F67", line: "#54546D",
		fg: "#DCD7BA", comment: "#C8C093", dim: "#727169",
		blue: "#7E9CD8", cyan: "#7FB4CA", green: "#98BB6C",
		yellow: "#E6C384", red: "#E46876", violet: "#957FB8", orange: "#FFA066",
	},
	{
		name: "Slate",
		ink:  "#020617", base: "#0f172a", raised: "#1e293b", focus: "#283548",
		selection: "#0284c7", line: "#334155",
		fg: "#f1f5f9", comment: "#94a3b8", dim: "#64748b",
		blue: "#38bdf8", cyan: "#06b6d4", green: "#22c55e",
		yellow: "#f59e0b", red: "#ef4444", violet: "#a78bfa", orange: "#fb923c",
	},
}

// GetTheme returns a theme by name, falling back to the first palette.
func GetTheme(name string) Theme {
	for _, p := range palettes {
		if p.name == name {
			return p.theme()
		}
	}
	return palettes[0].theme()
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) string {
	for i, p := range palettes {
		if p.name == current {
			return palettes[(i+1)%len(palettes)].name
		}
	}
	return palettes[0].name
}

// ThemeNames returns available theme names in cycle order.
func ThemeNames() []string {
	names := make([]string, len(palettes))
	for i, p := range palettes {
		names[i] = p.name
	}
	return names
}

// Styles holds the Lipgloss styles the views render with.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style

	Header lipgloss.Style
	Logo   lipgloss.Style

	badgeColors map[string]string
	background  string
	muted       string
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// Styles builds the style set for t.
func (t Theme) Styles() Styles {
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		Header: fg(t.Text).
			Background(lipgloss.Color(t.Surface)).
			Padding(0, 1),
		Logo: fg(t.Warning).Bold(true),

		badgeColors: t.BadgeColors,
		background:  t.Background,
		muted:       t.Muted,
	}
}

// BadgeStyle returns the inverted badge style for a channel state or bank key.
func (s Styles) BadgeStyle(name string) lipgloss.Style {
	color := s.badgeColors[name]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// WithBackground returns a copy of s whose styles all paint bgColor.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)
	out := s
	for _, st := range []*lipgloss.Style{
		&out.Text, &out.MutedText, &out.FaintText, &out.AccentText,
		&out.WarningText, &out.DangerText, &out.Header, &out.Logo,
	} {
		*st = st.Background(bg)
	}
	return out
}
