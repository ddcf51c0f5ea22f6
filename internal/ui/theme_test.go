package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	if names[0] != "Nightfox" || names[1] != "Kanagawa" || names[2] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Nightfox Kanagawa Slate]", names)
	}
}

func TestNextTheme(t *testing.T) {
	cases := map[string]string{
		"Nightfox": "Kanagawa",
		"Kanagawa": "Slate",
		"Slate":    "Nightfox",
		"Unknown":  "Nightfox",
	}
	for in, want := range cases {
		if got := NextTheme(in); got != want {
			t.Fatalf("NextTheme(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestGetTheme_FallsBackToNightfox(t *testing.T) {
	if got := GetTheme("Slate").Name; got != "Slate" {
		t.Fatalf("GetTheme(Slate).Name = %q, want Slate", got)
	}
	if got := GetTheme("Dracula").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Dracula).Name = %q, want Nightfox (fallback)", got)
	}
}

func TestBadgeColorsCoverStatesAndBanks(t *testing.T) {
	keys := []string{"open", "connecting", "closed", "direct",
		"coils", "discrete_inputs", "holding_registers", "input_registers"}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, k := range keys {
			if th.BadgeColors[k] == "" {
				t.Fatalf("theme %s has no badge color for %q", name, k)
			}
		}
	}
}

func TestEveryPaletteFillsEveryRole(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		roles := map[string]string{
			"Background": th.Background, "Surface": th.Surface, "SurfaceAlt": th.SurfaceAlt,
			"FocusBg": th.FocusBg, "SelectionBg": th.SelectionBg, "SelectionText": th.SelectionText,
			"Border": th.Border, "BorderFocus": th.BorderFocus, "Text": th.Text,
			"Muted": th.Muted, "Faint": th.Faint, "Accent": th.Accent,
			"Success": th.Success, "Warning": th.Warning, "Danger": th.Danger,
		}
		for role, color := range roles {
			if len(color) != 7 || color[0] != '#' {
				t.Fatalf("theme %s role %s = %q, want #rrggbb", name, role, color)
			}
		}
		if th.BadgeColors["open"] != th.Success || th.BadgeColors["closed"] != th.Danger {
			t.Fatalf("theme %s: channel badges should follow the success and danger colors", name)
		}
	}
}
