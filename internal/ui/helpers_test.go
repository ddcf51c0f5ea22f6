package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
)

func TestNeighborDevice(t *testing.T) {
	ids := []int{1, 3, 7}
	tests := []struct {
		current, delta, want int
	}{
		{3, 1, 7},
		{7, 1, 1},
		{1, -1, 7},
		{3, -1, 1},
		{99, 1, 1}, // unknown current falls back to the first device
	}
	for _, tt := range tests {
		got, ok := neighborDevice(ids, tt.current, tt.delta)
		if !ok || got != tt.want {
			t.Fatalf("neighborDevice(%v, %d, %d) = %d, %v; want %d", ids, tt.current, tt.delta, got, ok, tt.want)
		}
	}
	if _, ok := neighborDevice(nil, 1, 1); ok {
		t.Fatalf("neighborDevice on an empty list should report false")
	}
}

func TestWindowStart(t *testing.T) {
	tests := []struct {
		cursor, n, rows, want int
	}{
		{0, 5, 10, 0},
		{0, 100, 10, 0},
		{50, 100, 10, 45},
		{99, 100, 10, 90},
	}
	for _, tt := range tests {
		if got := windowStart(tt.cursor, tt.n, tt.rows); got != tt.want {
			t.Fatalf("windowStart(%d, %d, %d) = %d, want %d", tt.cursor, tt.n, tt.rows, got, tt.want)
		}
	}
}

func TestFormatCell(t *testing.T) {
	if got := formatCell(device.Coils, 3, device.BitValue(true), 40); got != "    3  ON" {
		t.Fatalf("coil cell = %q", got)
	}
	got := formatCell(device.HoldingRegisters, 0, device.WordValue(0x4142), 40)
	if !strings.Contains(got, "16706") || !strings.Contains(got, "0x4142") || !strings.Contains(got, `"AB"`) {
		t.Fatalf("register cell = %q, want decimal, hex and text", got)
	}
	narrow := formatCell(device.HoldingRegisters, 0, device.WordValue(0x4142), 20)
	if strings.Contains(narrow, `"AB"`) {
		t.Fatalf("narrow register cell should drop the text column: %q", narrow)
	}
	if got := formatCell(device.InputRegisters, 1, device.WordValue(1), 40); strings.Contains(got, `"`) {
		t.Fatalf("non-text register should not show text: %q", got)
	}
}

func TestParseResizeForm(t *testing.T) {
	deltas, err := parseResizeForm([]string{"50", "", " ", "0"})
	if err != nil {
		t.Fatalf("parseResizeForm returned error: %v", err)
	}
	if n, ok := deltas.Get(device.Coils); !ok || n != 50 {
		t.Fatalf("coils = %d, %v; want 50", n, ok)
	}
	if _, ok := deltas.Get(device.DiscreteInputs); ok {
		t.Fatalf("blank field should be omitted")
	}
	if n, ok := deltas.Get(device.InputRegisters); !ok || n != 0 {
		t.Fatalf("input registers = %d, %v; want 0", n, ok)
	}

	if _, err := parseResizeForm([]string{"ten"}); fault.Of(err) != fault.Validation {
		t.Fatalf("non-integer: got %v, want validation error", err)
	}
	if _, err := parseResizeForm([]string{"70000"}); fault.Of(err) != fault.Validation {
		t.Fatalf("too large: got %v, want validation error", err)
	}

	empty, err := parseResizeForm([]string{"", "", "", ""})
	if err != nil || !empty.IsEmpty() {
		t.Fatalf("all blank = %+v, %v; want empty deltas", empty, err)
	}
}

func TestReadRecordFromSnapshot(t *testing.T) {
	snap := device.NewSnapshot(1, nil, nil, []uint16{0x4142, 0x4300}, nil)
	lines, err := readRecord(snap, 0, 3)
	if err != nil {
		t.Fatalf("readRecord returned error: %v", err)
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"0-2", "16706, 17152, 0", `"ABC"`, "0x4142 0x4300 0x0000"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("readRecord output missing %q:\n%s", want, joined)
		}
	}

	numeric := device.NewSnapshot(1, nil, nil, []uint16{1, 2}, nil)
	lines, _ = readRecord(numeric, 0, 2)
	if len(lines) != 2 {
		t.Fatalf("numeric record should not show text lines: %v", lines)
	}

	if _, err := readRecord(snap, 0, 0); fault.Of(err) != fault.Validation {
		t.Fatalf("zero length: got %v, want validation error", err)
	}
}

func TestChannelLabel(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		state    string
		retryAt  time.Time
		text     string
		badgeKey string
	}{
		{"open", time.Time{}, "LIVE", "open"},
		{"connecting", time.Time{}, "CONNECTING", "connecting"},
		{"closed", now.Add(3 * time.Second), "CLOSED retry 3s", "closed"},
		{"closed", now.Add(-time.Second), "CLOSED retry 0s", "closed"},
		{"closed", time.Time{}, "CLOSED", "closed"},
		{"", time.Time{}, "CONNECTING", "connecting"},
	}
	for _, tt := range tests {
		text, badge := channelLabel(tt.state, tt.retryAt, now)
		if text != tt.text || badge != tt.badgeKey {
			t.Fatalf("channelLabel(%q) = %q/%q, want %q/%q", tt.state, text, badge, tt.text, tt.badgeKey)
		}
	}
}

func TestStatsLines(t *testing.T) {
	lines := statsLines(api.Stats{
		TotalRequests:      3,
		SuccessfulRequests: 2,
		FunctionCodes:      map[string]int{"FC16": 1, "FC03": 2},
	})
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "66.67%") {
		t.Fatalf("stats missing success rate:\n%s", joined)
	}
	if strings.Index(joined, "FC03") > strings.Index(joined, "FC16") {
		t.Fatalf("function codes not sorted numerically:\n%s", joined)
	}

	empty := strings.Join(statsLines(api.Stats{}), "\n")
	if !strings.Contains(empty, "0.00%") || !strings.Contains(empty, "No function codes") {
		t.Fatalf("empty stats rendered as:\n%s", empty)
	}
}

func TestHistoryLines(t *testing.T) {
	lines := historyLines([]api.HistoryRecord{
		{Timestamp: "not a time", SlaveID: 3, DataType: "coils", Address: 5, OldValue: false, NewValue: true, Source: "api"},
		{SlaveID: 1, DataType: "holding_registers", Address: 2, OldValue: float64(1), NewValue: float64(7)},
	})
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "not a time") || !strings.Contains(lines[0], "OFF -> ON") || !strings.Contains(lines[0], "(api)") {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Holding Registers") || !strings.Contains(lines[1], "1 -> 7") || !strings.Contains(lines[1], "(-)") {
		t.Fatalf("line 1 = %q", lines[1])
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 8); got != "hello..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("héllo", 10); got != "héllo" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Fatalf("truncate zero = %q", got)
	}
}

func TestParseLengthBounds(t *testing.T) {
	tests := []struct {
		raw     string
		address int
		want    int
		wantErr bool
	}{
		{"", 0, defaultStringLength, false},
		{"", 65530, 6, false},
		{"4", 100, 4, false},
		{"65536", 0, 65536, false},
		{"65537", 0, 0, true},
		{"2", 65535, 0, true},
		{"99999999999999", 0, 0, true},
		{"0", 0, 0, true},
		{"-3", 0, 0, true},
		{"ten", 0, 0, true},
	}
	for _, tt := range tests {
		got, err := parseLength(tt.raw, tt.address)
		if tt.wantErr {
			if fault.Of(err) != fault.Validation {
				t.Fatalf("parseLength(%q, %d) error = %v, want validation error", tt.raw, tt.address, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("parseLength(%q, %d) = %d, %v; want %d", tt.raw, tt.address, got, err, tt.want)
		}
	}
}

func TestReadRecordRejectsBlockPastAddressSpace(t *testing.T) {
	_, err := readRecord(device.Snapshot{}, 0, 99999999999999)
	if fault.Of(err) != fault.Validation {
		t.Fatalf("huge length: got %v, want validation error", err)
	}
	_, err = readRecord(device.Snapshot{}, 65535, 2)
	if fault.Of(err) != fault.Validation {
		t.Fatalf("block past 65535: got %v, want validation error", err)
	}
}
