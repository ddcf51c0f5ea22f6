package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseTimeLayouts(t *testing.T) {
	assert.False(t, parseTime("2025-12-13T10:11:12Z").IsZero())

	got := parseTime("2025-01-01T12:00:00.123456")
	require.False(t, got.IsZero())
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, 123456000, got.Nanosecond())

	assert.False(t, parseTime("2025-01-01T12:00:00").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.True(t, parseTime("").IsZero())
}

func TestSortHistoryNewestFirst(t *testing.T) {
	records := []HistoryRecord{
		{Timestamp: "2025-01-01T12:00:00", Source: "a"},
		{Timestamp: "garbage", Source: "bad"},
		{Timestamp: "2025-01-01T12:00:02", Source: "c"},
		{Timestamp: "2025-01-01T12:00:01", Source: "b1"},
		{Timestamp: "2025-01-01T12:00:01", Source: "b2"},
	}
	SortHistoryNewestFirst(records)

	var order []string
	for _, r := range records {
		order = append(order, r.Source)
	}
	assert.Equal(t, []string{"c", "b1", "b2", "a", "bad"}, order)
}

func TestHistoryRecordValues(t *testing.T) {
	var rec HistoryRecord
	require.NoError(t, json.Unmarshal([]byte(`{"data_type":"holding_registers","old_value":7,"new_value":65535}`), &rec))
	assert.Equal(t, "7", rec.OldText())
	assert.Equal(t, "65535", rec.NewText())
	assert.Equal(t, "Holding Registers", rec.BankLabel())

	rec = HistoryRecord{DataType: "fifo", OldValue: false, NewValue: true}
	assert.Equal(t, "OFF", rec.OldText())
	assert.Equal(t, "ON", rec.NewText())
	assert.Equal(t, "fifo", rec.BankLabel())
	assert.Equal(t, "-", HistoryRecord{}.OldText())
}

func TestStatsHelpers(t *testing.T) {
	assert.Equal(t, "0.00%", Stats{}.FormatSuccessRate())

	s := Stats{TotalRequests: 3, SuccessfulRequests: 2, FunctionCodes: map[string]int{
		"FC16": 1, "FC03": 5, "FC01": 2, "bogus": 9, "FC99": 1,
	}}
	assert.Equal(t, "66.67%", s.FormatSuccessRate())

	rows := s.SortedFunctionCodes()
	var codes []string
	for _, r := range rows {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{"FC01", "FC03", "FC16", "FC99", "bogus"}, codes)
	assert.Equal(t, "Read Coils", rows[0].Label)
	assert.Equal(t, "unknown function", rows[3].Label)
	assert.Equal(t, "unknown function", rows[4].Label)
}

func TestFunctionCodeLabel(t *testing.T) {
	assert.Equal(t, "Read Holding Registers", FunctionCodeLabel("FC03"))
	assert.Equal(t, "Read FIFO Queue", FunctionCodeLabel("FC24"))
	assert.Equal(t, "unknown function", FunctionCodeLabel("FC09"))
	assert.Equal(t, "unknown function", FunctionCodeLabel(""))
}

func TestExportHistory(t *testing.T) {
	records := []HistoryRecord{{
		Timestamp: "2025-01-01T12:00:00", SlaveID: 3, DataType: "coils",
		Address: 1, OldValue: false, NewValue: true, Source: "web",
	}}

	var buf bytes.Buffer
	require.NoError(t, ExportHistory(&buf, records, "json"))
	var back []HistoryRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, records, back)

	buf.Reset()
	require.NoError(t, ExportHistory(&buf, records, "YML"))
	var node []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &node))
	require.Len(t, node, 1)
	assert.Equal(t, "coils", node[0]["data_type"])
	assert.Equal(t, true, node[0]["new_value"])

	buf.Reset()
	require.NoError(t, ExportHistory(&buf, nil, "json"))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))

	assert.Error(t, ExportHistory(&buf, records, "csv"))
}

func TestExportFileName(t *testing.T) {
	now := time.UnixMilli(1735732800123)
	assert.Equal(t, "mbdeck_history_1735732800123.json", ExportFileName("", now))
	assert.Equal(t, "mbdeck_history_1735732800123.yaml", ExportFileName("yaml", now))
}
