package api

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/five82/mbdeck/internal/device"
)

// historyTimestampLayout matches isoformat() without a zone; a fractional
// second is accepted after the seconds field.
const historyTimestampLayout = "2006-01-02T15:04:05"

type slavesResponse struct {
	Slaves []int `json:"slaves"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type writeRequest struct {
	SlaveID int `json:"slave_id"`
	Address int `json:"address"`
	Value   any `json:"value"`
}

type writeStringRequest struct {
	SlaveID int    `json:"slave_id"`
	Address int    `json:"address"`
	Text    string `json:"text"`
}

type historyResponse struct {
	History []HistoryRecord `json:"history"`
}

// DataResponse mirrors /api/data for a single slave.
type DataResponse struct {
	SlaveID          int      `json:"slave_id"`
	Coils            []bool   `json:"coils"`
	DiscreteInputs   []bool   `json:"discrete_inputs"`
	HoldingRegisters []uint16 `json:"holding_registers"`
	InputRegisters   []uint16 `json:"input_registers"`
}

// Snapshot converts the payload. The requested id wins over the echoed one.
func (d DataResponse) Snapshot(slaveID int) device.Snapshot {
	return device.NewSnapshot(slaveID, d.Coils, d.DiscreteInputs, d.HoldingRegisters, d.InputRegisters)
}

// WriteStringResult mirrors the /api/write/string response.
type WriteStringResult struct {
	TextLength       int    `json:"text_length"`
	RegistersWritten int    `json:"registers_written"`
	AddressRange     string `json:"address_range"`
}

// ReadStringResult mirrors the /api/read/string response.
type ReadStringResult struct {
	Text         string   `json:"text"`
	Length       int      `json:"length"`
	AddressRange string   `json:"address_range"`
	Registers    []uint16 `json:"registers"`
}

// SlaveConfig mirrors /api/config: the bank lengths of one slave.
type SlaveConfig struct {
	SlaveID int `json:"slave_id"`
	device.Sizes
}

// ResizeRequest is the /api/config/resize body.
type ResizeRequest struct {
	SlaveID int `json:"slave_id"`
	device.SizeDeltas
}

// ResizeResult mirrors the /api/config/resize response.
type ResizeResult struct {
	SlaveID   int          `json:"slave_id"`
	NewConfig device.Sizes `json:"new_config"`
}

// HistoryRecord is one value change recorded by the simulator. Values are
// booleans for bit banks and numbers for register banks.
type HistoryRecord struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	SlaveID   int    `json:"slave_id" yaml:"slave_id"`
	DataType  string `json:"data_type" yaml:"data_type"`
	Address   int    `json:"address" yaml:"address"`
	OldValue  any    `json:"old_value" yaml:"old_value"`
	NewValue  any    `json:"new_value" yaml:"new_value"`
	Source    string `json:"source" yaml:"source"`
}

// ParsedTime returns the timestamp, or the zero time when it cannot be parsed.
func (r HistoryRecord) ParsedTime() time.Time {
	return parseTime(r.Timestamp)
}

// OldText renders the previous value.
func (r HistoryRecord) OldText() string { return formatValue(r.OldValue) }

// NewText renders the new value.
func (r HistoryRecord) NewText() string { return formatValue(r.NewValue) }

// BankLabel returns the human name of DataType, falling back to the raw name.
func (r HistoryRecord) BankLabel() string {
	if b, ok := device.ParseBank(r.DataType); ok {
		return b.Label()
	}
	return r.DataType
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case bool:
		if x {
			return "ON"
		}
		return "OFF"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// SortHistoryNewestFirst orders records by timestamp descending. Records with
// equal timestamps keep their relative order and unparseable timestamps sort
// last.
func SortHistoryNewestFirst(records []HistoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].ParsedTime(), records[j].ParsedTime()
		switch {
		case ti.IsZero():
			return false
		case tj.IsZero():
			return true
		}
		return ti.After(tj)
	})
}

// Stats mirrors /api/stats.
type Stats struct {
	TotalRequests      int            `json:"total_requests"`
	SuccessfulRequests int            `json:"successful_requests"`
	FunctionCodes      map[string]int `json:"function_codes"`
}

// SuccessRate returns successful/total as a percentage, 0 when nothing was
// served.
func (s Stats) SuccessRate() float64 {
	if s.TotalRequests <= 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests) * 100
}

// FormatSuccessRate renders SuccessRate with two decimals.
func (s Stats) FormatSuccessRate() string {
	return strconv.FormatFloat(s.SuccessRate(), 'f', 2, 64) + "%"
}

// FunctionCodeCount is one row of the stats table.
type FunctionCodeCount struct {
	Code  string
	Label string
	Count int
}

// SortedFunctionCodes returns the function code counters ordered by numeric
// code. Keys that carry no number sort after the numbered ones by name.
func (s Stats) SortedFunctionCodes() []FunctionCodeCount {
	out := make([]FunctionCodeCount, 0, len(s.FunctionCodes))
	for code, n := range s.FunctionCodes {
		out = append(out, FunctionCodeCount{Code: code, Label: FunctionCodeLabel(code), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		ni, oki := functionCodeNumber(out[i].Code)
		nj, okj := functionCodeNumber(out[j].Code)
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		}
		return out[i].Code < out[j].Code
	})
	return out
}

var functionCodeLabels = map[int]string{
	1:  "Read Coils",
	2:  "Read Discrete Inputs",
	3:  "Read Holding Registers",
	4:  "Read Input Registers",
	5:  "Write Single Coil",
	6:  "Write Single Register",
	7:  "Read Exception Status",
	8:  "Diagnostics",
	11: "Get Comm Event Counter",
	12: "Get Comm Event Log",
	15: "Write Multiple Coils",
	16: "Write Multiple Registers",
	17: "Report Slave ID",
	20: "Read File Record",
	21: "Write File Record",
	22: "Mask Write Register",
	23: "Read/Write Multiple Registers",
	24: "Read FIFO Queue",
}

// FunctionCodeLabel names a stats key such as "FC03".
func FunctionCodeLabel(code string) string {
	n, ok := functionCodeNumber(code)
	if !ok {
		return "unknown function"
	}
	if label, ok := functionCodeLabels[n]; ok {
		return label
	}
	return "unknown function"
}

func functionCodeNumber(code string) (int, bool) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) < 3 || !strings.EqualFold(trimmed[:2], "FC") {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed[2:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(historyTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
