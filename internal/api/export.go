package api

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Export formats understood by ExportHistory.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ExportHistory writes records to w as an indented JSON array or a YAML
// sequence.
func ExportHistory(w io.Writer, records []HistoryRecord, format string) error {
	if records == nil {
		records = []HistoryRecord{}
	}
	switch normalizeFormat(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported export format %q (want json or yaml)", format)
}

// ExportFileName returns the default export file name for format at now.
func ExportFileName(format string, now time.Time) string {
	ext := normalizeFormat(format)
	if ext == "" {
		ext = FormatJSON
	}
	return fmt.Sprintf("mbdeck_history_%d.%s", now.UnixMilli(), ext)
}

func normalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	}
	return ""
}
