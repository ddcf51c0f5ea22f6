package fault

import (
	"errors"
	"strings"
)

var statusPrefix = map[Code]string{
	Transport:      "Sync failed",
	Validation:     "Invalid input",
	CodecRange:     "Not representable",
	SessionBusy:    "Another edit is open",
	NoSession:      "No edit in progress",
	UnwritableBank: "Bank is read-only",
	NoOpResize:     "Nothing to resize",
	InvalidValue:   "Invalid value",
	AddressRange:   "Address out of range",
	NoDevice:       "No device selected",
	Unsupported:    "Not supported",
}

// Status renders err as a one-line message for the status bar. It returns ""
// for nil errors and for stale responses, which are never shown to the user.
func Status(err error) string {
	if err == nil {
		return ""
	}
	code := Of(err)
	if code == StaleResponse {
		return ""
	}
	detail := detailOf(err)
	prefix, ok := statusPrefix[code]
	if !ok {
		if detail == "" {
			return err.Error()
		}
		return detail
	}
	if detail == "" {
		return prefix
	}
	return prefix + ": " + detail
}

func detailOf(err error) string {
	var e *E
	if !errors.As(err, &e) {
		if _, ok := err.(Code); ok {
			return ""
		}
		return strings.TrimSpace(err.Error())
	}
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		if _, ok := e.Err.(Code); ok {
			return ""
		}
		return strings.TrimSpace(e.Err.Error())
	}
	return ""
}
