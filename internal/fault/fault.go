// Package fault defines the error codes shared by the console core and the
// status strings the UI shows for them.
package fault

import (
	"errors"
	"fmt"
)

// Code is a stable error identifier. It is comparable and implements error,
// so a bare Code can be returned and matched with errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK             Code = "ok"
	Transport      Code = "transport"
	Validation     Code = "validation"
	CodecRange     Code = "codec_range"
	SessionBusy    Code = "session_busy"
	NoSession      Code = "no_session"
	UnwritableBank Code = "unwritable_bank"
	NoOpResize     Code = "noop_resize"
	InvalidValue   Code = "invalid_value"
	AddressRange   Code = "address_range"
	NoDevice       Code = "no_device"
	StaleResponse  Code = "stale_response"
	Unsupported    Code = "unsupported"
	Error          Code = "error"
)

// E carries a Code together with the operation, a detail message and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.C, e.Msg, e.Err)
	case e.Msg != "":
		return string(e.C) + ": " + e.Msg
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.C, e.Err)
	}
	return string(e.C)
}

func (e *E) Unwrap() error { return e.Err }

// Is lets errors.Is(err, fault.Transport) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

func (e *E) Code() Code { return e.C }

// New builds an *E with a formatted message.
func New(c Code, op, format string, args ...any) error {
	return &E{C: c, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Code to err. A nil err yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts the Code carried by err, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
