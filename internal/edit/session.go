// Package edit enforces a single in-progress value edit.
//
// A Manager is Idle or Editing. Begin opens a session for one writable cell
// and fails with fault.SessionBusy while another is open, leaving that one
// untouched. Commit parses the operator's text, writes through the mirror and
// returns to Idle only when the write succeeded; a validation or transport
// failure keeps the session open so the operator can correct it or cancel.
// While a write is in flight the session can be neither cancelled nor
// replaced.
package edit

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
)

// Writer performs the single-value write. *mirror.Mirror implements it.
type Writer interface {
	WriteSingle(ctx context.Context, bank device.Bank, address int, value device.Value) error
}

// Session is the cell being edited and its value when the edit began.
type Session struct {
	Bank       device.Bank
	Address    int
	PriorValue device.Value
}

// Initial renders the prior value the way the edit field is prefilled.
func (s Session) Initial() string {
	if s.Bank.IsBit() {
		if s.PriorValue.Bit {
			return "true"
		}
		return "false"
	}
	return strconv.Itoa(int(s.PriorValue.Word))
}

// Manager owns the edit session.
type Manager struct {
	writer Writer
	logger *zap.Logger

	mu         sync.Mutex
	session    *Session
	committing bool
}

// NewManager returns an idle Manager writing through w.
func NewManager(w Writer, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{writer: w, logger: logger.Named("edit")}
}

// Begin opens a session for bank[address]. bankLen is the bank length in the
// current snapshot.
func (m *Manager) Begin(bank device.Bank, address int, prior device.Value, bankLen int) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return Session{}, fault.New(fault.SessionBusy, "begin",
			"finish editing %s[%d] first", m.session.Bank.Label(), m.session.Address)
	}
	if !bank.Writable() {
		return Session{}, fault.New(fault.UnwritableBank, "begin", "%s is read-only", bank.Label())
	}
	if address < 0 || address >= bankLen {
		return Session{}, fault.New(fault.AddressRange, "begin", "address %d outside %s of length %d", address, bank.Label(), bankLen)
	}

	s := Session{Bank: bank, Address: address, PriorValue: prior}
	m.session = &s
	m.logger.Debug("edit started", zap.String("bank", bank.Key()), zap.Int("address", address))
	return s, nil
}

// Active returns the open session, if any.
func (m *Manager) Active() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Commit parses raw for the session's bank and writes it. Coils read exactly
// "true" and "1" as ON and anything else as OFF. Registers need an integer in
// 0-65535, otherwise fault.InvalidValue is returned and nothing is written.
func (m *Manager) Commit(ctx context.Context, raw string) error {
	m.mu.Lock()
	s := m.session
	if s == nil {
		m.mu.Unlock()
		return fault.NoSession
	}
	if m.committing {
		m.mu.Unlock()
		return busy("commit", s)
	}
	value, err := ParseValue(s.Bank, raw)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.committing = true
	m.mu.Unlock()

	err = m.writer.WriteSingle(ctx, s.Bank, s.Address, value)

	m.mu.Lock()
	m.committing = false
	if err == nil && m.session == s {
		m.session = nil
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.logger.Debug("edit committed", zap.String("bank", s.Bank.Key()), zap.Int("address", s.Address))
	return nil
}

// Cancel closes the session without writing. It is a no-op when idle and
// fails with fault.SessionBusy while a commit is writing.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committing {
		return busy("cancel", m.session)
	}
	m.session = nil
	return nil
}

func busy(op string, s *Session) error {
	return fault.New(fault.SessionBusy, op, "write to %s[%d] in progress", s.Bank.Label(), s.Address)
}

// ParseValue converts operator text to a value for bank.
func ParseValue(bank device.Bank, raw string) (device.Value, error) {
	if bank.IsBit() {
		return device.BitValue(raw == "true" || raw == "1"), nil
	}
	text := strings.TrimSpace(raw)
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return device.Value{}, fault.New(fault.InvalidValue, "commit", "%q is not an integer", text)
	}
	if n < 0 || n > 0xFFFF {
		return device.Value{}, fault.New(fault.InvalidValue, "commit", "%d is outside 0-65535", n)
	}
	return device.WordValue(uint16(n)), nil
}
