package mirror

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
	"github.com/five82/mbdeck/internal/state"
)

// Backend is the remote side of the mirror. *api.Client and *direct.Backend
// implement it.
type Backend interface {
	FetchData(ctx context.Context, slaveID int) (device.Snapshot, error)
	WriteCoil(ctx context.Context, slaveID, address int, value bool) error
	WriteRegister(ctx context.Context, slaveID, address int, value uint16) error
	Resize(ctx context.Context, req api.ResizeRequest) (api.ResizeResult, error)
}

// Mirror keeps the last-known snapshot of the selected device. It is the only
// writer of device data in the store.
type Mirror struct {
	backend Backend
	store   *state.Store
	logger  *zap.Logger

	mu          sync.Mutex
	slaveID     int
	epoch       uint64
	issued      uint64
	applied     uint64
	invalidator func()
}

// New builds a Mirror publishing into store. A nil logger discards logs.
func New(backend Backend, store *state.Store, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		backend: backend,
		store:   store,
		logger:  logger.Named("mirror"),
	}
}

// SetInvalidator routes refresh requests caused by Select, WriteSingle and
// Resize to fn instead of refreshing inline. The reconciliation driver
// installs its Trigger here so those refreshes are coalesced.
func (m *Mirror) SetInvalidator(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidator = fn
}

// SlaveID returns the selected device, or 0 when none is selected.
func (m *Mirror) SlaveID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slaveID
}

// Current returns the last applied snapshot and whether one exists.
func (m *Mirror) Current() (device.Snapshot, bool) {
	snap := m.store.Snapshot()
	return snap.Data, snap.HasData
}

// Select switches to device slaveID, drops the previous snapshot and requests
// a refresh. Responses still in flight for the old device are discarded when
// they arrive.
func (m *Mirror) Select(ctx context.Context, slaveID int) error {
	if slaveID <= 0 {
		return fault.New(fault.Validation, "select", "device id must be positive, got %d", slaveID)
	}
	m.mu.Lock()
	m.slaveID = slaveID
	m.epoch++
	m.store.Select(slaveID)
	m.mu.Unlock()

	m.logger.Info("device selected", zap.Int("slave_id", slaveID))
	return m.invalidate(ctx)
}

// Refresh fetches the selected device and replaces the snapshot. Every call
// takes the next sequence number; a response whose sequence is not newer
// than the last applied one, or that was issued before the latest Select,
// is discarded and reported as fault.StaleResponse. On a fetch error the
// previous snapshot is kept and the error is recorded in the store.
func (m *Mirror) Refresh(ctx context.Context) error {
	m.mu.Lock()
	slaveID := m.slaveID
	if slaveID <= 0 {
		m.mu.Unlock()
		return fault.NoDevice
	}
	epoch := m.epoch
	m.issued++
	seq := m.issued
	m.mu.Unlock()

	data, err := m.backend.FetchData(ctx, slaveID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq <= m.applied || epoch != m.epoch {
		m.logger.Debug("stale response discarded",
			zap.Int("slave_id", slaveID),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", m.applied),
		)
		return fault.New(fault.StaleResponse, "refresh", "seq %d for device %d superseded", seq, slaveID)
	}
	m.applied = seq

	if err != nil {
		m.store.Update(device.Snapshot{}, err)
		m.logger.Warn("refresh failed",
			zap.Int("slave_id", slaveID),
			zap.Uint64("seq", seq),
			zap.Error(err),
		)
		return err
	}
	m.store.Update(data, nil)
	m.logger.Debug("snapshot applied", zap.Int("slave_id", slaveID), zap.Uint64("seq", seq))
	return nil
}

// WriteSingle writes one coil or holding register. Read-only banks fail with
// fault.UnwritableBank before any network call. The local snapshot is not
// patched; a refresh is requested instead, so the view shows what the device
// actually holds.
func (m *Mirror) WriteSingle(ctx context.Context, bank device.Bank, address int, value device.Value) error {
	if !bank.Writable() {
		return fault.New(fault.UnwritableBank, "write", "%s is read-only", bank.Label())
	}
	slaveID := m.SlaveID()
	if slaveID <= 0 {
		return fault.NoDevice
	}
	if err := m.checkAddress(bank, address); err != nil {
		return err
	}

	var err error
	if bank == device.Coils {
		err = m.backend.WriteCoil(ctx, slaveID, address, value.Bit)
	} else {
		err = m.backend.WriteRegister(ctx, slaveID, address, value.Word)
	}
	if err != nil {
		m.logger.Warn("write failed",
			zap.Int("slave_id", slaveID),
			zap.String("bank", bank.Key()),
			zap.Int("address", address),
			zap.Error(err),
		)
		return err
	}
	m.logger.Info("value written",
		zap.Int("slave_id", slaveID),
		zap.String("bank", bank.Key()),
		zap.Int("address", address),
		zap.String("value", value.Format(bank)),
	)
	m.afterChange(ctx)
	return nil
}

// Resize changes bank lengths of the selected device. When every delta is
// unset it fails with fault.NoOpResize without touching the network.
func (m *Mirror) Resize(ctx context.Context, deltas device.SizeDeltas) (device.Sizes, error) {
	if deltas.IsEmpty() {
		return device.Sizes{}, fault.New(fault.NoOpResize, "resize", "no bank sizes given")
	}
	if err := deltas.Validate(); err != nil {
		return device.Sizes{}, err
	}
	slaveID := m.SlaveID()
	if slaveID <= 0 {
		return device.Sizes{}, fault.NoDevice
	}

	res, err := m.backend.Resize(ctx, api.ResizeRequest{SlaveID: slaveID, SizeDeltas: deltas})
	if err != nil {
		m.logger.Warn("resize failed", zap.Int("slave_id", slaveID), zap.Error(err))
		return device.Sizes{}, err
	}
	m.logger.Info("device resized",
		zap.Int("slave_id", slaveID),
		zap.Int("coils", res.NewConfig.Coils),
		zap.Int("discrete_inputs", res.NewConfig.DiscreteInputs),
		zap.Int("holding_registers", res.NewConfig.HoldingRegisters),
		zap.Int("input_registers", res.NewConfig.InputRegisters),
	)
	m.afterChange(ctx)
	return res.NewConfig, nil
}

// checkAddress rejects addresses outside the bank as last observed. Without
// a snapshot only negative addresses are rejected.
func (m *Mirror) checkAddress(bank device.Bank, address int) error {
	if address < 0 {
		return fault.New(fault.AddressRange, "write", "address %d is negative", address)
	}
	data, ok := m.Current()
	if !ok {
		return nil
	}
	if n := data.Len(bank); address >= n {
		return fault.New(fault.AddressRange, "write", "address %d outside %s of length %d", address, bank.Label(), n)
	}
	return nil
}

// afterChange requests a refresh once a mutation succeeded. A failing inline
// refresh is already recorded in the store and does not fail the mutation.
func (m *Mirror) afterChange(ctx context.Context) {
	_ = m.invalidate(ctx)
}

func (m *Mirror) invalidate(ctx context.Context) error {
	m.mu.Lock()
	fn := m.invalidator
	m.mu.Unlock()
	if fn != nil {
		fn()
		return nil
	}
	err := m.Refresh(ctx)
	if fault.Of(err) == fault.StaleResponse {
		return nil
	}
	return err
}
