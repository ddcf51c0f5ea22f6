package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
	"github.com/five82/mbdeck/internal/state"
)

type fetchCall struct {
	slaveID int
	release chan struct{}
}

// fakeBackend is an in-memory slave. When gated is set, every FetchData
// announces itself on calls and blocks until its release channel is closed.
type fakeBackend struct {
	mu        sync.Mutex
	banks     map[int]*fakeBanks
	fetches   int
	writes    int
	resizes   int
	fetchErr  error
	writeErr  error
	dropWrite bool

	gated bool
	calls chan fetchCall
}

type fakeBanks struct {
	coils    []bool
	discrete []bool
	holding  []uint16
	input    []uint16
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		banks: map[int]*fakeBanks{
			1: {coils: make([]bool, 4), discrete: make([]bool, 4), holding: []uint16{1, 1}, input: make([]uint16, 2)},
			3: {coils: make([]bool, 10), discrete: make([]bool, 10), holding: make([]uint16, 10), input: make([]uint16, 10)},
		},
		calls: make(chan fetchCall, 8),
	}
}

func (f *fakeBackend) FetchData(ctx context.Context, slaveID int) (device.Snapshot, error) {
	f.mu.Lock()
	f.fetches++
	gated := f.gated
	f.mu.Unlock()

	if gated {
		call := fetchCall{slaveID: slaveID, release: make(chan struct{})}
		f.calls <- call
		select {
		case <-call.release:
		case <-ctx.Done():
			return device.Snapshot{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return device.Snapshot{}, f.fetchErr
	}
	b, ok := f.banks[slaveID]
	if !ok {
		return device.Snapshot{}, fault.New(fault.Transport, "fetch", "slave %d not found", slaveID)
	}
	return device.NewSnapshot(slaveID, b.coils, b.discrete, b.holding, b.input), nil
}

func (f *fakeBackend) WriteCoil(_ context.Context, slaveID, address int, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	if !f.dropWrite {
		f.banks[slaveID].coils[address] = value
	}
	return nil
}

func (f *fakeBackend) WriteRegister(_ context.Context, slaveID, address int, value uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	if !f.dropWrite {
		f.banks[slaveID].holding[address] = value
	}
	return nil
}

func (f *fakeBackend) Resize(_ context.Context, req api.ResizeRequest) (api.ResizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes++
	b := f.banks[req.SlaveID]
	if n, ok := req.Get(device.Coils); ok {
		next := make([]bool, n)
		copy(next, b.coils)
		b.coils = next
	}
	if n, ok := req.Get(device.HoldingRegisters); ok {
		next := make([]uint16, n)
		copy(next, b.holding)
		b.holding = next
	}
	return api.ResizeResult{SlaveID: req.SlaveID, NewConfig: device.Sizes{
		Coils: len(b.coils), DiscreteInputs: len(b.discrete),
		HoldingRegisters: len(b.holding), InputRegisters: len(b.input),
	}}, nil
}

func (f *fakeBackend) counts() (fetches, writes, resizes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.writes, f.resizes
}

func (f *fakeBackend) setGated(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gated = v
}

func nextCall(t *testing.T, f *fakeBackend) fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
		return fetchCall{}
	}
}

func TestSelectRefreshesInlineWithoutInvalidator(t *testing.T) {
	backend := newFakeBackend()
	store := &state.Store{}
	m := New(backend, store, nil)

	require.NoError(t, m.Select(context.Background(), 3))

	snap := store.Snapshot()
	assert.Equal(t, 3, snap.SlaveID)
	require.True(t, snap.HasData)
	assert.Equal(t, 10, snap.Data.Len(device.Coils))

	fetches, _, _ := backend.counts()
	assert.Equal(t, 1, fetches)
}

func TestSelectUsesInvalidator(t *testing.T) {
	backend := newFakeBackend()
	m := New(backend, &state.Store{}, nil)
	triggered := 0
	m.SetInvalidator(func() { triggered++ })

	require.NoError(t, m.Select(context.Background(), 1))
	assert.Equal(t, 1, triggered)
	fetches, _, _ := backend.counts()
	assert.Zero(t, fetches)

	err := m.Select(context.Background(), 0)
	assert.Equal(t, fault.Validation, fault.Of(err))
}

func TestRefreshWithoutDevice(t *testing.T) {
	m := New(newFakeBackend(), &state.Store{}, nil)
	assert.ErrorIs(t, m.Refresh(context.Background()), fault.NoDevice)
}

func TestRefreshErrorKeepsSnapshot(t *testing.T) {
	backend := newFakeBackend()
	store := &state.Store{}
	m := New(backend, store, nil)
	require.NoError(t, m.Select(context.Background(), 1))

	backend.mu.Lock()
	backend.fetchErr = fault.Wrap(fault.Transport, "GET /api/data", errors.New("connection refused"))
	backend.mu.Unlock()

	err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, fault.Transport)

	snap := store.Snapshot()
	require.True(t, snap.HasData)
	v, _ := snap.Data.At(device.HoldingRegisters, 0)
	assert.Equal(t, uint16(1), v.Word)
	assert.Equal(t, 1, snap.ConsecutiveFailures)
	assert.Equal(t, "Sync failed: connection refused", fault.Status(snap.LastError))
}

func TestOutOfOrderResponseIsDiscarded(t *testing.T) {
	backend := newFakeBackend()
	store := &state.Store{}
	m := New(backend, store, nil)
	require.NoError(t, m.Select(context.Background(), 1))
	backend.setGated(true)

	ctx := context.Background()
	errA := make(chan error, 1)
	errB := make(chan error, 1)

	go func() { errA <- m.Refresh(ctx) }()
	callA := nextCall(t, backend)

	go func() { errB <- m.Refresh(ctx) }()
	callB := nextCall(t, backend)

	// B completes first with the newer state.
	backend.mu.Lock()
	backend.banks[1].holding[0] = 200
	backend.mu.Unlock()
	close(callB.release)
	require.NoError(t, <-errB)

	// A completes last with state older than what B applied.
	backend.mu.Lock()
	backend.banks[1].holding[0] = 100
	backend.mu.Unlock()
	close(callA.release)
	assert.Equal(t, fault.StaleResponse, fault.Of(<-errA))

	v, _ := store.Snapshot().Data.At(device.HoldingRegisters, 0)
	assert.Equal(t, uint16(200), v.Word, "the older response must not overwrite the newer one")
}

func TestResponseForPreviousDeviceIsDiscarded(t *testing.T) {
	backend := newFakeBackend()
	store := &state.Store{}
	m := New(backend, store, nil)
	m.SetInvalidator(func() {})
	require.NoError(t, m.Select(context.Background(), 1))
	backend.setGated(true)

	errOld := make(chan error, 1)
	go func() { errOld <- m.Refresh(context.Background()) }()
	call := nextCall(t, backend)
	assert.Equal(t, 1, call.slaveID)

	require.NoError(t, m.Select(context.Background(), 3))
	close(call.release)
	assert.Equal(t, fault.StaleResponse, fault.Of(<-errOld))

	snap := store.Snapshot()
	assert.Equal(t, 3, snap.SlaveID)
	assert.False(t, snap.HasData)
}

func TestWriteSingleRefreshesDeviceThree(t *testing.T) {
	backend := newFakeBackend()
	store := &state.Store{}
	m := New(backend, store, nil)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, 3))

	require.NoError(t, m.WriteSingle(ctx, device.Coils, 4, device.BitValue(true)))
	require.NoError(t, m.WriteSingle(ctx, device.HoldingRegisters, 2, device.WordValue(1234)))

	snap := store.Snapshot()
	coil, _ := snap.Data.At(device.Coils, 4)
	reg, _ := snap.Data.At(device.HoldingRegisters, 2)
	assert.True(t, coil.Bit)
	assert.Equal(t, uint16(1234), reg.Word)

	fetches, writes, _ := backend.counts()
	assert.Equal(t, 3, fetches, "select plus one refresh per write")
	assert.Equal(t, 2, writes)
}

func TestWriteSingleDoesNotPatchLocally(t *testing.T) {
	backend := newFakeBackend()
	store := &state.Store{}
	m := New(backend, store, nil)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, 3))

	// The device accepts the write but keeps its old value.
	backend.mu.Lock()
	backend.dropWrite = true
	backend.mu.Unlock()

	require.NoError(t, m.WriteSingle(ctx, device.Coils, 4, device.BitValue(true)))
	coil, _ := store.Snapshot().Data.At(device.Coils, 4)
	assert.False(t, coil.Bit, "view must show what the device reports")
}

func TestWriteSingleRejections(t *testing.T) {
	backend := newFakeBackend()
	m := New(backend, &state.Store{}, nil)
	ctx := context.Background()

	err := m.WriteSingle(ctx, device.Coils, 0, device.BitValue(true))
	assert.ErrorIs(t, err, fault.NoDevice)

	require.NoError(t, m.Select(ctx, 3))

	err = m.WriteSingle(ctx, device.DiscreteInputs, 0, device.BitValue(true))
	assert.Equal(t, fault.UnwritableBank, fault.Of(err))
	err = m.WriteSingle(ctx, device.InputRegisters, 0, device.WordValue(1))
	assert.Equal(t, fault.UnwritableBank, fault.Of(err))

	err = m.WriteSingle(ctx, device.HoldingRegisters, 10, device.WordValue(1))
	assert.Equal(t, fault.AddressRange, fault.Of(err))
	err = m.WriteSingle(ctx, device.HoldingRegisters, -1, device.WordValue(1))
	assert.Equal(t, fault.AddressRange, fault.Of(err))

	_, writes, _ := backend.counts()
	assert.Zero(t, writes, "rejected writes must not reach the backend")

	backend.mu.Lock()
	backend.writeErr = fault.Wrap(fault.Transport, "POST /api/write/coil", errors.New("timeout"))
	backend.mu.Unlock()
	fetchesBefore, _, _ := backend.counts()
	err = m.WriteSingle(ctx, device.Coils, 0, device.BitValue(true))
	assert.ErrorIs(t, err, fault.Transport)
	fetchesAfter, _, _ := backend.counts()
	assert.Equal(t, fetchesBefore, fetchesAfter, "failed writes do not refresh")
}

func TestResizeNoOpMakesNoNetworkCalls(t *testing.T) {
	backend := newFakeBackend()
	m := New(backend, &state.Store{}, nil)
	require.NoError(t, m.Select(context.Background(), 3))
	fetchesBefore, _, _ := backend.counts()

	_, err := m.Resize(context.Background(), device.SizeDeltas{})
	assert.Equal(t, fault.NoOpResize, fault.Of(err))

	fetches, writes, resizes := backend.counts()
	assert.Equal(t, fetchesBefore, fetches)
	assert.Zero(t, writes)
	assert.Zero(t, resizes)
}

func TestResizeCoilsThenRefreshShowsNewLength(t *testing.T) {
	backend := newFakeBackend()
	store := &state.Store{}
	m := New(backend, store, nil)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, 3))

	var deltas device.SizeDeltas
	deltas.Set(device.Coils, 50)
	sizes, err := m.Resize(ctx, deltas)
	require.NoError(t, err)
	assert.Equal(t, 50, sizes.Coils)

	assert.Equal(t, 50, store.Snapshot().Data.Len(device.Coils))

	deltas.Set(device.Coils, device.MaxBankSize+1)
	_, err = m.Resize(ctx, deltas)
	assert.Equal(t, fault.Validation, fault.Of(err))
}

func TestCommitAfterShrinkIsAddressRange(t *testing.T) {
	backend := newFakeBackend()
	m := New(backend, &state.Store{}, nil)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, 3))

	var deltas device.SizeDeltas
	deltas.Set(device.HoldingRegisters, 4)
	_, err := m.Resize(ctx, deltas)
	require.NoError(t, err)

	err = m.WriteSingle(ctx, device.HoldingRegisters, 8, device.WordValue(1))
	assert.Equal(t, fault.AddressRange, fault.Of(err))
	assert.NotErrorIs(t, err, fault.Transport)
}
