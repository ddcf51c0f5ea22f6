package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/mbdeck/internal/fault"
)

// fakeMirror blocks every Refresh until released and tracks concurrency.
type fakeMirror struct {
	mu         sync.Mutex
	slaveID    int
	running    int
	maxRunning int
	refreshes  int
	started    chan struct{}
	release    chan struct{}
	result     error
	onSelect   func()
}

func newFakeMirror(slaveID int) *fakeMirror {
	return &fakeMirror{
		slaveID: slaveID,
		started: make(chan struct{}, 16),
		release: make(chan struct{}, 16),
	}
}

func (f *fakeMirror) Select(_ context.Context, slaveID int) error {
	f.mu.Lock()
	f.slaveID = slaveID
	fn := f.onSelect
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (f *fakeMirror) SlaveID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slaveID
}

func (f *fakeMirror) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.running++
	f.refreshes++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	f.mu.Unlock()

	f.started <- struct{}{}
	select {
	case <-f.release:
	case <-ctx.Done():
	}

	f.mu.Lock()
	f.running--
	err := f.result
	f.mu.Unlock()
	return err
}

func (f *fakeMirror) stats() (refreshes, maxRunning int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, f.maxRunning
}

func waitStarted(t *testing.T, f *fakeMirror) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not start")
	}
}

func TestTriggersCoalesceBehindInFlightRefresh(t *testing.T) {
	m := newFakeMirror(3)
	d := New(context.Background(), m, nil)

	d.Trigger()
	waitStarted(t, m)

	// Burst of events while the first refresh is running.
	for i := 0; i < 10; i++ {
		d.Trigger()
		d.Notify(3)
	}

	m.release <- struct{}{}
	waitStarted(t, m)
	m.release <- struct{}{}
	d.Wait()

	refreshes, maxRunning := m.stats()
	assert.Equal(t, 2, refreshes, "one in flight plus one coalesced follow-up")
	assert.Equal(t, 1, maxRunning, "refreshes never overlap")
}

func TestNotifyIgnoresOtherDevices(t *testing.T) {
	m := newFakeMirror(3)
	d := New(context.Background(), m, nil)

	d.Notify(1)
	d.Notify(7)
	d.Wait()

	refreshes, _ := m.stats()
	assert.Zero(t, refreshes)

	d.Notify(3)
	waitStarted(t, m)
	m.release <- struct{}{}
	d.Wait()
	refreshes, _ = m.stats()
	assert.Equal(t, 1, refreshes)
}

func TestSelectTriggersThroughInvalidator(t *testing.T) {
	m := newFakeMirror(0)
	d := New(context.Background(), m, nil)
	m.onSelect = d.Trigger

	require.NoError(t, d.Select(5))
	waitStarted(t, m)
	m.release <- struct{}{}
	d.Wait()

	assert.Equal(t, 5, m.SlaveID())
	refreshes, _ := m.stats()
	assert.Equal(t, 1, refreshes)
}

func TestOnRefreshReportsResults(t *testing.T) {
	m := newFakeMirror(1)
	m.result = fault.New(fault.StaleResponse, "refresh", "superseded")
	d := New(context.Background(), m, nil)

	results := make(chan error, 4)
	d.OnRefresh(func(err error) { results <- err })

	d.Trigger()
	waitStarted(t, m)
	m.release <- struct{}{}
	d.Wait()
	assert.NoError(t, <-results, "stale responses are not errors")

	m.mu.Lock()
	m.result = fault.Transport
	m.mu.Unlock()
	d.Trigger()
	waitStarted(t, m)
	m.release <- struct{}{}
	d.Wait()
	assert.ErrorIs(t, <-results, fault.Transport)
}

func TestTriggerAfterCancelIsIgnored(t *testing.T) {
	m := newFakeMirror(1)
	ctx, cancel := context.WithCancel(context.Background())
	d := New(ctx, m, nil)
	cancel()

	d.Trigger()
	d.Wait()
	refreshes, _ := m.stats()
	assert.Zero(t, refreshes)
}
