// Package reconcile decides when the mirror pulls a new snapshot.
//
// Every trigger source (device selection, push events, writes, resizes and
// the safety poll) goes through Driver.Trigger. At most one refresh runs at
// a time; triggers arriving meanwhile collapse into a single follow-up, so
// no more than two refreshes are ever outstanding.
package reconcile

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/five82/mbdeck/internal/fault"
)

// Mirror is the part of *mirror.Mirror the driver uses.
type Mirror interface {
	Select(ctx context.Context, slaveID int) error
	SlaveID() int
	Refresh(ctx context.Context) error
}

// Driver serializes and coalesces refreshes of one mirror.
type Driver struct {
	ctx    context.Context
	mirror Mirror
	logger *zap.Logger

	mu        sync.Mutex
	inFlight  bool
	pending   bool
	onRefresh func(error)
	wg        sync.WaitGroup
}

// New returns a Driver whose refreshes run under ctx. Once ctx is done,
// triggers are ignored.
func New(ctx context.Context, m Mirror, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		ctx:    ctx,
		mirror: m,
		logger: logger.Named("reconcile"),
	}
}

// OnRefresh registers fn to run after every completed refresh with its
// result. Stale responses are reported as nil.
func (d *Driver) OnRefresh(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRefresh = fn
}

// Select switches the mirror to slaveID. The mirror's invalidator, normally
// this driver's Trigger, schedules the first refresh.
func (d *Driver) Select(slaveID int) error {
	return d.mirror.Select(d.ctx, slaveID)
}

// Notify handles a change event for slaveID. Events for any device other
// than the selected one are ignored.
func (d *Driver) Notify(slaveID int) {
	if slaveID != d.mirror.SlaveID() {
		d.logger.Debug("change event ignored", zap.Int("slave_id", slaveID))
		return
	}
	d.Trigger()
}

// Trigger requests a refresh. If one is running, a single follow-up is
// queued behind it; further triggers before it starts are absorbed.
func (d *Driver) Trigger() {
	if d.ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	if d.inFlight {
		d.pending = true
		d.mu.Unlock()
		return
	}
	d.inFlight = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.loop()
}

// Wait blocks until no refresh is running or queued.
func (d *Driver) Wait() {
	d.wg.Wait()
}

func (d *Driver) loop() {
	defer d.wg.Done()
	for {
		err := d.mirror.Refresh(d.ctx)
		if fault.Of(err) == fault.StaleResponse || fault.Of(err) == fault.NoDevice {
			err = nil
		}

		d.mu.Lock()
		fn := d.onRefresh
		d.mu.Unlock()
		if fn != nil {
			fn(err)
		}

		d.mu.Lock()
		if d.pending && d.ctx.Err() == nil {
			d.pending = false
			d.mu.Unlock()
			continue
		}
		d.pending = false
		d.inFlight = false
		d.mu.Unlock()
		return
	}
}
