package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/mbdeck/internal/device"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Devices             []int
	SlaveID             int
	Data                device.Snapshot
	HasData             bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive refresh failures

	Channel        string
	ChannelRetryAt time.Time
}

// IsOffline returns true when the API has been unreachable for multiple refreshes.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// HasDevice reports whether a device is selected.
func (s Snapshot) HasDevice() bool {
	return s.SlaveID > 0
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// SetDevices records the device ids the backend reported.
func (s *Store) SetDevices(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Devices = cloneIDs(ids)
}

// Select switches the active device and drops the data of the previous one.
func (s *Store) Select(slaveID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.SlaveID = slaveID
	s.snapshot.Data = device.Snapshot{}
	s.snapshot.HasData = false
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Update replaces the device data. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *Store) Update(data device.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Data = data
	s.snapshot.HasData = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// SetChannel records the push channel state and, while closed, when the next
// reconnect is due.
func (s *Store) SetChannel(state string, retryAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Channel = state
	s.snapshot.ChannelRetryAt = retryAt
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Devices = cloneIDs(s.snapshot.Devices)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneIDs(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	dup := make([]int, len(ids))
	copy(dup, ids)
	return dup
}
