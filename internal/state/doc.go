// Package state holds the console's published view of the selected device.
//
// # Overview
//
// The mirror writes into a Store after every refresh and the push channel
// records its connection state there; the UI reads copies on its own tick.
// The Store never decides anything. Ordering of refresh responses is the
// mirror's job, and the Store simply holds whatever the mirror last applied.
//
//	mirror.Refresh ──┐
//	                 ├─→ store.Update / Select ──→ store.Snapshot() ──→ render
//	notify.Channel ──┘      store.SetChannel
//
// # Update Semantics
//
//	// Success: replace the device data
//	store.Update(data, nil)
//	→ Data = data, HasData = true, LastError = nil, failures = 0
//
//	// Error: keep the last good data, record the error
//	store.Update(device.Snapshot{}, err)
//	→ Data unchanged, LastError = err, failures++
//
// Select switches the device and clears data and error state, so a view never
// shows one device's banks under another device's id. IsOffline reports two
// or more consecutive failures and drives the header's offline marker.
//
// # Copying
//
// device.Snapshot is immutable, so it is shared by value. The device id list
// is cloned and LastError is re-wrapped so callers cannot mutate stored state.
//
// The zero Store is ready to use.
package state
