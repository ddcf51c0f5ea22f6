// Package app is the composition root of mbdeck.
//
// Run loads the config file, applies command line overrides and builds a
// zap logger that writes to the configured log file (the terminal belongs
// to the TUI). It then picks a backend: the simulator's HTTP API client, or
// a direct Modbus TCP backend when a direct address is set.
//
// On top of the backend it wires:
//
//  1. state.Store, shared by the mirror and the UI
//  2. mirror.Mirror, the only writer of device data
//  3. reconcile.Driver, which serializes and coalesces refreshes
//  4. edit.Manager, the single open cell edit
//  5. notify.Channel, the push subscription (HTTP mode only)
//  6. the safety poller
//
// The remembered device is selected when the simulator still lists it,
// otherwise the first one. Run blocks in ui.Run until the operator quits or
// the context is cancelled, then waits for in-flight refreshes.
//
// # Polling
//
// The poller triggers a refresh every interval (default 2 seconds) even
// when pushes arrive, which covers missed events. After failures it backs
// off exponentially up to 30 seconds and resets on the first success.
package app
