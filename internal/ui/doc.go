// Package ui provides the Bubble Tea terminal interface of mbdeck.
//
// # Package Structure
//
//   - app.go: Model, Update/View dispatch, global keys and Run
//   - banks.go: the four register banks, cursor movement and cell edits
//   - tools.go: string and record tools (write/read string, read/write record)
//   - history.go, stats.go, configview.go: simulator history, statistics and
//     bank sizes with the resize form
//   - header.go: connection badge, device, last update and failure count
//   - modal.go: the form modal shared by edits, tools and resize
//   - commands.go: tea.Cmd wrappers around blocking backend calls
//   - theme.go, style_helpers.go, keys.go, help.go: presentation
//
// # Data Flow
//
// The UI never mutates device data. It reads state.Store snapshots on a
// tick, and every change goes through the mirror (writes, resize), the edit
// manager (cell edits) or the reconciliation driver (device selection,
// manual refresh). Results come back as messages and update only view state
// and the status line.
//
// Blocking calls run inside tea.Cmd functions so Update stays responsive.
// A form stays open when its submit fails, showing the error in place; an
// edit form failing keeps the edit session open until the operator cancels
// with esc.
//
// # Keys
//
//	tab / shift+tab   cycle views          1-5   jump to a view
//	[ / ]             previous/next device r     refresh now
//	h/l j/k           move in banks        enter edit / open
//	Space             toggle coil          x     export history
//	T                 cycle theme          ?     help
//	q, ctrl+c         quit
package ui
