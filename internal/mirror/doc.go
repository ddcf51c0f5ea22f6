// Package mirror keeps the console's copy of the selected device's memory.
//
// A Mirror owns device selection and every change to the published snapshot.
// Refreshes are numbered from a single monotonic counter; when a response
// arrives its number must be greater than the last applied one, and no
// Select may have happened since it was issued. Anything else is dropped as
// fault.StaleResponse and only logged:
//
//	issue A (seq 4) ─────────────────────────────┐
//	issue B (seq 5) ──────────┐                  │
//	                          B arrives: applied │
//	                                             A arrives: 4 <= 5, dropped
//
// Writes and resizes never patch the snapshot. After the backend accepts
// them the mirror asks for a refresh: through the invalidator installed by
// the reconciliation driver, or inline when none is installed.
package mirror
