// Package notify maintains the WebSocket subscription that tells the console
// when a device's memory changed.
//
// The channel cycles Connecting → Open → Closed → Connecting for as long as
// Run is active. On every open it sends one {"type":"subscribe"} frame. After
// a close it arms exactly one reconnect timer for the cooldown (5s unless
// configured) and reports Closed with the retry time so the header can show a
// countdown. Cancelling the context stops the timer and closes the socket.
//
// Server frames:
//
//	{"type":"subscribed"}                                        logged
//	{"type":"data_change","slave_id":3,"data_type":"coils",...}  OnChange(3)
//
// Frames that are not JSON, or data_change frames without slave_id, are
// dropped and logged. Filtering by selected device is left to the caller.
package notify
