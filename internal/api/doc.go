// Package api provides an HTTP client for the Modbus simulator's web API.
//
// # Overview
//
// The simulator exposes its slaves over a small JSON API. This package wraps
// every endpoint the console uses behind the Service interface so the mirror,
// the tools and the CLI can be exercised against fakes.
//
// # Architecture
//
//   - client.go: HTTP client, request/response handling, endpoint methods
//   - types.go: payload structs, history ordering and stats helpers
//   - export.go: history export as JSON or YAML
//
// # Client Usage
//
//	client, err := api.NewClient("127.0.0.1:8080")
//	if err != nil {
//		return err
//	}
//	snap, err := client.FetchData(ctx, 3)
//
// # API Endpoints
//
//   - GET  /api/slaves                 device ids
//   - GET  /api/data?slave_id=ID       all four banks of one device
//   - POST /api/write/coil             {slave_id, address, value: bool}
//   - POST /api/write/register         {slave_id, address, value: int}
//   - POST /api/write/string           {slave_id, address, text}
//   - GET  /api/read/string            slave_id, address, length
//   - GET  /api/config?slave_id=ID     bank lengths
//   - POST /api/config/resize          {slave_id, coils?, discrete_inputs?, ...}
//   - GET  /api/history?limit=N        value change records
//   - GET  /api/stats                  request counters per function code
//
// The push channel lives at /ws on the same host; WebSocketURL derives it
// from the configured api_bind.
//
// # Request Handling
//
// All requests:
//   - Use context for cancellation and timeout control
//   - Set Accept: application/json and User-Agent: mbdeck/0.1
//   - Send JSON bodies with Content-Type: application/json
//   - Have a 5-second client timeout
//
// # Error Handling
//
// Every failure is a *fault.E carrying fault.Transport, so callers can match
// it with errors.Is(err, fault.Transport). The wrapped cause distinguishes:
//
//   - Network errors: "execute request: ..."
//   - HTTP errors (status >= 400): "api /api/data returned status 404: <msg>",
//     where <msg> is the server's {"error": ...} text when present
//   - Decoding errors: "decode response: ..."
//
// # History
//
// The server returns history oldest-first with ISO timestamps that carry no
// zone. SortHistoryNewestFirst reorders by parsed timestamp with a stable
// sort; records whose timestamp cannot be parsed go last. Values are kept as
// decoded JSON (bool for bit banks, number for registers) so that export
// round-trips them unchanged.
//
// # Thread Safety
//
// Client has no mutable state after construction and may be shared between
// goroutines.
package api
