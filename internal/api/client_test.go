package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, defaultAPIBind, u.Host)

	u, err = parseBaseURL("http://example.com:1234/path?x=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:1234", u.String())
}

func TestWebSocketURL(t *testing.T) {
	got, err := WebSocketURL("127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8080/ws", got)

	got, err = WebSocketURL("https://sim.example.com")
	require.NoError(t, err)
	assert.Equal(t, "wss://sim.example.com/ws", got)
}

type recorded struct {
	method string
	path   string
	query  url.Values
	body   map[string]any
	agent  string
}

func newRecordingServer(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query(), agent: r.Header.Get("User-Agent")}
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				_ = json.Unmarshal(raw, &rec.body)
			}
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/slaves":
			_, _ = io.WriteString(w, `{"slaves":[1,3]}`)
		case "/api/data":
			_, _ = io.WriteString(w, `{"slave_id":3,"coils":[true,false],"discrete_inputs":[false],"holding_registers":[16706,0],"input_registers":[7]}`)
		case "/api/write/coil", "/api/write/register":
			_, _ = io.WriteString(w, `{"success":true}`)
		case "/api/write/string":
			_, _ = io.WriteString(w, `{"success":true,"registers_written":2,"text_length":3,"address_range":"10-11"}`)
		case "/api/read/string":
			_, _ = io.WriteString(w, `{"text":"ABC","registers":[16706,17152],"length":3,"address_range":"10-11"}`)
		case "/api/config":
			_, _ = io.WriteString(w, `{"slave_id":3,"coils":100,"discrete_inputs":100,"holding_registers":100,"input_registers":100}`)
		case "/api/config/resize":
			_, _ = io.WriteString(w, `{"success":true,"slave_id":3,"new_config":{"coils":50,"discrete_inputs":100,"holding_registers":100,"input_registers":100}}`)
		case "/api/history":
			_, _ = io.WriteString(w, `{"history":[{"timestamp":"2025-01-01T12:00:00.123456","slave_id":3,"data_type":"coils","address":0,"old_value":false,"new_value":true,"source":"web"}]}`)
		case "/api/stats":
			_, _ = io.WriteString(w, `{"total_requests":4,"successful_requests":3,"function_codes":{"FC03":3,"FC01":1}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"slave not found"}`)
		}
	}))
	t.Cleanup(server.Close)

	return server, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func TestClient_EndpointsAndPayloads(t *testing.T) {
	server, calls := newRecordingServer(t)
	c, err := NewClient(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	ids, err := c.ListSlaves(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids)

	snap, err := c.FetchData(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.SlaveID)
	assert.Equal(t, device.Sizes{Coils: 2, DiscreteInputs: 1, HoldingRegisters: 2, InputRegisters: 1}, snap.Sizes())
	v, _ := snap.At(device.HoldingRegisters, 0)
	assert.Equal(t, uint16(0x4142), v.Word)

	require.NoError(t, c.WriteCoil(ctx, 3, 4, true))
	require.NoError(t, c.WriteRegister(ctx, 3, 5, 65535))

	ws, err := c.WriteString(ctx, 3, 10, "ABC")
	require.NoError(t, err)
	assert.Equal(t, WriteStringResult{TextLength: 3, RegistersWritten: 2, AddressRange: "10-11"}, ws)

	rs, err := c.ReadString(ctx, 3, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, "ABC", rs.Text)
	assert.Equal(t, []uint16{0x4142, 0x4300}, rs.Registers)

	cfg, err := c.FetchConfig(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Coils)

	var deltas device.SizeDeltas
	deltas.Set(device.Coils, 50)
	res, err := c.Resize(ctx, ResizeRequest{SlaveID: 3, SizeDeltas: deltas})
	require.NoError(t, err)
	assert.Equal(t, 50, res.NewConfig.Coils)

	hist, err := c.FetchHistory(ctx, 25)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "ON", hist[0].NewText())

	stats, err := c.FetchStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRequests)

	got := calls()
	require.Len(t, got, 10)
	for _, call := range got {
		assert.Equal(t, defaultUserAgent, call.agent)
	}

	assert.Equal(t, "3", got[1].query.Get("slave_id"))
	assert.Equal(t, map[string]any{"slave_id": 3.0, "address": 4.0, "value": true}, got[2].body)
	assert.Equal(t, map[string]any{"slave_id": 3.0, "address": 5.0, "value": 65535.0}, got[3].body)
	assert.Equal(t, map[string]any{"slave_id": 3.0, "address": 10.0, "text": "ABC"}, got[4].body)
	assert.Equal(t, "2", got[5].query.Get("length"))
	assert.Equal(t, http.MethodPost, got[7].method)
	assert.Equal(t, map[string]any{"slave_id": 3.0, "coils": 50.0}, got[7].body, "unset banks are omitted")
	assert.Equal(t, "25", got[8].query.Get("limit"))
}

func TestClient_ErrorsAreTransportFaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"slave not found"}`)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = c.FetchData(context.Background(), 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.Transport)
	assert.Contains(t, err.Error(), "slave not found")

	server.Close()
	_, err = c.ListSlaves(context.Background())
	assert.Equal(t, fault.Transport, fault.Of(err))

	var nilClient *Client
	_, err = nilClient.FetchStats(context.Background())
	assert.Equal(t, fault.Transport, fault.Of(err))
}
