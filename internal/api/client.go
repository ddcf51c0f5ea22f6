package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
)

// Service is the subset of the simulator API the console depends on.
// It is implemented by *Client and can be faked in tests.
type Service interface {
	ListSlaves(ctx context.Context) ([]int, error)
	FetchData(ctx context.Context, slaveID int) (device.Snapshot, error)
	WriteCoil(ctx context.Context, slaveID, address int, value bool) error
	WriteRegister(ctx context.Context, slaveID, address int, value uint16) error
	WriteString(ctx context.Context, slaveID, address int, text string) (WriteStringResult, error)
	ReadString(ctx context.Context, slaveID, address, length int) (ReadStringResult, error)
	FetchConfig(ctx context.Context, slaveID int) (SlaveConfig, error)
	Resize(ctx context.Context, req ResizeRequest) (ResizeResult, error)
	FetchHistory(ctx context.Context, limit int) ([]HistoryRecord, error)
	FetchStats(ctx context.Context) (Stats, error)
}

// Ensure Client implements Service at compile time.
var _ Service = (*Client)(nil)

// Client talks to the simulator HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIBind   = "127.0.0.1:8080"
	defaultUserAgent = "mbdeck/0.1"
	requestTimeout   = 5 * time.Second
)

// NewClient builds a Client using the provided apiBind host:port value.
func NewClient(apiBind string) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL returns a copy of the resolved API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// ListSlaves returns the device ids the simulator exposes.
func (c *Client) ListSlaves(ctx context.Context) ([]int, error) {
	var payload slavesResponse
	if err := c.do(ctx, http.MethodGet, "/api/slaves", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Slaves, nil
}

// FetchData retrieves all four banks of one device.
func (c *Client) FetchData(ctx context.Context, slaveID int) (device.Snapshot, error) {
	values := url.Values{}
	values.Set("slave_id", strconv.Itoa(slaveID))
	rel := &url.URL{Path: "/api/data", RawQuery: values.Encode()}
	var payload DataResponse
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return device.Snapshot{}, err
	}
	return payload.Snapshot(slaveID), nil
}

// WriteCoil sets a single coil.
func (c *Client) WriteCoil(ctx context.Context, slaveID, address int, value bool) error {
	body := writeRequest{SlaveID: slaveID, Address: address, Value: value}
	return c.do(ctx, http.MethodPost, "/api/write/coil", body, nil)
}

// WriteRegister sets a single holding register.
func (c *Client) WriteRegister(ctx context.Context, slaveID, address int, value uint16) error {
	body := writeRequest{SlaveID: slaveID, Address: address, Value: int(value)}
	return c.do(ctx, http.MethodPost, "/api/write/register", body, nil)
}

// WriteString stores text into consecutive holding registers. The server
// packs the text itself; callers validate it with regcodec.EncodeText first.
func (c *Client) WriteString(ctx context.Context, slaveID, address int, text string) (WriteStringResult, error) {
	body := writeStringRequest{SlaveID: slaveID, Address: address, Text: text}
	var payload WriteStringResult
	if err := c.do(ctx, http.MethodPost, "/api/write/string", body, &payload); err != nil {
		return WriteStringResult{}, err
	}
	return payload, nil
}

// ReadString reads length holding registers starting at address and the
// server's decoding of them.
func (c *Client) ReadString(ctx context.Context, slaveID, address, length int) (ReadStringResult, error) {
	values := url.Values{}
	values.Set("slave_id", strconv.Itoa(slaveID))
	values.Set("address", strconv.Itoa(address))
	values.Set("length", strconv.Itoa(length))
	rel := &url.URL{Path: "/api/read/string", RawQuery: values.Encode()}
	var payload ReadStringResult
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return ReadStringResult{}, err
	}
	return payload, nil
}

// FetchConfig returns the bank lengths of one device.
func (c *Client) FetchConfig(ctx context.Context, slaveID int) (SlaveConfig, error) {
	values := url.Values{}
	values.Set("slave_id", strconv.Itoa(slaveID))
	rel := &url.URL{Path: "/api/config", RawQuery: values.Encode()}
	var payload SlaveConfig
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return SlaveConfig{}, err
	}
	return payload, nil
}

// Resize changes bank lengths. Nil fields of req are omitted from the body.
func (c *Client) Resize(ctx context.Context, req ResizeRequest) (ResizeResult, error) {
	var payload ResizeResult
	if err := c.do(ctx, http.MethodPost, "/api/config/resize", req, &payload); err != nil {
		return ResizeResult{}, err
	}
	return payload, nil
}

// FetchHistory returns up to limit change records in server order.
func (c *Client) FetchHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	rel := &url.URL{Path: "/api/history", RawQuery: values.Encode()}
	var payload historyResponse
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload.History, nil
}

// FetchStats returns the simulator's request counters.
func (c *Client) FetchStats(ctx context.Context) (Stats, error) {
	var payload Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &payload); err != nil {
		return Stats{}, err
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	op := method + " " + rel.Path
	if c == nil {
		return fault.New(fault.Transport, op, "client is nil")
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fault.Wrap(fault.Validation, op, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fault.Wrap(fault.Transport, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.Wrap(fault.Transport, op, fmt.Errorf("execute request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fault.Wrap(fault.Transport, op, statusError(rel.Path, resp))
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fault.Wrap(fault.Transport, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError includes the server's {"error": "..."} message when present.
func statusError(path string, resp *http.Response) error {
	var payload errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &payload) == nil && strings.TrimSpace(payload.Error) != "" {
		return fmt.Errorf("api %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(payload.Error))
	}
	return fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// WebSocketURL derives the push channel endpoint from apiBind: http becomes
// ws, https becomes wss, and the path is /ws.
func WebSocketURL(apiBind string) (string, error) {
	u, err := parseBaseURL(apiBind)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String(), nil
}
