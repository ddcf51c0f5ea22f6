// Package direct reads and writes a device over Modbus TCP, bypassing the
// simulator's web API.
//
// Bank lengths are not discoverable over Modbus, so they come from the
// configuration. Reads use FC01-FC04 in chunks the protocol allows; single
// writes use FC05 and FC06, and string writes use FC16. Everything the web
// API adds on top (resizing, history, statistics, push events) returns
// fault.Unsupported.
package direct

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
	"github.com/five82/mbdeck/internal/regcodec"
)

const (
	maxBitsPerRead  = 2000
	maxWordsPerRead = 125
	maxWordsPerPut  = 123
	coilOn          = 0xFF00
	coilOff         = 0x0000
	defaultTimeout  = 3 * time.Second
)

// Options configure a Backend.
type Options struct {
	Address string
	UnitIDs []int
	Sizes   device.Sizes
	Timeout time.Duration
	Logger  *zap.Logger
}

// Backend is a Modbus TCP implementation of api.Service. Requests are
// serialized over one connection, which is reopened after any failure.
type Backend struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

var _ api.Service = (*Backend)(nil)

// New returns a Backend. The connection is opened on first use.
func New(opts Options) *Backend {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if len(opts.UnitIDs) == 0 {
		opts.UnitIDs = []int{1}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{opts: opts, logger: logger.Named("direct")}
}

// Close drops the connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

// ListSlaves returns the configured unit ids.
func (b *Backend) ListSlaves(context.Context) ([]int, error) {
	out := make([]int, len(b.opts.UnitIDs))
	copy(out, b.opts.UnitIDs)
	return out, nil
}

// FetchData reads every bank of unit slaveID up to its configured length.
func (b *Backend) FetchData(ctx context.Context, slaveID int) (device.Snapshot, error) {
	var (
		coils, discrete []bool
		holding, input  []uint16
	)
	err := b.with(ctx, "fetch", slaveID, func(c modbus.Client) error {
		var err error
		if coils, err = readBits(ctx, c.ReadCoils, b.opts.Sizes.Coils); err != nil {
			return fmt.Errorf("read coils: %w", err)
		}
		if discrete, err = readBits(ctx, c.ReadDiscreteInputs, b.opts.Sizes.DiscreteInputs); err != nil {
			return fmt.Errorf("read discrete inputs: %w", err)
		}
		if holding, err = readWords(ctx, c.ReadHoldingRegisters, 0, b.opts.Sizes.HoldingRegisters); err != nil {
			return fmt.Errorf("read holding registers: %w", err)
		}
		if input, err = readWords(ctx, c.ReadInputRegisters, 0, b.opts.Sizes.InputRegisters); err != nil {
			return fmt.Errorf("read input registers: %w", err)
		}
		return nil
	})
	if err != nil {
		return device.Snapshot{}, err
	}
	return device.NewSnapshot(slaveID, coils, discrete, holding, input), nil
}

// WriteCoil sets one coil with FC05.
func (b *Backend) WriteCoil(ctx context.Context, slaveID, address int, value bool) error {
	if err := checkAddress(address); err != nil {
		return err
	}
	v := uint16(coilOff)
	if value {
		v = coilOn
	}
	return b.with(ctx, "write coil", slaveID, func(c modbus.Client) error {
		_, err := c.WriteSingleCoil(uint16(address), v)
		return err
	})
}

// WriteRegister sets one holding register with FC06.
func (b *Backend) WriteRegister(ctx context.Context, slaveID, address int, value uint16) error {
	if err := checkAddress(address); err != nil {
		return err
	}
	return b.with(ctx, "write register", slaveID, func(c modbus.Client) error {
		_, err := c.WriteSingleRegister(uint16(address), value)
		return err
	})
}

// WriteString packs text locally and stores it with FC16.
func (b *Backend) WriteString(ctx context.Context, slaveID, address int, text string) (api.WriteStringResult, error) {
	words, err := regcodec.EncodeText(text)
	if err != nil {
		return api.WriteStringResult{}, err
	}
	if len(words) == 0 {
		return api.WriteStringResult{}, fault.New(fault.Validation, "write string", "text is empty")
	}
	if err := checkAddress(address + len(words) - 1); err != nil {
		return api.WriteStringResult{}, err
	}
	err = b.with(ctx, "write string", slaveID, func(c modbus.Client) error {
		for off := 0; off < len(words); off += maxWordsPerPut {
			end := min(off+maxWordsPerPut, len(words))
			chunk := words[off:end]
			if _, err := c.WriteMultipleRegisters(uint16(address+off), uint16(len(chunk)), encodeWords(chunk)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return api.WriteStringResult{}, err
	}
	block, _ := regcodec.PackRecordBlock(words, address, len(words))
	return api.WriteStringResult{
		TextLength:       len([]rune(text)),
		RegistersWritten: len(words),
		AddressRange:     block.Range(),
	}, nil
}

// ReadString reads length holding registers and decodes them locally.
func (b *Backend) ReadString(ctx context.Context, slaveID, address, length int) (api.ReadStringResult, error) {
	if length < 1 {
		return api.ReadStringResult{}, fault.New(fault.Validation, "read string", "length must be at least 1, got %d", length)
	}
	if err := checkAddress(address + length - 1); err != nil {
		return api.ReadStringResult{}, err
	}
	var words []uint16
	err := b.with(ctx, "read string", slaveID, func(c modbus.Client) error {
		var err error
		words, err = readWords(ctx, c.ReadHoldingRegisters, address, length)
		return err
	})
	if err != nil {
		return api.ReadStringResult{}, err
	}
	text := regcodec.DecodeRegisters(words)
	block, _ := regcodec.PackRecordBlock(words, address, length)
	return api.ReadStringResult{
		Text:         text,
		Length:       len(text),
		AddressRange: block.Range(),
		Registers:    words,
	}, nil
}

// FetchConfig returns the configured bank lengths.
func (b *Backend) FetchConfig(_ context.Context, slaveID int) (api.SlaveConfig, error) {
	return api.SlaveConfig{SlaveID: slaveID, Sizes: b.opts.Sizes}, nil
}

// Resize is not available over Modbus.
func (b *Backend) Resize(context.Context, api.ResizeRequest) (api.ResizeResult, error) {
	return api.ResizeResult{}, fault.New(fault.Unsupported, "resize", "bank sizes are fixed in direct mode")
}

// FetchHistory is not available over Modbus.
func (b *Backend) FetchHistory(context.Context, int) ([]api.HistoryRecord, error) {
	return nil, fault.New(fault.Unsupported, "history", "history is kept by the simulator web API")
}

// FetchStats is not available over Modbus.
func (b *Backend) FetchStats(context.Context) (api.Stats, error) {
	return api.Stats{}, fault.New(fault.Unsupported, "stats", "statistics are kept by the simulator web API")
}

// with runs fn against unit slaveID on the shared connection. Any failure
// closes the connection so the next call reconnects.
func (b *Backend) with(ctx context.Context, op string, slaveID int, fn func(modbus.Client) error) error {
	if slaveID < 1 || slaveID > 247 {
		return fault.New(fault.Validation, op, "unit id %d outside 1-247", slaveID)
	}
	if err := ctx.Err(); err != nil {
		return fault.Wrap(fault.Transport, op, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connectLocked(); err != nil {
		return fault.Wrap(fault.Transport, op, err)
	}
	b.handler.SlaveId = byte(slaveID)

	if err := fn(b.client); err != nil {
		_ = b.closeLocked()
		b.logger.Warn("modbus request failed",
			zap.String("op", op),
			zap.Int("slave_id", slaveID),
			zap.Error(err),
		)
		return fault.Wrap(fault.Transport, op, err)
	}
	return nil
}

func (b *Backend) connectLocked() error {
	if b.handler != nil {
		return nil
	}
	handler := modbus.NewTCPClientHandler(b.opts.Address)
	handler.Timeout = b.opts.Timeout
	if err := handler.Connect(); err != nil {
		return fmt.Errorf("connect %s: %w", b.opts.Address, err)
	}
	b.handler = handler
	b.client = modbus.NewClient(handler)
	b.logger.Info("modbus connected", zap.String("address", b.opts.Address))
	return nil
}

func (b *Backend) closeLocked() error {
	if b.handler == nil {
		return nil
	}
	err := b.handler.Close()
	b.handler = nil
	b.client = nil
	return err
}

type readFunc func(address, quantity uint16) ([]byte, error)

// readBits reads n bits from address 0. Modbus packs eight bits per byte,
// least significant bit first.
func readBits(ctx context.Context, read readFunc, n int) ([]bool, error) {
	out := make([]bool, 0, n)
	for start := 0; start < n; start += maxBitsPerRead {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		qty := min(maxBitsPerRead, n-start)
		raw, err := read(uint16(start), uint16(qty))
		if err != nil {
			return nil, err
		}
		if len(raw)*8 < qty {
			return nil, fmt.Errorf("short response: %d bytes for %d bits", len(raw), qty)
		}
		for i := 0; i < qty; i++ {
			out = append(out, raw[i/8]&(1<<(i%8)) != 0)
		}
	}
	return out, nil
}

// readWords reads n big-endian registers starting at address.
func readWords(ctx context.Context, read readFunc, address, n int) ([]uint16, error) {
	out := make([]uint16, 0, n)
	for off := 0; off < n; off += maxWordsPerRead {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		qty := min(maxWordsPerRead, n-off)
		raw, err := read(uint16(address+off), uint16(qty))
		if err != nil {
			return nil, err
		}
		if len(raw) < qty*2 {
			return nil, fmt.Errorf("short response: %d bytes for %d registers", len(raw), qty)
		}
		for i := 0; i < qty; i++ {
			out = append(out, binary.BigEndian.Uint16(raw[i*2:]))
		}
	}
	return out, nil
}

func encodeWords(words []uint16) []byte {
	buf := make([]byte, len(words)*2)
	for i, w := range words {
		binary.BigEndian.PutUint16(buf[i*2:], w)
	}
	return buf
}

func checkAddress(address int) error {
	if address < 0 || address > 0xFFFF {
		return fault.New(fault.AddressRange, "write", "address %d outside 0-65535", address)
	}
	return nil
}
