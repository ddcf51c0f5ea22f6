package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/mbdeck/internal/device"
)

// Config holds the console settings.
type Config struct {
	APIBind          string
	ReconnectSeconds int
	HistoryLimit     int
	LogFile          string
	LogLevel         string
	Direct           Direct
}

// Direct configures Modbus TCP access that bypasses the HTTP API.
type Direct struct {
	Address        string
	UnitIDs        []int
	Sizes          device.Sizes
	TimeoutSeconds int
}

// Enabled reports whether direct mode is configured.
func (d Direct) Enabled() bool {
	return strings.TrimSpace(d.Address) != ""
}

// Timeout returns the per-request timeout.
func (d Direct) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

const (
	defaultConfigPath       = "~/.config/mbdeck/config.toml"
	defaultLogFile          = "~/.local/state/mbdeck/mbdeck.log"
	defaultAPIBind          = "127.0.0.1:8080"
	defaultLogLevel         = "info"
	defaultReconnectSeconds = 5
	minReconnectSeconds     = 1
	maxReconnectSeconds     = 60
	defaultHistoryLimit     = 100
	maxHistoryLimit         = 1000
	defaultBankSize         = 100
	defaultDirectTimeout    = 3
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBind:          defaultAPIBind,
		ReconnectSeconds: defaultReconnectSeconds,
		HistoryLimit:     defaultHistoryLimit,
		LogFile:          mustExpand(defaultLogFile),
		LogLevel:         defaultLogLevel,
		Direct: Direct{
			UnitIDs: []int{1},
			Sizes: device.Sizes{
				Coils:            defaultBankSize,
				DiscreteInputs:   defaultBankSize,
				HoldingRegisters: defaultBankSize,
				InputRegisters:   defaultBankSize,
			},
			TimeoutSeconds: defaultDirectTimeout,
		},
	}
}

type rawConfig struct {
	APIBind          string `toml:"api_bind"`
	ReconnectSeconds int    `toml:"reconnect_seconds"`
	HistoryLimit     int    `toml:"history_limit"`
	LogFile          string `toml:"log_file"`
	LogLevel         string `toml:"log_level"`
	DirectAddress    string `toml:"direct_address"`
	DirectUnitIDs    []int  `toml:"direct_unit_ids"`
	DirectTimeout    int    `toml:"direct_timeout_seconds"`
	DirectBanks      struct {
		Coils            int `toml:"coils"`
		DiscreteInputs   int `toml:"discrete_inputs"`
		HoldingRegisters int `toml:"holding_registers"`
		InputRegisters   int `toml:"input_registers"`
	} `toml:"direct_banks"`
}

// Load locates and parses the config file, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBind); v != "" {
		cfg.APIBind = v
	}
	if raw.ReconnectSeconds != 0 {
		cfg.ReconnectSeconds = raw.ReconnectSeconds
	}
	if raw.HistoryLimit > 0 {
		cfg.HistoryLimit = raw.HistoryLimit
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.Direct.Address = strings.TrimSpace(raw.DirectAddress)
	if ids := validUnitIDs(raw.DirectUnitIDs); len(ids) > 0 {
		cfg.Direct.UnitIDs = ids
	}
	if raw.DirectTimeout > 0 {
		cfg.Direct.TimeoutSeconds = raw.DirectTimeout
	}
	applySize(&cfg.Direct.Sizes.Coils, raw.DirectBanks.Coils)
	applySize(&cfg.Direct.Sizes.DiscreteInputs, raw.DirectBanks.DiscreteInputs)
	applySize(&cfg.Direct.Sizes.HoldingRegisters, raw.DirectBanks.HoldingRegisters)
	applySize(&cfg.Direct.Sizes.InputRegisters, raw.DirectBanks.InputRegisters)

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.ReconnectSeconds = clamp(c.ReconnectSeconds, minReconnectSeconds, maxReconnectSeconds)
	c.HistoryLimit = clamp(c.HistoryLimit, 1, maxHistoryLimit)
}

// ReconnectInterval returns the push channel cooldown.
func (c Config) ReconnectInterval() time.Duration {
	return time.Duration(clamp(c.ReconnectSeconds, minReconnectSeconds, maxReconnectSeconds)) * time.Second
}

func applySize(dst *int, v int) {
	if v > 0 && v <= device.MaxBankSize {
		*dst = v
	}
}

// validUnitIDs keeps ids in the Modbus unit range 1-247.
func validUnitIDs(ids []int) []int {
	var out []int
	for _, id := range ids {
		if id >= 1 && id <= 247 {
			out = append(out, id)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
