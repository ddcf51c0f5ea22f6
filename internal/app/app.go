package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/config"
	"github.com/five82/mbdeck/internal/direct"
	"github.com/five82/mbdeck/internal/edit"
	"github.com/five82/mbdeck/internal/mirror"
	"github.com/five82/mbdeck/internal/notify"
	"github.com/five82/mbdeck/internal/prefs"
	"github.com/five82/mbdeck/internal/reconcile"
	"github.com/five82/mbdeck/internal/state"
	"github.com/five82/mbdeck/internal/ui"
)

// Options configure the mbdeck application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/mbdeck/prefs.toml
	PollEvery  int    // seconds; zero uses default
	APIBind    string // overrides api_bind
	Direct     string // Modbus TCP address; overrides direct_address
}

// service is what the console needs from a backend: the HTTP API client or
// the direct Modbus TCP backend.
type service interface {
	api.Service
	mirror.Backend
}

// Run boots the mbdeck TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	logger, err := newLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, err := prefs.Load(prefsPath)
	if err != nil {
		logger.Warn("load prefs", zap.String("path", prefsPath), zap.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backend, closeBackend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	store := &state.Store{}
	mir := mirror.New(backend, store, logger.Named("mirror"))
	driver := reconcile.New(ctx, mir, logger.Named("reconcile"))
	mir.SetInvalidator(driver.Trigger)
	driver.OnRefresh(func(err error) {
		if err != nil {
			logger.Debug("refresh failed", zap.Int("slave_id", mir.SlaveID()), zap.Error(err))
		}
	})
	editor := edit.NewManager(mir, logger.Named("edit"))

	if !cfg.Direct.Enabled() {
		channel, err := newChannel(cfg, driver, store, logger)
		if err != nil {
			return err
		}
		go func() { _ = channel.Run(ctx) }()
	}

	ids, err := backend.ListSlaves(ctx)
	if err != nil {
		logger.Warn("list devices", zap.Error(err))
	}
	store.SetDevices(ids)
	if id, ok := initialDevice(ids, userPrefs.LastDevice); ok {
		if err := driver.Select(id); err != nil {
			logger.Warn("select device", zap.Int("slave_id", id), zap.Error(err))
		}
	}

	interval := pollInterval(opts.PollEvery)
	StartPoller(ctx, store, driver, interval, logger.Named("poller"))

	logger.Info("mbdeck started",
		zap.Bool("direct", cfg.Direct.Enabled()),
		zap.String("api_bind", cfg.APIBind),
		zap.Ints("devices", ids),
		zap.Duration("poll", interval),
	)

	err = ui.Run(ui.Options{
		Context:      ctx,
		Service:      backend,
		Mirror:       mir,
		Driver:       driver,
		Editor:       editor,
		Store:        store,
		Logger:       logger,
		Direct:       cfg.Direct.Enabled(),
		HistoryLimit: cfg.HistoryLimit,
		Prefs:        userPrefs,
		PrefsPath:    prefsPath,
	})
	cancel()
	driver.Wait()
	return err
}

func applyOverrides(cfg *config.Config, opts Options) {
	if v := strings.TrimSpace(opts.APIBind); v != "" {
		cfg.APIBind = v
	}
	if v := strings.TrimSpace(opts.Direct); v != "" {
		cfg.Direct.Address = v
	}
}

func newBackend(cfg config.Config, logger *zap.Logger) (service, func(), error) {
	if cfg.Direct.Enabled() {
		b := direct.New(direct.Options{
			Address: cfg.Direct.Address,
			UnitIDs: cfg.Direct.UnitIDs,
			Sizes:   cfg.Direct.Sizes,
			Timeout: cfg.Direct.Timeout(),
			Logger:  logger.Named("direct"),
		})
		return b, func() { _ = b.Close() }, nil
	}
	client, err := api.NewClient(cfg.APIBind)
	if err != nil {
		return nil, nil, fmt.Errorf("init api client: %w", err)
	}
	return client, func() {}, nil
}

func newChannel(cfg config.Config, driver *reconcile.Driver, store *state.Store, logger *zap.Logger) (*notify.Channel, error) {
	wsURL, err := api.WebSocketURL(cfg.APIBind)
	if err != nil {
		return nil, fmt.Errorf("init push channel: %w", err)
	}
	return notify.New(notify.Options{
		URL:      wsURL,
		Cooldown: cfg.ReconnectInterval(),
		Logger:   logger.Named("notify"),
		OnChange: driver.Notify,
		OnState: func(s notify.State, retryAt time.Time) {
			store.SetChannel(s.String(), retryAt)
		},
	}), nil
}

// newLogger writes JSON logs to path; the terminal belongs to the TUI.
func newLogger(path, level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zcfg.Sampling = nil
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		zcfg.OutputPaths = []string{path}
		zcfg.ErrorOutputPaths = []string{path}
	}
	return zcfg.Build()
}

// initialDevice picks the remembered device when the simulator still lists
// it, otherwise the first listed one.
func initialDevice(ids []int, last int) (int, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	for _, id := range ids {
		if id == last {
			return id, true
		}
	}
	return ids[0], true
}

func pollInterval(seconds int) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultPollInterval
}
