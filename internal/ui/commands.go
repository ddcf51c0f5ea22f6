package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/fault"
	"github.com/five82/mbdeck/internal/state"
)

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type deviceSelectedMsg struct {
	slaveID int
	err     error
}

type editResultMsg struct {
	bank    device.Bank
	address int
	err     error
}

type toolResultMsg struct {
	title string
	lines []string
	err   error
}

type historyMsg struct {
	records []api.HistoryRecord
	err     error
}

type exportMsg struct {
	path string
	err  error
}

type statsMsg struct {
	stats api.Stats
	err   error
}

type configMsg struct {
	cfg api.SlaveConfig
	err error
}

type resizeResultMsg struct {
	sizes device.Sizes
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func selectDeviceCmd(driver Driver, slaveID int) tea.Cmd {
	return func() tea.Msg {
		if driver == nil {
			return deviceSelectedMsg{slaveID: slaveID, err: fault.New(fault.NoDevice, "select", "console is not connected")}
		}
		return deviceSelectedMsg{slaveID: slaveID, err: driver.Select(slaveID)}
	}
}

func commitEditCmd(ctx context.Context, editor Editor, s sessionRef, raw string) tea.Cmd {
	return func() tea.Msg {
		return editResultMsg{bank: s.bank, address: s.address, err: editor.Commit(ctx, raw)}
	}
}

// sessionRef names the cell an edit command targets.
type sessionRef struct {
	bank    device.Bank
	address int
}

func fetchHistoryCmd(ctx context.Context, svc api.Service, limit int) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return historyMsg{err: fault.New(fault.Unsupported, "history", "no backend")}
		}
		records, err := svc.FetchHistory(ctx, limit)
		if err != nil {
			return historyMsg{err: err}
		}
		api.SortHistoryNewestFirst(records)
		return historyMsg{records: records}
	}
}

// exportHistoryCmd writes records as JSON into dir.
func exportHistoryCmd(records []api.HistoryRecord, dir string) tea.Cmd {
	return func() tea.Msg {
		path := filepath.Join(dir, api.ExportFileName(api.FormatJSON, time.Now()))
		f, err := os.Create(path)
		if err != nil {
			return exportMsg{err: fmt.Errorf("create export: %w", err)}
		}
		if err := api.ExportHistory(f, records, api.FormatJSON); err != nil {
			_ = f.Close()
			return exportMsg{err: err}
		}
		if err := f.Close(); err != nil {
			return exportMsg{err: fmt.Errorf("close export: %w", err)}
		}
		return exportMsg{path: path}
	}
}

func fetchStatsCmd(ctx context.Context, svc api.Service) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return statsMsg{err: fault.New(fault.Unsupported, "stats", "no backend")}
		}
		stats, err := svc.FetchStats(ctx)
		return statsMsg{stats: stats, err: err}
	}
}

func fetchConfigCmd(ctx context.Context, svc api.Service, slaveID int) tea.Cmd {
	return func() tea.Msg {
		if slaveID <= 0 {
			return configMsg{err: fault.New(fault.NoDevice, "config", "select a device first")}
		}
		if svc == nil {
			return configMsg{err: fault.New(fault.Unsupported, "config", "no backend")}
		}
		cfg, err := svc.FetchConfig(ctx, slaveID)
		return configMsg{cfg: cfg, err: err}
	}
}

func resizeCmd(ctx context.Context, mirror Mirror, deltas device.SizeDeltas) tea.Cmd {
	return func() tea.Msg {
		sizes, err := mirror.Resize(ctx, deltas)
		return resizeResultMsg{sizes: sizes, err: err}
	}
}

// Helpers

func statusText(err error) string {
	return fault.Status(err)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// neighborDevice returns the id delta steps from current in ids, wrapping
// around. When current is not listed the first id is returned.
func neighborDevice(ids []int, current, delta int) (int, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	for i, id := range ids {
		if id == current {
			return ids[((i+delta)%len(ids)+len(ids))%len(ids)], true
		}
	}
	return ids[0], true
}
