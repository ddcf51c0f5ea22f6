package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/device"
	"github.com/five82/mbdeck/internal/edit"
	"github.com/five82/mbdeck/internal/prefs"
	"github.com/five82/mbdeck/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewBanks View = iota
	ViewTools
	ViewHistory
	ViewStats
	ViewConfig
)

var viewOrder = []View{ViewBanks, ViewTools, ViewHistory, ViewStats, ViewConfig}

func (v View) String() string {
	switch v {
	case ViewTools:
		return "Tools"
	case ViewHistory:
		return "History"
	case ViewStats:
		return "Stats"
	case ViewConfig:
		return "Config"
	default:
		return "Banks"
	}
}

// Driver is the part of *reconcile.Driver the console uses.
type Driver interface {
	Select(slaveID int) error
	Trigger()
}

// Mirror is the part of *mirror.Mirror the console uses.
type Mirror interface {
	WriteSingle(ctx context.Context, bank device.Bank, address int, value device.Value) error
	Resize(ctx context.Context, deltas device.SizeDeltas) (device.Sizes, error)
}

// Editor is the part of *edit.Manager the console uses.
type Editor interface {
	Begin(bank device.Bank, address int, prior device.Value, bankLen int) (edit.Session, error)
	Active() (edit.Session, bool)
	Commit(ctx context.Context, raw string) error
	Cancel() error
}

// Options configures the UI.
type Options struct {
	Context      context.Context
	Service      api.Service
	Mirror       Mirror
	Driver       Driver
	Editor       Editor
	Store        *state.Store
	Logger       *zap.Logger
	Direct       bool
	HistoryLimit int
	PollTick     time.Duration
	Prefs        prefs.Prefs
	PrefsPath    string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx          context.Context
	service      api.Service
	mirror       Mirror
	driver       Driver
	editor       Editor
	store        *state.Store
	logger       *zap.Logger
	direct       bool
	historyLimit int
	pollTick     time.Duration
	prefs        prefs.Prefs
	prefsPath    string

	keys        keyMap
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	modal       Modal

	snapshot state.Snapshot
	status   string
	isError  bool

	banks bankState
	tools toolState

	history         historyState
	historyViewport viewport.Model

	stats  statsState
	config configState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = 500 * time.Millisecond
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	return Model{
		ctx:          ctx,
		service:      opts.Service,
		mirror:       opts.Mirror,
		driver:       opts.Driver,
		editor:       opts.Editor,
		store:        opts.Store,
		logger:       logger.Named("ui"),
		direct:       opts.Direct,
		historyLimit: opts.HistoryLimit,
		pollTick:     pollTick,
		prefs:        opts.Prefs,
		prefsPath:    prefsPath,
		keys:         defaultKeyMap(),
		theme:        GetTheme(opts.Prefs.Theme),
		currentView:  ViewBanks,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.historyViewport = viewport.New(msg.Width-4, m.contentHeight()-2)
		}
		m.ready = true
		m.historyViewport.Width = msg.Width - 4
		m.historyViewport.Height = m.contentHeight() - 2
		m.updateHistoryViewport()
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.pollTick)}
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		return m.applySnapshot(state.Snapshot(msg))

	case formSubmitMsg:
		return m.handleSubmit(msg)

	case deviceSelectedMsg:
		return m.handleDeviceSelected(msg)

	case editResultMsg:
		return m.handleEditResult(msg)

	case toolResultMsg:
		return m.handleToolResult(msg)

	case historyMsg:
		m.handleHistory(msg)
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("History exported to " + msg.path)
		}
		return m, nil

	case statsMsg:
		m.stats = statsState{loaded: true, stats: msg.stats, err: msg.err}
		return m, nil

	case configMsg:
		m.config.loaded = true
		m.config.cfg = msg.cfg
		m.config.err = msg.err
		return m, nil

	case resizeResultMsg:
		return m.handleResizeResult(msg)
	}

	if m.modal != nil {
		var cmd tea.Cmd
		var closed bool
		m.modal, cmd, closed = m.modal.Update(msg, m.keys)
		if closed {
			m.closeModal()
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		var closed bool
		m.modal, cmd, closed = m.modal.Update(msg, m.keys)
		if closed {
			m.closeModal()
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		return m.switchView(m.cycleView(1))

	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(m.cycleView(-1))

	case key.Matches(msg, m.keys.Escape):
		return m.switchView(ViewBanks)

	case key.Matches(msg, m.keys.ViewBanks):
		return m.switchView(ViewBanks)
	case key.Matches(msg, m.keys.ViewTools):
		return m.switchView(ViewTools)
	case key.Matches(msg, m.keys.ViewHistory):
		return m.switchView(ViewHistory)
	case key.Matches(msg, m.keys.ViewStats):
		return m.switchView(ViewStats)
	case key.Matches(msg, m.keys.ViewConfig):
		return m.switchView(ViewConfig)

	case key.Matches(msg, m.keys.PrevDevice):
		return m.stepDevice(-1)
	case key.Matches(msg, m.keys.NextDevice):
		return m.stepDevice(1)

	case key.Matches(msg, m.keys.Refresh):
		return m.refreshView()
	}

	switch m.currentView {
	case ViewBanks:
		return m.handleBanksKey(msg)
	case ViewTools:
		return m.handleToolsKey(msg)
	case ViewHistory:
		return m.handleHistoryKey(msg)
	case ViewConfig:
		return m.handleConfigKey(msg)
	}
	return m, nil
}

func (m Model) cycleView(delta int) View {
	for i, v := range viewOrder {
		if v == m.currentView {
			return viewOrder[(i+delta+len(viewOrder))%len(viewOrder)]
		}
	}
	return ViewBanks
}

// switchView activates v and loads whatever it shows from the backend.
func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.currentView = v
	switch v {
	case ViewHistory:
		return m, fetchHistoryCmd(m.ctx, m.service, m.historyLimit)
	case ViewStats:
		return m, fetchStatsCmd(m.ctx, m.service)
	case ViewConfig:
		return m, fetchConfigCmd(m.ctx, m.service, m.snapshot.SlaveID)
	}
	return m, nil
}

// refreshView asks for a new snapshot and reloads the active view.
func (m Model) refreshView() (tea.Model, tea.Cmd) {
	if m.driver != nil {
		m.driver.Trigger()
	}
	if m.currentView == ViewBanks || m.currentView == ViewTools {
		return m, nil
	}
	return m.switchView(m.currentView)
}

// stepDevice selects the device delta positions away in the device list.
func (m Model) stepDevice(delta int) (tea.Model, tea.Cmd) {
	next, ok := neighborDevice(m.snapshot.Devices, m.snapshot.SlaveID, delta)
	if !ok || next == m.snapshot.SlaveID {
		return m, nil
	}
	m.setStatus("Switching to device " + itoa(next) + "...")
	return m, selectDeviceCmd(m.driver, next)
}

func (m Model) handleDeviceSelected(msg deviceSelectedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setError(msg.err)
		return m, nil
	}
	m.banks = bankState{focus: m.banks.focus}
	m.config = configState{}
	m.setStatus("Device " + itoa(msg.slaveID) + " selected")
	m.prefs.LastDevice = msg.slaveID
	m.savePrefs()

	cmds := []tea.Cmd{fetchSnapshotCmd(m.store)}
	if m.currentView == ViewConfig {
		cmds = append(cmds, fetchConfigCmd(m.ctx, m.service, msg.slaveID))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) applySnapshot(snap state.Snapshot) (tea.Model, tea.Cmd) {
	m.snapshot = snap
	m.banks.clamp(snap.Data)
	return m, nil
}

// closeModal dismisses the open form. An edit form whose write is still in
// flight stays open and shows why.
func (m *Model) closeModal() {
	if f, ok := m.modal.(*formModal); ok && f.kind == formEdit && m.editor != nil {
		if err := m.editor.Cancel(); err != nil {
			f.err = statusText(err)
			return
		}
	}
	m.modal = nil
}

// failModal shows err inside the open form, or in the status bar when no
// form is open.
func (m *Model) failModal(err error) {
	if f, ok := m.modal.(*formModal); ok {
		f.setError(statusText(err))
		return
	}
	m.setError(err)
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.isError = false
}

func (m *Model) setError(err error) {
	m.status = statusText(err)
	m.isError = m.status != ""
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", zap.String("path", m.prefsPath), zap.Error(err))
	}
}

func (m Model) contentHeight() int {
	// header, command bar, status line
	return max(m.height-3, 3)
}

func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewTools:
		return m.renderTools()
	case ViewHistory:
		return m.renderHistory()
	case ViewStats:
		return m.renderStats()
	case ViewConfig:
		return m.renderConfig()
	default:
		return m.renderBanks()
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil {
		// Cancelled from outside (signal); not a failure.
		return nil
	}
	return err
}
