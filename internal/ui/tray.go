package ui

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/heimdex/dsync/internal/dataset"
	"github.com/heimdex/dsync/internal/mirror"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = 5 * time.Second

// Mirror is the part of the local mirror the tray reports on.
type Mirror interface {
	CountItems(ctx context.Context) (int, error)
	RequestSync(ctx context.Context, filters dataset.Filters) (*mirror.SyncRun, error)
	IsSyncing() bool
}

type Tray struct {
	ctx     context.Context
	info    dataset.Info
	mirror  Mirror
	runner  *mirror.Runner
	logger  *slog.Logger
	enabled bool

	statusItem  *systray.MenuItem
	datasetItem *systray.MenuItem
	itemsItem   *systray.MenuItem
	pauseItem   *systray.MenuItem
	syncItem    *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	// Context bounds the refresh loop and tray-triggered syncs.
	Context context.Context
	Info    dataset.Info
	Mirror  Mirror
	Runner  *mirror.Runner
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Tray{
		ctx:     ctx,
		info:    cfg.Info,
		mirror:  cfg.Mirror,
		runner:  cfg.Runner,
		logger:  cfg.Logger,
		enabled: cfg.Mirror != nil,
		onQuit:  cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("dsync")
	systray.SetTooltip("Dataset sync agent")

	t.statusItem = systray.AddMenuItem("Status: "+statusLabel(false, false, t.enabled), "Current sync status")
	t.statusItem.Disable()

	t.datasetItem = systray.AddMenuItem("Dataset: "+datasetLabel(t.info), "Mirrored dataset")
	t.datasetItem.Disable()

	t.itemsItem = systray.AddMenuItem(itemsLabel(0), "Items in the local mirror")
	t.itemsItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause Sync", "Pause periodic sync")
	t.syncItem = systray.AddMenuItem("Sync Now", "Queue a full sync")
	if !t.enabled {
		t.pauseItem.Disable()
		t.syncItem.Disable()
	}

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit the sync agent")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-t.syncItem.ClickedCh:
				t.requestSync()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	if t.enabled {
		go t.refreshLoop()
	}

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	t.refresh()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	count, err := t.mirror.CountItems(t.ctx)
	if err != nil {
		t.logger.Debug("tray refresh failed", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusItem.SetTitle("Status: " + statusLabel(t.paused(), t.mirror.IsSyncing(), t.enabled))
	t.itemsItem.SetTitle(itemsLabel(count))
}

func (t *Tray) paused() bool {
	return t.runner != nil && t.runner.IsPaused()
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause Sync")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume Sync")
	}
	t.statusItem.SetTitle("Status: " + statusLabel(t.runner.IsPaused(), t.mirror.IsSyncing(), t.enabled))
}

func (t *Tray) requestSync() {
	run, err := t.mirror.RequestSync(t.ctx, nil)
	if errors.Is(err, mirror.ErrSyncInProgress) {
		t.logger.Info("sync already queued")
		return
	}
	if err != nil {
		t.logger.Error("failed to queue sync from tray", "error", err)
		return
	}
	t.logger.Info("sync queued from tray", "run_id", run.ID)
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusLabel(paused, syncing, enabled bool) string {
	switch {
	case !enabled:
		return "Not Connected"
	case syncing:
		return "Syncing"
	case paused:
		return "Paused"
	default:
		return "Idle"
	}
}

func datasetLabel(info dataset.Info) string {
	if info.Slug == "" {
		return "none"
	}
	return info.Team + "/" + info.Slug
}

func itemsLabel(count int) string {
	if count == 1 {
		return "Mirrored: 1 item"
	}
	return fmt.Sprintf("Mirrored: %d items", count)
}
