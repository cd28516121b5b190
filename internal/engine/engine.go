package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/studio-b12/gowebdav"
	"golang.org/x/sync/errgroup"

	"ClaudeConfigManager/internal/db"
	"ClaudeConfigManager/internal/models"
)

const (
	// RemoteSnapshotName is the file the config database is backed up as.
	RemoteSnapshotName = "claude-config.db"

	networkCheckInterval = 10 * time.Second
	autoSyncPoll         = 10 * time.Second
	watchRefresh         = time.Minute
	webdavTimeout        = 30 * time.Second
)

// Engine backs up and restores the config database against the active
// WebDAV target, recording every attempt in sync_logs.
type Engine struct {
	db          *db.DB
	dbPath      string
	restorePath string
	logger      zerolog.Logger

	syncMu sync.Mutex

	networkMu        sync.RWMutex
	networkAvailable bool

	paused  bool
	pauseMu sync.RWMutex

	logChan        chan models.LogMessage
	logSubscribers map[string]chan models.LogMessage
	subscribersMu  sync.RWMutex
}

func New(database *db.DB, dbPath, restorePath string) *Engine {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "config-sync").
		Logger()

	return &Engine{
		db:               database,
		dbPath:           dbPath,
		restorePath:      restorePath,
		logger:           logger,
		networkAvailable: true,
		logChan:          make(chan models.LogMessage, 1000),
		logSubscribers:   make(map[string]chan models.LogMessage),
	}
}

// Start runs the background loops until the context is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.log("sync engine starting")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.monitorNetwork(ctx) })
	g.Go(func() error { return e.autoSyncLoop(ctx) })
	g.Go(func() error { return e.watchDirectories(ctx, watcher) })
	g.Go(func() error { return e.broadcastLogs(ctx) })

	err = g.Wait()
	watcher.Close()
	e.log("sync engine stopped")
	return err
}

func (e *Engine) clientFor(cfg models.WebdavConfig) *gowebdav.Client {
	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	client.SetTimeout(webdavTimeout)
	return client
}

// SyncNow performs one sync of the given type against the active target.
// The attempt is always recorded: pending first, then success or failed.
func (e *Engine) SyncNow(syncType string) error {
	switch syncType {
	case models.SyncTypeUpload, models.SyncTypeDownload, models.SyncTypeAuto:
	default:
		return fmt.Errorf("unknown sync type: %s", syncType)
	}

	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	cfg, err := e.db.GetActiveWebdavConfig()
	if err != nil {
		return fmt.Errorf("no active webdav config: %w", err)
	}

	logID, err := e.db.StartSyncLog(cfg.ID, syncType)
	if err != nil {
		return fmt.Errorf("record sync attempt: %w", err)
	}

	if !e.networkUp() {
		err := fmt.Errorf("network unavailable")
		e.finishLog(logID, models.SyncStatusFailed, err.Error())
		return err
	}

	var syncErr error
	switch syncType {
	case models.SyncTypeDownload:
		syncErr = e.download(cfg)
	default:
		// Auto syncs push the local state, same as an explicit upload.
		syncErr = e.upload(cfg)
	}

	if syncErr != nil {
		e.logError(fmt.Sprintf("%s sync failed", syncType), syncErr)
		e.finishLog(logID, models.SyncStatusFailed, syncErr.Error())
		return syncErr
	}

	e.finishLog(logID, models.SyncStatusSuccess, fmt.Sprintf("%s completed", syncType))
	if err := e.db.TouchLastSync(cfg.ID); err != nil {
		e.logError("update last_sync_at failed", err)
	}
	e.log(fmt.Sprintf("%s sync completed for %q", syncType, cfg.Name))
	return nil
}

func (e *Engine) finishLog(id int64, status, message string) {
	if err := e.db.FinishSyncLog(id, status, message); err != nil {
		e.logError("finish sync log failed", err)
	}
}

func (e *Engine) upload(cfg models.WebdavConfig) error {
	client := e.clientFor(cfg)
	if err := client.MkdirAll(cfg.RemotePath, 0o755); err != nil {
		return fmt.Errorf("create remote path: %w", err)
	}

	f, err := os.Open(e.dbPath)
	if err != nil {
		return fmt.Errorf("open local database: %w", err)
	}
	defer f.Close()

	remote := path.Join(cfg.RemotePath, RemoteSnapshotName)
	if err := client.WriteStream(remote, f, 0o644); err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	return nil
}

func (e *Engine) download(cfg models.WebdavConfig) error {
	client := e.clientFor(cfg)

	remote := path.Join(cfg.RemotePath, RemoteSnapshotName)
	reader, err := client.ReadStream(remote)
	if err != nil {
		return fmt.Errorf("open remote snapshot: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(e.restorePath), 0o755); err != nil {
		return fmt.Errorf("create restore directory: %w", err)
	}
	f, err := os.Create(e.restorePath)
	if err != nil {
		return fmt.Errorf("create restore file: %w", err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(reader); err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	return nil
}

func (e *Engine) autoSyncLoop(ctx context.Context) error {
	ticker := time.NewTicker(autoSyncPoll)
	defer ticker.Stop()

	lastRun := time.Now()
	for {
		select {
		case <-ticker.C:
			if e.IsPaused() || !e.networkUp() {
				continue
			}
			cfg, err := e.db.GetActiveWebdavConfig()
			if err != nil || !cfg.AutoSync {
				continue
			}
			if time.Since(lastRun) < time.Duration(cfg.SyncInterval)*time.Second {
				continue
			}
			lastRun = time.Now()
			if err := e.SyncNow(models.SyncTypeAuto); err != nil {
				e.logError("scheduled sync failed", err)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// watchDirectories keeps fsnotify pointed at the .claude directory of every
// active project directory; settings changes trigger an auto sync when the
// active target has auto_sync enabled.
func (e *Engine) watchDirectories(ctx context.Context, watcher *fsnotify.Watcher) error {
	e.refreshWatches(watcher)

	refresh := time.NewTicker(watchRefresh)
	defer refresh.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if e.IsPaused() {
				continue
			}
			e.handleConfigChange(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logError("watch error", err)

		case <-refresh.C:
			e.refreshWatches(watcher)

		case <-ctx.Done():
			return nil
		}
	}
}

func (e *Engine) refreshWatches(watcher *fsnotify.Watcher) {
	dirs, err := e.db.GetActiveDirectories()
	if err != nil {
		e.logError("list active directories failed", err)
		return
	}

	for _, dir := range dirs {
		claudeDir := filepath.Join(dir.Path, ".claude")
		if _, err := os.Stat(claudeDir); err != nil {
			continue
		}
		// Adding an already-watched path is a no-op.
		if err := watcher.Add(claudeDir); err != nil {
			e.logError(fmt.Sprintf("watch %s failed", claudeDir), err)
		}
	}
}

func (e *Engine) handleConfigChange(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}

	cfg, err := e.db.GetActiveWebdavConfig()
	if err != nil || !cfg.AutoSync {
		return
	}

	e.log(fmt.Sprintf("settings change detected: %s", event.Name))
	if err := e.SyncNow(models.SyncTypeAuto); err != nil {
		e.logError("change-triggered sync failed", err)
	}
}

func (e *Engine) monitorNetwork(ctx context.Context) error {
	ticker := time.NewTicker(networkCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wasUp := e.networkUp()
			up := e.checkNetwork()
			e.setNetwork(up)

			if !wasUp && up {
				e.log("network restored")
			} else if wasUp && !up {
				e.log("network lost")
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func (e *Engine) checkNetwork() bool {
	cfg, err := e.db.GetActiveWebdavConfig()
	if err != nil {
		// Nothing to reach; don't report the network as down.
		return true
	}

	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequest(http.MethodHead, cfg.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

func (e *Engine) networkUp() bool {
	e.networkMu.RLock()
	defer e.networkMu.RUnlock()
	return e.networkAvailable
}

func (e *Engine) setNetwork(up bool) {
	e.networkMu.Lock()
	defer e.networkMu.Unlock()
	e.networkAvailable = up
}

func (e *Engine) Pause() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()
	e.paused = true
	e.log("sync paused")
}

func (e *Engine) Resume() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()
	e.paused = false
	e.log("sync resumed")
}

func (e *Engine) IsPaused() bool {
	e.pauseMu.RLock()
	defer e.pauseMu.RUnlock()
	return e.paused
}

func (e *Engine) NetworkAvailable() bool {
	return e.networkUp()
}

func (e *Engine) SubscribeLogs(id string) chan models.LogMessage {
	e.subscribersMu.Lock()
	defer e.subscribersMu.Unlock()

	ch := make(chan models.LogMessage, 100)
	e.logSubscribers[id] = ch
	return ch
}

func (e *Engine) UnsubscribeLogs(id string) {
	e.subscribersMu.Lock()
	defer e.subscribersMu.Unlock()

	if ch, exists := e.logSubscribers[id]; exists {
		close(ch)
		delete(e.logSubscribers, id)
	}
}

func (e *Engine) broadcastLogs(ctx context.Context) error {
	for {
		select {
		case msg := <-e.logChan:
			e.subscribersMu.RLock()
			for _, ch := range e.logSubscribers {
				select {
				case ch <- msg:
				default:
					// Skip subscribers that can't keep up.
				}
			}
			e.subscribersMu.RUnlock()

		case <-ctx.Done():
			return nil
		}
	}
}

func (e *Engine) log(msg string) {
	e.logger.Info().Msg(msg)
	e.publish(models.LogMessage{
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   msg,
		Level:     "info",
	})
}

func (e *Engine) logError(msg string, err error) {
	e.logger.Error().Err(err).Msg(msg)
	e.publish(models.LogMessage{
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   fmt.Sprintf("%s: %v", msg, err),
		Level:     "error",
	})
}

func (e *Engine) publish(entry models.LogMessage) {
	select {
	case e.logChan <- entry:
	default:
		e.logger.Warn().Msg("log channel full, dropping message")
	}
}
