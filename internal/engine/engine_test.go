package engine

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"

	"ClaudeConfigManager/internal/db"
	"ClaudeConfigManager/internal/models"
)

func newWebdavServer(t *testing.T) (*httptest.Server, webdav.FileSystem) {
	t.Helper()
	fs := webdav.NewMemFS()
	srv := httptest.NewServer(&webdav.Handler{
		FileSystem: fs,
		LockSystem: webdav.NewMemLS(),
	})
	t.Cleanup(srv.Close)
	return srv, fs
}

func newTestEngine(t *testing.T, serverURL string) (*Engine, *db.DB) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "config.db")
	database, err := db.NewDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg, err := database.CreateWebdavConfig(models.WebdavConfig{
		Name: "test-target", URL: serverURL, Username: "u", Password: "p",
		RemotePath: "/backup",
	})
	require.NoError(t, err)
	require.NoError(t, database.SetActiveWebdavConfig(cfg.ID))

	return New(database, dbPath, filepath.Join(dir, "restore.db")), database
}

func activeConfigID(t *testing.T, database *db.DB) int64 {
	t.Helper()
	cfg, err := database.GetActiveWebdavConfig()
	require.NoError(t, err)
	return cfg.ID
}

func TestSyncNowUpload(t *testing.T) {
	srv, fs := newWebdavServer(t)
	eng, database := newTestEngine(t, srv.URL)

	require.NoError(t, eng.SyncNow(models.SyncTypeUpload))

	info, err := fs.Stat(context.Background(), "/backup/"+RemoteSnapshotName)
	require.NoError(t, err, "snapshot must exist on the server")
	assert.Greater(t, info.Size(), int64(0))

	cfgID := activeConfigID(t, database)
	logs, err := database.GetSyncLogs(cfgID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncStatusSuccess, logs[0].Status)
	assert.Equal(t, models.SyncTypeUpload, logs[0].SyncType)

	cfg, err := database.GetWebdavConfig(cfgID)
	require.NoError(t, err)
	assert.NotNil(t, cfg.LastSyncAt)
}

func TestSyncNowDownload(t *testing.T) {
	srv, fs := newWebdavServer(t)
	eng, database := newTestEngine(t, srv.URL)

	ctx := context.Background()
	require.NoError(t, fs.Mkdir(ctx, "/backup", 0o755))
	f, err := fs.OpenFile(ctx, "/backup/"+RemoteSnapshotName, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("snapshot-bytes"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, eng.SyncNow(models.SyncTypeDownload))

	restored, err := os.ReadFile(eng.restorePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot-bytes"), restored)

	logs, err := database.GetSyncLogs(activeConfigID(t, database), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncStatusSuccess, logs[0].Status)
}

func TestSyncNowRecordsFailure(t *testing.T) {
	srv, _ := newWebdavServer(t)
	eng, database := newTestEngine(t, srv.URL)
	eng.dbPath = filepath.Join(t.TempDir(), "does-not-exist.db")

	require.Error(t, eng.SyncNow(models.SyncTypeUpload))

	logs, err := database.GetSyncLogs(activeConfigID(t, database), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncStatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].Message)
	assert.NotEmpty(t, *logs[0].Message)
}

func TestSyncNowNoActiveConfig(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "config.db")
	database, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer database.Close()

	eng := New(database, dbPath, filepath.Join(dir, "restore.db"))
	err = eng.SyncNow(models.SyncTypeUpload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active webdav config")
}

func TestSyncNowRejectsUnknownType(t *testing.T) {
	srv, _ := newWebdavServer(t)
	eng, database := newTestEngine(t, srv.URL)

	require.Error(t, eng.SyncNow("backup"))

	// Nothing should be recorded for a type the schema would reject anyway.
	logs, err := database.GetSyncLogs(activeConfigID(t, database), 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestPauseResumeBroadcast(t *testing.T) {
	srv, _ := newWebdavServer(t)
	eng, _ := newTestEngine(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.broadcastLogs(ctx)

	ch := eng.SubscribeLogs("test-subscriber")
	defer eng.UnsubscribeLogs("test-subscriber")

	eng.Pause()
	assert.True(t, eng.IsPaused())

	select {
	case msg := <-ch:
		assert.Contains(t, msg.Message, "paused")
	case <-time.After(2 * time.Second):
		t.Fatal("no log message broadcast after pause")
	}

	eng.Resume()
	assert.False(t, eng.IsPaused())
}
