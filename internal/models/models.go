package models

import "time"

// Sync operation kinds recorded in sync_logs.
const (
	SyncTypeUpload   = "upload"
	SyncTypeDownload = "download"
	SyncTypeAuto     = "auto"
)

// Sync attempt states.
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusPending = "pending"
)

// DefaultModel is assigned to new accounts that don't specify one.
const DefaultModel = "claude-sonnet-4-20250514"

// DefaultRemotePath is the WebDAV directory used when a config leaves it blank.
const DefaultRemotePath = "/claude-config"

// DefaultSyncInterval is the auto-sync period in seconds.
const DefaultSyncInterval = 3600

type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	BaseURL   string    `json:"base_url"`
	Model     string    `json:"model"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Directory struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BaseURL struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Description *string   `json:"description,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AccountDirectory struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	DirectoryID int64     `json:"directory_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type WebdavConfig struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Username     string     `json:"username"`
	Password     string     `json:"password"`
	RemotePath   string     `json:"remote_path"`
	AutoSync     bool       `json:"auto_sync"`
	SyncInterval int64      `json:"sync_interval"`
	IsActive     bool       `json:"is_active"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type SyncLog struct {
	ID             int64     `json:"id"`
	WebdavConfigID int64     `json:"webdav_config_id"`
	SyncType       string    `json:"sync_type"`
	Status         string    `json:"status"`
	Message        *string   `json:"message,omitempty"`
	SyncedAt       time.Time `json:"synced_at"`
}

type LogMessage struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Level     string `json:"level"`
}
