package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"ClaudeConfigManager/internal/models"
)

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the config database and brings it to the expected
// shape. Foreign keys are enabled on every connection so cascade rules apply.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(seedBaseURLs); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed base urls: %w", err)
	}

	return &DB{db}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// ---- accounts ----

func scanAccount(s scanner) (models.Account, error) {
	var a models.Account
	err := s.Scan(&a.ID, &a.Name, &a.Token, &a.BaseURL, &a.Model, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

const accountCols = "id, name, token, base_url, model, is_active, created_at, updated_at"

func (d *DB) CreateAccount(a models.Account) (models.Account, error) {
	if a.Model == "" {
		a.Model = models.DefaultModel
	}
	res, err := d.Exec(`
        INSERT INTO accounts (name, token, base_url, model)
        VALUES (?, ?, ?, ?)
    `, a.Name, a.Token, a.BaseURL, a.Model)
	if err != nil {
		return models.Account{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Account{}, err
	}
	return d.GetAccount(id)
}

func (d *DB) GetAccount(id int64) (models.Account, error) {
	return scanAccount(d.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id))
}

func (d *DB) GetActiveAccount() (models.Account, error) {
	return scanAccount(d.QueryRow(`SELECT ` + accountCols + ` FROM accounts WHERE is_active = 1`))
}

func (d *DB) GetAccounts() ([]models.Account, error) {
	rows, err := d.Query(`SELECT ` + accountCols + ` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (d *DB) UpdateAccount(a models.Account) error {
	res, err := d.Exec(`
        UPDATE accounts
        SET name = ?, token = ?, base_url = ?, model = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?
    `, a.Name, a.Token, a.BaseURL, a.Model, a.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (d *DB) DeleteAccount(id int64) error {
	res, err := d.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetActiveAccount makes the given account the single active one. The schema
// doesn't enforce at-most-one-active, so both updates run in one transaction.
func (d *DB) SetActiveAccount(id int64) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE accounts SET is_active = 0 WHERE is_active = 1`); err != nil {
		return err
	}
	res, err := tx.Exec(`UPDATE accounts SET is_active = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// ---- directories ----

func scanDirectory(s scanner) (models.Directory, error) {
	var dir models.Directory
	err := s.Scan(&dir.ID, &dir.Path, &dir.Name, &dir.IsActive, &dir.CreatedAt, &dir.UpdatedAt)
	return dir, err
}

const directoryCols = "id, path, name, is_active, created_at, updated_at"

func (d *DB) CreateDirectory(dir models.Directory) (models.Directory, error) {
	res, err := d.Exec(`INSERT INTO directories (path, name) VALUES (?, ?)`, dir.Path, dir.Name)
	if err != nil {
		return models.Directory{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Directory{}, err
	}
	return d.GetDirectory(id)
}

func (d *DB) GetDirectory(id int64) (models.Directory, error) {
	return scanDirectory(d.QueryRow(`SELECT `+directoryCols+` FROM directories WHERE id = ?`, id))
}

func (d *DB) GetDirectories() ([]models.Directory, error) {
	rows, err := d.Query(`SELECT ` + directoryCols + ` FROM directories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []models.Directory
	for rows.Next() {
		dir, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

func (d *DB) GetActiveDirectories() ([]models.Directory, error) {
	rows, err := d.Query(`SELECT ` + directoryCols + ` FROM directories WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []models.Directory
	for rows.Next() {
		dir, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

func (d *DB) UpdateDirectory(dir models.Directory) error {
	res, err := d.Exec(`
        UPDATE directories
        SET path = ?, name = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?
    `, dir.Path, dir.Name, dir.IsActive, dir.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (d *DB) DeleteDirectory(id int64) error {
	res, err := d.Exec(`DELETE FROM directories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ---- base urls ----

func scanBaseURL(s scanner) (models.BaseURL, error) {
	var b models.BaseURL
	err := s.Scan(&b.ID, &b.Name, &b.URL, &b.Description, &b.IsDefault, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

const baseURLCols = "id, name, url, description, is_default, created_at, updated_at"

func (d *DB) CreateBaseURL(b models.BaseURL) (models.BaseURL, error) {
	res, err := d.Exec(`
        INSERT INTO base_urls (name, url, description, is_default)
        VALUES (?, ?, ?, ?)
    `, b.Name, b.URL, b.Description, b.IsDefault)
	if err != nil {
		return models.BaseURL{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.BaseURL{}, err
	}
	return scanBaseURL(d.QueryRow(`SELECT `+baseURLCols+` FROM base_urls WHERE id = ?`, id))
}

func (d *DB) GetBaseURLs() ([]models.BaseURL, error) {
	rows, err := d.Query(`SELECT ` + baseURLCols + ` FROM base_urls ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []models.BaseURL
	for rows.Next() {
		b, err := scanBaseURL(rows)
		if err != nil {
			return nil, err
		}
		urls = append(urls, b)
	}
	return urls, rows.Err()
}

func (d *DB) GetDefaultBaseURL() (models.BaseURL, error) {
	return scanBaseURL(d.QueryRow(`SELECT ` + baseURLCols + ` FROM base_urls WHERE is_default = 1`))
}

func (d *DB) DeleteBaseURL(id int64) error {
	res, err := d.Exec(`DELETE FROM base_urls WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ---- account <-> directory links ----

func (d *DB) LinkAccountDirectory(accountID, directoryID int64) error {
	_, err := d.Exec(`
        INSERT INTO account_directories (account_id, directory_id)
        VALUES (?, ?)
    `, accountID, directoryID)
	return err
}

func (d *DB) UnlinkAccountDirectory(accountID, directoryID int64) error {
	res, err := d.Exec(`
        DELETE FROM account_directories WHERE account_id = ? AND directory_id = ?
    `, accountID, directoryID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (d *DB) GetDirectoriesForAccount(accountID int64) ([]models.Directory, error) {
	rows, err := d.Query(`
        SELECT d.id, d.path, d.name, d.is_active, d.created_at, d.updated_at
        FROM directories d
        JOIN account_directories ad ON ad.directory_id = d.id
        WHERE ad.account_id = ?
        ORDER BY d.id
    `, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []models.Directory
	for rows.Next() {
		dir, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

func (d *DB) GetAccountsForDirectory(directoryID int64) ([]models.Account, error) {
	rows, err := d.Query(`
        SELECT a.id, a.name, a.token, a.base_url, a.model, a.is_active, a.created_at, a.updated_at
        FROM accounts a
        JOIN account_directories ad ON ad.account_id = a.id
        WHERE ad.directory_id = ?
        ORDER BY a.id
    `, directoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ---- webdav configs ----

func scanWebdavConfig(s scanner) (models.WebdavConfig, error) {
	var w models.WebdavConfig
	err := s.Scan(&w.ID, &w.Name, &w.URL, &w.Username, &w.Password, &w.RemotePath,
		&w.AutoSync, &w.SyncInterval, &w.IsActive, &w.LastSyncAt, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

const webdavCols = "id, name, url, username, password, remote_path, auto_sync, sync_interval, is_active, last_sync_at, created_at, updated_at"

func (d *DB) CreateWebdavConfig(w models.WebdavConfig) (models.WebdavConfig, error) {
	if w.RemotePath == "" {
		w.RemotePath = models.DefaultRemotePath
	}
	if w.SyncInterval <= 0 {
		w.SyncInterval = models.DefaultSyncInterval
	}
	res, err := d.Exec(`
        INSERT INTO webdav_configs (name, url, username, password, remote_path, auto_sync, sync_interval)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, w.Name, w.URL, w.Username, w.Password, w.RemotePath, w.AutoSync, w.SyncInterval)
	if err != nil {
		return models.WebdavConfig{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.WebdavConfig{}, err
	}
	return d.GetWebdavConfig(id)
}

func (d *DB) GetWebdavConfig(id int64) (models.WebdavConfig, error) {
	return scanWebdavConfig(d.QueryRow(`SELECT `+webdavCols+` FROM webdav_configs WHERE id = ?`, id))
}

func (d *DB) GetActiveWebdavConfig() (models.WebdavConfig, error) {
	return scanWebdavConfig(d.QueryRow(`SELECT ` + webdavCols + ` FROM webdav_configs WHERE is_active = 1`))
}

func (d *DB) GetWebdavConfigs() ([]models.WebdavConfig, error) {
	rows, err := d.Query(`SELECT ` + webdavCols + ` FROM webdav_configs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []models.WebdavConfig
	for rows.Next() {
		w, err := scanWebdavConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, w)
	}
	return configs, rows.Err()
}

func (d *DB) UpdateWebdavConfig(w models.WebdavConfig) error {
	res, err := d.Exec(`
        UPDATE webdav_configs
        SET name = ?, url = ?, username = ?, password = ?, remote_path = ?,
            auto_sync = ?, sync_interval = ?, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?
    `, w.Name, w.URL, w.Username, w.Password, w.RemotePath, w.AutoSync, w.SyncInterval, w.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (d *DB) DeleteWebdavConfig(id int64) error {
	res, err := d.Exec(`DELETE FROM webdav_configs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetActiveWebdavConfig mirrors SetActiveAccount for sync targets.
func (d *DB) SetActiveWebdavConfig(id int64) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE webdav_configs SET is_active = 0 WHERE is_active = 1`); err != nil {
		return err
	}
	res, err := tx.Exec(`UPDATE webdav_configs SET is_active = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) TouchLastSync(id int64) error {
	_, err := d.Exec(`
        UPDATE webdav_configs SET last_sync_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
        WHERE id = ?
    `, id)
	return err
}

// ---- sync logs ----

// StartSyncLog records a pending attempt and returns its id so the caller can
// finish it once the transfer settles.
func (d *DB) StartSyncLog(configID int64, syncType string) (int64, error) {
	res, err := d.Exec(`
        INSERT INTO sync_logs (webdav_config_id, sync_type, status)
        VALUES (?, ?, ?)
    `, configID, syncType, models.SyncStatusPending)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) FinishSyncLog(id int64, status, message string) error {
	res, err := d.Exec(`
        UPDATE sync_logs SET status = ?, message = ?, synced_at = CURRENT_TIMESTAMP
        WHERE id = ?
    `, status, message, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (d *DB) GetSyncLogs(configID int64, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.Query(`
        SELECT id, webdav_config_id, sync_type, status, message, synced_at
        FROM sync_logs
        WHERE webdav_config_id = ?
        ORDER BY id DESC
        LIMIT ?
    `, configID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.SyncLog
	for rows.Next() {
		var l models.SyncLog
		if err := rows.Scan(&l.ID, &l.WebdavConfigID, &l.SyncType, &l.Status, &l.Message, &l.SyncedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
