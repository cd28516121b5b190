package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/random"
	"github.com/mattn/go-sqlite3"

	"ClaudeConfigManager/internal/claudecfg"
	"ClaudeConfigManager/internal/db"
	"ClaudeConfigManager/internal/engine"
	"ClaudeConfigManager/internal/models"
)

type API struct {
	eng *engine.Engine
	db  *db.DB
}

func SetupRoutes(g *echo.Group, eng *engine.Engine, database *db.DB) {
	api := &API{eng: eng, db: database}

	g.GET("/accounts", api.listAccounts)
	g.POST("/accounts", api.createAccount)
	g.GET("/accounts/:id", api.getAccount)
	g.PUT("/accounts/:id", api.updateAccount)
	g.DELETE("/accounts/:id", api.deleteAccount)
	g.POST("/accounts/:id/activate", api.activateAccount)
	g.GET("/accounts/:id/directories", api.listAccountDirectories)
	g.POST("/accounts/:id/directories/:dirID", api.linkDirectory)
	g.DELETE("/accounts/:id/directories/:dirID", api.unlinkDirectory)

	g.GET("/directories", api.listDirectories)
	g.POST("/directories", api.createDirectory)
	g.PUT("/directories/:id", api.updateDirectory)
	g.DELETE("/directories/:id", api.deleteDirectory)

	g.GET("/base-urls", api.listBaseURLs)
	g.POST("/base-urls", api.createBaseURL)
	g.DELETE("/base-urls/:id", api.deleteBaseURL)

	g.GET("/webdav-configs", api.listWebdavConfigs)
	g.POST("/webdav-configs", api.createWebdavConfig)
	g.PUT("/webdav-configs/:id", api.updateWebdavConfig)
	g.DELETE("/webdav-configs/:id", api.deleteWebdavConfig)
	g.POST("/webdav-configs/:id/activate", api.activateWebdavConfig)

	g.POST("/sync", api.sync)
	g.GET("/sync-logs", api.listSyncLogs)

	g.GET("/status", api.status)
	g.POST("/pause", api.pause)
	g.POST("/resume", api.resume)
	g.GET("/logs", api.streamLogs)
}

func errJSON(c echo.Context, code int, err error) error {
	return c.JSON(code, map[string]string{"error": err.Error()})
}

func storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errJSON(c, http.StatusNotFound, errors.New("not found"))
	case isConstraintViolation(err):
		return errJSON(c, http.StatusConflict, err)
	default:
		return errJSON(c, http.StatusInternalServerError, err)
	}
}

func isConstraintViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// ---- accounts ----

func (a *API) listAccounts(c echo.Context) error {
	accounts, err := a.db.GetAccounts()
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, accounts)
}

func (a *API) createAccount(c echo.Context) error {
	var account models.Account
	if err := c.Bind(&account); err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("invalid request"))
	}
	if account.Name == "" || account.Token == "" || account.BaseURL == "" {
		return errJSON(c, http.StatusBadRequest, errors.New("name, token and base_url are required"))
	}
	created, err := a.db.CreateAccount(account)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *API) getAccount(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	account, err := a.db.GetAccount(id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, account)
}

func (a *API) updateAccount(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	var account models.Account
	if err := c.Bind(&account); err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("invalid request"))
	}
	account.ID = id
	if err := a.db.UpdateAccount(account); err != nil {
		return storeError(c, err)
	}
	updated, err := a.db.GetAccount(id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (a *API) deleteAccount(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := a.db.DeleteAccount(id); err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "account deleted"})
}

func (a *API) activateAccount(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := a.db.SetActiveAccount(id); err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "account activated"})
}

func (a *API) listAccountDirectories(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	dirs, err := a.db.GetDirectoriesForAccount(id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, dirs)
}

// linkDirectory assigns an account to a directory and writes the account's
// credentials into the directory's Claude settings.
func (a *API) linkDirectory(c echo.Context) error {
	accountID, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	dirID, err := paramID(c, "dirID")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}

	account, err := a.db.GetAccount(accountID)
	if err != nil {
		return storeError(c, err)
	}
	dir, err := a.db.GetDirectory(dirID)
	if err != nil {
		return storeError(c, err)
	}

	if err := a.db.LinkAccountDirectory(accountID, dirID); err != nil {
		return storeError(c, err)
	}

	mgr := claudecfg.NewManager(dir.Path)
	if err := mgr.Apply(account.Token, account.BaseURL, false); err != nil {
		return errJSON(c, http.StatusInternalServerError, fmt.Errorf("write settings: %w", err))
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "directory linked"})
}

func (a *API) unlinkDirectory(c echo.Context) error {
	accountID, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	dirID, err := paramID(c, "dirID")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := a.db.UnlinkAccountDirectory(accountID, dirID); err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "directory unlinked"})
}

// ---- directories ----

func (a *API) listDirectories(c echo.Context) error {
	dirs, err := a.db.GetDirectories()
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, dirs)
}

func (a *API) createDirectory(c echo.Context) error {
	var dir models.Directory
	if err := c.Bind(&dir); err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("invalid request"))
	}
	if dir.Path == "" || dir.Name == "" {
		return errJSON(c, http.StatusBadRequest, errors.New("path and name are required"))
	}
	created, err := a.db.CreateDirectory(dir)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *API) updateDirectory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	var dir models.Directory
	if err := c.Bind(&dir); err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("invalid request"))
	}
	dir.ID = id
	if err := a.db.UpdateDirectory(dir); err != nil {
		return storeError(c, err)
	}
	updated, err := a.db.GetDirectory(id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (a *API) deleteDirectory(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := a.db.DeleteDirectory(id); err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "directory deleted"})
}

// ---- base urls ----

func (a *API) listBaseURLs(c echo.Context) error {
	urls, err := a.db.GetBaseURLs()
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, urls)
}

func (a *API) createBaseURL(c echo.Context) error {
	var b models.BaseURL
	if err := c.Bind(&b); err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("invalid request"))
	}
	if b.Name == "" || b.URL == "" {
		return errJSON(c, http.StatusBadRequest, errors.New("name and url are required"))
	}
	created, err := a.db.CreateBaseURL(b)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *API) deleteBaseURL(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := a.db.DeleteBaseURL(id); err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "base url deleted"})
}

// ---- webdav configs ----

func (a *API) listWebdavConfigs(c echo.Context) error {
	configs, err := a.db.GetWebdavConfigs()
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, configs)
}

func (a *API) createWebdavConfig(c echo.Context) error {
	var cfg models.WebdavConfig
	if err := c.Bind(&cfg); err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("invalid request"))
	}
	if cfg.Name == "" || cfg.URL == "" {
		return errJSON(c, http.StatusBadRequest, errors.New("name and url are required"))
	}
	created, err := a.db.CreateWebdavConfig(cfg)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *API) updateWebdavConfig(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	var cfg models.WebdavConfig
	if err := c.Bind(&cfg); err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("invalid request"))
	}
	cfg.ID = id
	if err := a.db.UpdateWebdavConfig(cfg); err != nil {
		return storeError(c, err)
	}
	updated, err := a.db.GetWebdavConfig(id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (a *API) deleteWebdavConfig(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := a.db.DeleteWebdavConfig(id); err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "webdav config deleted"})
}

func (a *API) activateWebdavConfig(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if err := a.db.SetActiveWebdavConfig(id); err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "webdav config activated"})
}

// ---- sync ----

func (a *API) sync(c echo.Context) error {
	var req struct {
		Type string `json:"type"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("invalid request"))
	}
	if req.Type == "" {
		req.Type = models.SyncTypeUpload
	}
	if err := a.eng.SyncNow(req.Type); err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "sync completed"})
}

func (a *API) listSyncLogs(c echo.Context) error {
	configID, err := strconv.ParseInt(c.QueryParam("config_id"), 10, 64)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, errors.New("config_id is required"))
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	logs, err := a.db.GetSyncLogs(configID, limit)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}

// ---- engine control ----

func (a *API) status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"paused":           a.eng.IsPaused(),
		"networkAvailable": a.eng.NetworkAvailable(),
	})
}

func (a *API) pause(c echo.Context) error {
	a.eng.Pause()
	return c.JSON(http.StatusOK, map[string]string{"message": "paused"})
}

func (a *API) resume(c echo.Context) error {
	a.eng.Resume()
	return c.JSON(http.StatusOK, map[string]string{"message": "resumed"})
}

func (a *API) streamLogs(c echo.Context) error {
	id := random.String(16)
	logChan := a.eng.SubscribeLogs(id)
	defer a.eng.UnsubscribeLogs(id)

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	for {
		select {
		case entry := <-logChan:
			fmt.Fprintf(c.Response(), "data: %s\n\n", entry.Message)
			c.Response().Flush()
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
