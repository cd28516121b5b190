// Package claudecfg reads and writes the per-directory Claude client
// configuration (.claude/settings.local.json and its legacy fallbacks).
package claudecfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envKeyAPIKey    = "ANTHROPIC_API_KEY"
	envKeyAuthToken = "ANTHROPIC_AUTH_TOKEN"
	envKeyBaseURL   = "ANTHROPIC_BASE_URL"
	envKeySandbox   = "IS_SANDBOX"
)

type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

func (m *Manager) claudeDir() string {
	return filepath.Join(m.dir, ".claude")
}

// SettingsFile is the canonical location managed settings are written to.
func (m *Manager) SettingsFile() string {
	return filepath.Join(m.claudeDir(), "settings.local.json")
}

// Older installs kept settings in several places; checked in this order when
// the canonical file is missing.
func (m *Manager) alternativeSettingsFiles() []string {
	return []string{
		filepath.Join(m.claudeDir(), "settings.json"),
		filepath.Join(m.claudeDir(), "claude_config.json"),
		filepath.Join(m.dir, ".claude_config"),
		filepath.Join(m.dir, "CLAUDE.md"),
	}
}

func (m *Manager) readSettings() (map[string]any, error) {
	if settings, ok, err := readJSONFile(m.SettingsFile()); err != nil {
		return nil, err
	} else if ok {
		return settings, nil
	}

	for _, alt := range m.alternativeSettingsFiles() {
		if strings.HasSuffix(alt, "CLAUDE.md") {
			if settings, ok := parseClaudeMD(alt); ok {
				return settings, nil
			}
			continue
		}
		// Fallback files may hold arbitrary content; skip anything that
		// isn't valid JSON rather than failing the read.
		if settings, ok, err := readJSONFile(alt); err == nil && ok {
			return settings, nil
		}
	}

	return map[string]any{}, nil
}

func readJSONFile(path string) (map[string]any, bool, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var settings map[string]any
	if err := json.Unmarshal(content, &settings); err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", path, err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, true, nil
}

// parseClaudeMD picks KEY=value env lines out of a CLAUDE.md file.
func parseClaudeMD(path string) (map[string]any, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	env := map[string]any{}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		for _, key := range []string{envKeyAPIKey, envKeyBaseURL, "CLAUDE_API_KEY"} {
			if strings.HasPrefix(line, key+"=") {
				env[key] = strings.TrimSpace(strings.TrimPrefix(line, key+"="))
			}
		}
	}
	if len(env) == 0 {
		return nil, false
	}
	return map[string]any{"env": env}, true
}

func (m *Manager) writeSettings(settings map[string]any) error {
	if err := os.MkdirAll(m.claudeDir(), 0o755); err != nil {
		return err
	}
	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.SettingsFile(), content, 0o644)
}

// Apply sets the managed env block for the directory, preserving any other
// settings already present.
func (m *Manager) Apply(token, baseURL string, sandbox bool) error {
	settings, err := m.readSettings()
	if err != nil {
		return err
	}

	env := map[string]any{
		envKeyAPIKey:    token,
		envKeyAuthToken: token,
		envKeyBaseURL:   baseURL,
	}
	if sandbox {
		env[envKeySandbox] = "1"
	}
	settings["env"] = env

	return m.writeSettings(settings)
}

// EnvConfig returns the string-valued entries of the env block.
func (m *Manager) EnvConfig() (map[string]string, error) {
	settings, err := m.readSettings()
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	if obj, ok := settings["env"].(map[string]any); ok {
		for key, value := range obj {
			if s, ok := value.(string); ok {
				env[key] = s
			}
		}
	}
	return env, nil
}

// ClearEnv removes the managed keys, dropping the env block entirely when
// nothing else remains in it.
func (m *Manager) ClearEnv() error {
	settings, err := m.readSettings()
	if err != nil {
		return err
	}

	if obj, ok := settings["env"].(map[string]any); ok {
		delete(obj, envKeyAPIKey)
		delete(obj, envKeyAuthToken)
		delete(obj, envKeyBaseURL)
		if len(obj) == 0 {
			delete(settings, "env")
		}
	}

	return m.writeSettings(settings)
}
