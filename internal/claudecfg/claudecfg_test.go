package claudecfg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readSettingsFile(t *testing.T, dir string) map[string]any {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(dir, ".claude", "settings.local.json"))
	require.NoError(t, err)
	var settings map[string]any
	require.NoError(t, json.Unmarshal(content, &settings))
	return settings
}

func TestApplyWritesSettings(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	require.NoError(t, mgr.Apply("sk-test-token", "https://api.anthropic.com", false))

	settings := readSettingsFile(t, dir)
	env, ok := settings["env"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sk-test-token", env["ANTHROPIC_API_KEY"])
	assert.Equal(t, "sk-test-token", env["ANTHROPIC_AUTH_TOKEN"])
	assert.Equal(t, "https://api.anthropic.com", env["ANTHROPIC_BASE_URL"])
	_, hasSandbox := env["IS_SANDBOX"]
	assert.False(t, hasSandbox)
}

func TestApplySandbox(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	require.NoError(t, mgr.Apply("sk-test-token", "http://localhost:8000", true))

	env, err := mgr.EnvConfig()
	require.NoError(t, err)
	assert.Equal(t, "1", env["IS_SANDBOX"])
}

func TestApplyPreservesOtherSettings(t *testing.T) {
	dir := t.TempDir()
	claudeDir := filepath.Join(dir, ".claude")
	require.NoError(t, os.MkdirAll(claudeDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(claudeDir, "settings.local.json"),
		[]byte(`{"permissions": {"allow": ["Bash"]}}`),
		0o644,
	))

	mgr := NewManager(dir)
	require.NoError(t, mgr.Apply("sk-test-token", "https://api.anthropic.com", false))

	settings := readSettingsFile(t, dir)
	assert.Contains(t, settings, "permissions")
	assert.Contains(t, settings, "env")
}

func TestEnvConfigFallbackClaudeMD(t *testing.T) {
	dir := t.TempDir()
	content := "# Project notes\n\nANTHROPIC_API_KEY=sk-from-md\nANTHROPIC_BASE_URL=https://api.claude.ai\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CLAUDE.md"), []byte(content), 0o644))

	env, err := NewManager(dir).EnvConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-md", env["ANTHROPIC_API_KEY"])
	assert.Equal(t, "https://api.claude.ai", env["ANTHROPIC_BASE_URL"])
}

func TestEnvConfigFallbackSettingsJSON(t *testing.T) {
	dir := t.TempDir()
	claudeDir := filepath.Join(dir, ".claude")
	require.NoError(t, os.MkdirAll(claudeDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(claudeDir, "settings.json"),
		[]byte(`{"env": {"ANTHROPIC_API_KEY": "sk-legacy"}}`),
		0o644,
	))

	env, err := NewManager(dir).EnvConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-legacy", env["ANTHROPIC_API_KEY"])
}

func TestEnvConfigEmptyDirectory(t *testing.T) {
	env, err := NewManager(t.TempDir()).EnvConfig()
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestClearEnvRemovesManagedKeys(t *testing.T) {
	dir := t.TempDir()
	claudeDir := filepath.Join(dir, ".claude")
	require.NoError(t, os.MkdirAll(claudeDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(claudeDir, "settings.local.json"),
		[]byte(`{"env": {"ANTHROPIC_API_KEY": "sk", "ANTHROPIC_AUTH_TOKEN": "sk", "ANTHROPIC_BASE_URL": "u", "HTTP_PROXY": "http://proxy:3128"}}`),
		0o644,
	))

	mgr := NewManager(dir)
	require.NoError(t, mgr.ClearEnv())

	env, err := mgr.EnvConfig()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"HTTP_PROXY": "http://proxy:3128"}, env)
}

func TestClearEnvDropsEmptyBlock(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)
	require.NoError(t, mgr.Apply("sk", "https://api.anthropic.com", false))
	require.NoError(t, mgr.ClearEnv())

	settings := readSettingsFile(t, dir)
	assert.NotContains(t, settings, "env")
}
