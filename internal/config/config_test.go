package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rawDatabaseID    = "0123456789abcdef0123456789abcdef"
	dashedDatabaseID = "01234567-89ab-cdef-0123-456789abcdef"
	assigneeID       = "1ecd872b-594c-8128-8e5c-00027b673c19"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvToken, EnvDatabaseID, EnvAssigneeID, EnvICSPath, EnvWindowDays, EnvOnUnknown, EnvLogLevel} {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Notion.Token = "secret"
	cfg.Notion.DatabaseID = rawDatabaseID
	cfg.Notion.AssigneeID = assigneeID
	cfg.ICSPath = "https://example.test/cal.ics"
	return cfg
}

func TestFormatDatabaseID(t *testing.T) {
	got, err := FormatDatabaseID(rawDatabaseID)
	require.NoError(t, err)
	assert.Equal(t, dashedDatabaseID, got)

	got, err = FormatDatabaseID(" " + dashedDatabaseID + " ")
	require.NoError(t, err)
	assert.Equal(t, dashedDatabaseID, got)

	_, err = FormatDatabaseID("not-an-id")
	assert.Error(t, err)
}

func TestValidateNormalizesDatabaseID(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, dashedDatabaseID, cfg.Notion.DatabaseID)
}

func TestValidateReportsEveryMissingInput(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{EnvToken, EnvDatabaseID, EnvAssigneeID, EnvICSPath} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"bad assignee":    func(c *Config) { c.Notion.AssigneeID = "someone" },
		"bad database":    func(c *Config) { c.Notion.DatabaseID = "xyz" },
		"bad on_unknown":  func(c *Config) { c.OnUnknown = "maybe" },
		"bad timezone":    func(c *Config) { c.Timezone = "Mars/Olympus" },
		"bad cron":        func(c *Config) { c.RefreshCron = "every tuesday" },
		"negative window": func(c *Config) { c.WindowDays = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvToken, "env-token")
	t.Setenv(EnvDatabaseID, rawDatabaseID)
	t.Setenv(EnvAssigneeID, assigneeID)
	t.Setenv(EnvICSPath, "/tmp/cal.ics")
	t.Setenv(EnvWindowDays, "5")
	t.Setenv(EnvOnUnknown, "CREATE")

	cfg := DefaultConfig()
	cfg.Notion.Token = "file-token"
	require.NoError(t, cfg.ApplyEnv(""))

	assert.Equal(t, "env-token", cfg.Notion.Token)
	assert.Equal(t, "/tmp/cal.ics", cfg.ICSPath)
	assert.Equal(t, 5, cfg.WindowDays)
	assert.Equal(t, OnUnknownCreate, cfg.OnUnknown)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadWindow(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWindowDays, "two")
	assert.Error(t, DefaultConfig().ApplyEnv(""))
}

func TestWindowDays(t *testing.T) {
	clearEnv(t)

	t.Setenv(EnvWindowDays, "0")
	cfg := validConfig()
	require.NoError(t, cfg.ApplyEnv(""))
	assert.Equal(t, 0, cfg.WindowDays)
	require.NoError(t, cfg.Validate())

	t.Setenv(EnvWindowDays, "-3")
	cfg = validConfig()
	require.NoError(t, cfg.ApplyEnv(""))
	assert.Equal(t, -3, cfg.WindowDays)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvWindowDays)
}

func TestLoadWindowDays(t *testing.T) {
	dir := t.TempDir()

	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("window_days: 0\n"), 0o600))
	cfg, err := Load(zero)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.WindowDays)

	missing := filepath.Join(dir, "missing.yaml")
	require.NoError(t, os.WriteFile(missing, []byte("timezone: Europe/Madrid\n"), 0o600))
	cfg, err = Load(missing)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowDays, cfg.WindowDays)
	assert.Equal(t, DefaultHorizonDays, cfg.HorizonDays)
}

func TestApplyEnvReadsDotEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvToken)
	os.Unsetenv(EnvICSPath)
	t.Cleanup(func() {
		os.Unsetenv(EnvToken)
		os.Unsetenv(EnvICSPath)
	})

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NOTION_TOKEN=from-dotenv\nICS_PATH=https://example.test/x.ics\n"), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envFile))
	assert.Equal(t, "from-dotenv", cfg.Notion.Token)
	assert.Equal(t, "https://example.test/x.ics", cfg.ICSPath)

	// A missing env file is not an error.
	require.NoError(t, DefaultConfig().ApplyEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowDays, cfg.WindowDays)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadReadsYAMLAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
notion:
  token: yaml-token
  database_id: ` + rawDatabaseID + `
  assignee_id: ` + assigneeID + `
  title_prefix: none
  properties:
    title: Name
ics_path: https://example.test/cal.ics
window_days: 7
request_timeout: 5s
refresh: "*/15 * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-token", cfg.Notion.Token)
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "", cfg.Notion.TitlePrefix)
	assert.Equal(t, "Name", cfg.Notion.Properties.Title)
	assert.Equal(t, "Fecha límite", cfg.Notion.Properties.Due)
	assert.Equal(t, DefaultNotionVersion, cfg.Notion.Version)
	assert.Equal(t, OnUnknownSkip, cfg.OnUnknown)
	require.NoError(t, cfg.Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitlePrefix, cfg.Notion.TitlePrefix)
	assert.Equal(t, time.UTC, cfg.Location())
}
