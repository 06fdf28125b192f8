package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no kyotei.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "kyotei.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 90, cfg.Fetch.CacheTTLSecs)
	assert.Equal(t, 3, cfg.Fetch.RequestGapSecs)
	assert.Equal(t, "https://kyoteibiyori.com", cfg.Fetch.BiyoriBaseURL)
	assert.Equal(t, "https://www.boatrace.jp", cfg.Fetch.OfficialBaseURL)
	assert.Equal(t, 3, cfg.Ticket.PrimaryWindow)
	assert.Equal(t, 6, cfg.Ticket.PrimaryMax)
	assert.Equal(t, 2, cfg.Ticket.CoverWindow)
	assert.Equal(t, 4, cfg.Ticket.CoverMax)
	assert.Equal(t, 2, cfg.Ticket.LongshotWindow)
	assert.Equal(t, 2, cfg.Ticket.LongshotMax)
	assert.Equal(t, 2, cfg.Scan.Concurrency)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/kyotei
log:
  level: debug
server:
  port: 9090
ticket:
  primary_window: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kyotei.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/kyotei", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Ticket.PrimaryWindow)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 6, cfg.Ticket.PrimaryMax)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kyotei.yaml"), []byte(yaml), 0644))

	t.Setenv("KYOTEI_STORE_DRIVER", "postgres")
	t.Setenv("KYOTEI_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("KYOTEI_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestFetchConfigDurations(t *testing.T) {
	f := FetchConfig{TimeoutSecs: 10, CacheTTLSecs: 90, RequestGapSecs: 3}
	assert.Equal(t, "10s", f.Timeout().String())
	assert.Equal(t, "1m30s", f.CacheTTL().String())
	assert.Equal(t, "3s", f.RequestGap().String())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "kyotei.db"
	cfg.Fetch.TimeoutSecs = 10
	cfg.Scan.Concurrency = 2
	cfg.Server.Port = 8080
	return cfg
}

func TestValidatePredict_Defaults(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("predict"))
}

func TestValidatePredict_BadFetchTimeout(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.TimeoutSecs = 0

	err := cfg.Validate("predict")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.timeout_secs must be > 0")
}

func TestValidateScan_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Scan.Concurrency = 0
	err := cfg.Validate("scan")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scan.concurrency must be between 1 and 12")

	cfg.Scan.Concurrency = 13
	err = cfg.Validate("scan")
	assert.Error(t, err)

	cfg.Scan.Concurrency = 12
	assert.NoError(t, cfg.Validate("scan"))
}

func TestValidateStore_SQLiteNeedsPath(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Path = ""

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.path is required")
}

func TestValidateStore_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/kyotei"
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateStore_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
