package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetopt/budgetopt/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFrom_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFrom_OverridesTables(t *testing.T) {
	path := writeConfig(t, `
[general]
default_area = "Urban"
currency = "$"

[rules.urban]
housing = 0.30
transportation = 0.10
food = 0.20
utilities = 0.10
entertainment = 0.10
savings = 0.20
`)
	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, model.Urban, cfg.DefaultAreaType())
	assert.Equal(t, "$", cfg.General.Currency)

	tables := cfg.Rules.Tables()
	assert.Equal(t, 0.20, tables.Urban[model.Food])
	assert.Equal(t, model.DefaultRuralTable(), tables.Rural, "untouched table keeps defaults")
}

func TestValidate_RejectsBadTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.Rural.Savings = 0.5
	assert.ErrorIs(t, cfg.Validate(), model.ErrTableSum)
}

func TestValidate_Storage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = BackendS3
	assert.Error(t, cfg.Validate())

	cfg.Storage.S3.Bucket = "models"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Backend = "ftp"
	assert.Error(t, cfg.Validate())

	cfg.Storage.Backend = BackendFile
	cfg.Storage.ModelDir = "  "
	assert.ErrorContains(t, cfg.Validate(), "model_dir")
}

func TestLoadFrom_ParseError(t *testing.T) {
	_, err := LoadFrom(writeConfig(t, "[general\n"))
	assert.Error(t, err)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := DefaultConfig()
	cfg.Storage.ModelDir = "/srv/models"
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}

	require.NoError(t, SaveTo(path, cfg))
	assert.True(t, Exists(path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BUDGETOPT_MODEL_DIR", "/opt/models")
	t.Setenv("BUDGETOPT_S3_BUCKET", "budget-artifacts")
	t.Setenv("BUDGETOPT_CURRENCY", "€")

	cfg := ApplyEnv(DefaultConfig())
	assert.Equal(t, "/opt/models", cfg.Storage.ModelDir)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "budget-artifacts", cfg.Storage.S3.Bucket)
	assert.Equal(t, "€", cfg.General.Currency)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BUDGETOPT_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("BUDGETOPT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("BUDGETOPT_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("BUDGETOPT_TEST_DOTENV"))
}

func TestReloadInterval(t *testing.T) {
	d, err := ServerConfig{ReloadEvery: "30s"}.ReloadInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = ServerConfig{}.ReloadInterval()
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ServerConfig{ReloadEvery: "soon"}.ReloadInterval()
	assert.Error(t, err)
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "budgetopt", "config.toml"), ConfigPath())

	t.Setenv("XDG_CACHE_HOME", "/tmp/xdgcache")
	assert.Equal(t, filepath.Join("/tmp/xdgcache", "budgetopt", "artifacts.db"), CachePath())
}
