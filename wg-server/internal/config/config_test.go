package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wg-lifecycle/wg-server/internal/auth"
)

func TestLoadFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interface: wg1
reconcile:
  interval: 10s
  workers: 4
api:
  listen: 127.0.0.1:8080
  token_secret: 0123456789abcdef
`), 0o600))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "wg1", cfg.Interface)
	assert.Equal(t, DefaultStateDir, cfg.StateDir)
	assert.Equal(t, 10*time.Second, cfg.Reconcile.Interval)
	assert.Equal(t, 130*time.Second, cfg.Reconcile.HandshakeThreshold)
	assert.Equal(t, 4, cfg.Reconcile.Workers)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, Default().Interface, cfg.Interface)

	_, err = Load(path, true)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WG_LIFECYCLE_INTERFACE", "wg7")
	t.Setenv("WG_LIFECYCLE_INTERVAL", "1m")
	t.Setenv("WG_LIFECYCLE_WORKERS", "2")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, "wg7", cfg.Interface)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)
	assert.Equal(t, 2, cfg.Reconcile.Workers)
}

func TestLoadEnvBadDuration(t *testing.T) {
	t.Setenv("WG_LIFECYCLE_PEER_TIMEOUT", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WG_LIFECYCLE_PEER_TIMEOUT")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Interface = ""
	cfg.Reconcile.Workers = 0
	cfg.API.Listen = "8080"
	cfg.Log.Level = "chatty"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interface is required")
	assert.Contains(t, err.Error(), "reconcile.workers must be at least 1")
	assert.Contains(t, err.Error(), "api.listen must be host:port")
	assert.Contains(t, err.Error(), "api.token_secret")
	assert.Contains(t, err.Error(), "log.level")
}

func TestValidateAdminLogin(t *testing.T) {
	cfg := Default()
	cfg.API.AdminPasswordHash = "not-bcrypt"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.admin_user is required")
	assert.Contains(t, err.Error(), "api.admin_password_hash must be a bcrypt hash")

	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	cfg.API.AdminUser = "admin"
	cfg.API.AdminPasswordHash = hash
	assert.NoError(t, cfg.Validate())
}
