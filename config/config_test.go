package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "America/Mexico_City", cfg.Facility.Timezone)
	assert.Len(t, cfg.Facility.Courts, 5)
	require.NoError(t, cfg.Validate())

	fee, err := cfg.RefereeFee()
	require.NoError(t, err)
	assert.Equal(t, "240", fee.String())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/club.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestLoadOverridesDefaults(t *testing.T) {
	// GIVEN a config file that changes the port and fee
	dir := t.TempDir()
	path := filepath.Join(dir, "club.toml")
	raw := `
[server]
host = "127.0.0.1"
port = 9090

[facility]
timezone = "UTC"
referee_fee = "500.00"

[[auth.users]]
username = "maria"
password = "secret"
role = "staff"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	// WHEN loading
	cfg, err := Load(path)
	require.NoError(t, err)

	// THEN overridden values apply, untouched defaults survive
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, "UTC", cfg.Facility.Timezone)

	fee, err := cfg.RefereeFee()
	require.NoError(t, err)
	assert.Equal(t, "500", fee.String())

	assert.Equal(t, "./data/club.db", cfg.Database.Path)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Facility.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Facility.RefereeFee = "not-a-number"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Auth.Users = []UserConfig{{Username: "x", Role: "superadmin"}}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Server.Port = -1
	assert.Error(t, cfg.Validate())
}
