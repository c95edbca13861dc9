package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "TN", cfg.State)
	assert.Equal(t, []string{"handyman"}, cfg.Services)
	assert.Equal(t, 180, cfg.Scrape.BudgetSecs)
	assert.Equal(t, 5, cfg.Scrape.DelaySecs)
	assert.True(t, cfg.Scrape.Headless)
	assert.Equal(t, "anon", cfg.Store.Role)
	assert.Equal(t, 500, cfg.Store.ChunkSize)
	assert.Equal(t, "handyman-tn.com", cfg.Dedup.PrivilegedDomain)
	assert.False(t, cfg.Promotion.Enabled)
	assert.Equal(t, "exports", cfg.Export.Dir)
	assert.Equal(t, "snapshots.db", cfg.Snapshot.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yml := `
state: KY
services: [handyman, "gutter cleaning"]
locations:
  - city: Louisville
    county: Jefferson
    secondary: [Shively]
promotion:
  enabled: true
  domain: handyman-tn.com
  eligible_scopes: ["Louisville/handyman"]
  fallback:
    name: Handyman TN
    website: https://handyman-tn.com
store:
  role: service
  chunk_size: 100
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "KY", cfg.State)
	assert.Equal(t, []string{"handyman", "gutter cleaning"}, cfg.Services)
	require.Len(t, cfg.Locations, 1)
	assert.Equal(t, "Louisville", cfg.Locations[0].City)
	assert.Equal(t, []string{"Shively"}, cfg.Locations[0].Secondary)
	assert.True(t, cfg.Promotion.Enabled)
	assert.Equal(t, []string{"Louisville/handyman"}, cfg.Promotion.EligibleScopes)
	assert.Equal(t, "Handyman TN", cfg.Promotion.Fallback.Name)
	assert.Equal(t, "service", cfg.Store.Role)
	assert.Equal(t, 100, cfg.Store.ChunkSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEADSYNC_STATE", "GA")
	t.Setenv("LEADSYNC_STORE_ROLE", "service")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "GA", cfg.State)
	assert.Equal(t, "service", cfg.Store.Role)
}

func TestLoadLocations_Inline(t *testing.T) {
	cfg := &Config{Locations: []LocationConfig{{City: "Nashville"}}}
	locs, err := cfg.LoadLocations()
	require.NoError(t, err)
	assert.Equal(t, cfg.Locations, locs)
}

func TestLoadLocations_TargetsFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	yml := `
locations:
  - city: Murfreesboro
    county: Rutherford
    secondary: [Smyrna, La Vergne]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg := &Config{
		TargetsFile: path,
		Locations:   []LocationConfig{{City: "Nashville"}},
	}
	locs, err := cfg.LoadLocations()
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Murfreesboro", locs[0].City)
	assert.Equal(t, []string{"Smyrna", "La Vergne"}, locs[0].Secondary)
}

func TestLoadLocations_MissingFile(t *testing.T) {
	cfg := &Config{TargetsFile: filepath.Join(t.TempDir(), "absent.yaml")}
	_, err := cfg.LoadLocations()
	assert.Error(t, err)
}

func TestLoadLocations_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locations: {not a list"), 0o644))

	cfg := &Config{TargetsFile: path}
	_, err := cfg.LoadLocations()
	assert.Error(t, err)
}

func TestValidateStore(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateStore())

	cfg.Store.DatabaseURL = "postgres://localhost/leads"
	assert.NoError(t, cfg.ValidateStore())
}

func TestValidateDestructive(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateDestructive())

	cfg.Store.DatabaseURL = "postgres://localhost/leads"
	cfg.Store.Role = "anon"
	err := cfg.ValidateDestructive()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.role=service")

	cfg.Store.Role = "service"
	assert.NoError(t, cfg.ValidateDestructive())
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
