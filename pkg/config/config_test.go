package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"), dir)
	require.NoError(t, err)

	require.Equal(t, "localhost:8080", cfg.ListenAddr)
	require.Equal(t, StoreSqlite, cfg.Store)
	require.Equal(t, filepath.Join(dir, "cardroom.db"), cfg.DBPath)
	require.Equal(t, 6, cfg.MaxPlayers)
	require.Equal(t, 30*time.Second, cfg.TurnTimeout())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cardroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
max_players: 4
starting_chips: 500
turn_timeout_ms: 15000
debug_level: debug
`), 0600))

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, 4, cfg.MaxPlayers)
	require.Equal(t, int64(500), cfg.StartingChips)
	require.Equal(t, 15*time.Second, cfg.TurnTimeout())
	require.Equal(t, "debug", cfg.DebugLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cardroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9090\"\n"), 0600))

	t.Setenv("CARDROOM_LISTEN_ADDR", ":7070")
	t.Setenv("CARDROOM_MAX_PLAYERS", "3")

	cfg, err := Load(path, dir)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.ListenAddr)
	require.Equal(t, 3, cfg.MaxPlayers)
}

func TestValidation(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("CARDROOM_STORE", "redis")
	_, err := Load("", dir)
	require.Error(t, err, "redis store without a URL must fail")

	t.Setenv("CARDROOM_REDIS_URL", "redis://localhost:6379")
	_, err = Load("", dir)
	require.NoError(t, err)

	t.Setenv("CARDROOM_STORE", "cassandra")
	_, err = Load("", dir)
	require.Error(t, err)

	t.Setenv("CARDROOM_STORE", "sqlite")
	t.Setenv("CARDROOM_MAX_PLAYERS", "1")
	_, err = Load("", dir)
	require.Error(t, err)
}

func TestMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cardroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [oops\n"), 0600))

	_, err := Load(path, dir)
	require.Error(t, err)
}
