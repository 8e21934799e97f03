package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, ":7878", cfg.Addr)
	assert.Empty(t, cfg.OriginAllowlist)
	assert.Equal(t, 6, cfg.BoardWidth)
	assert.Equal(t, 6, cfg.BoardHeight)
	assert.Equal(t, 2, cfg.PortsPerEdge)
	assert.Equal(t, 3, cfg.TilesPerPlayer)
	assert.Empty(t, cfg.HistoryPath)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, 6, rules.Board.Width)
	assert.Equal(t, 3, rules.TilesPerPlayer)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("ADDR", "127.0.0.1:9000")
	t.Setenv("ORIGIN_ALLOWLIST", "https://a.example,https://b.example")
	t.Setenv("BOARD_WIDTH", "4")
	t.Setenv("BOARD_HEIGHT", "5")
	t.Setenv("PORTS_PER_EDGE", "1")
	t.Setenv("TILES_PER_PLAYER", "1")
	t.Setenv("HISTORY_PATH", "games.db")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.OriginAllowlist)
	assert.Equal(t, 4, cfg.BoardWidth)
	assert.Equal(t, 5, cfg.BoardHeight)
	assert.Equal(t, 1, cfg.PortsPerEdge)
	assert.Equal(t, "games.db", cfg.HistoryPath)
}

func TestParseRejectsBadBoard(t *testing.T) {
	t.Setenv("BOARD_WIDTH", "0")
	_, err := Parse()
	assert.Error(t, err)
}

func TestParseRejectsBadTilesPerPlayer(t *testing.T) {
	t.Setenv("TILES_PER_PLAYER", "-1")
	_, err := Parse()
	assert.Error(t, err)
}
