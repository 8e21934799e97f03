// Package config loads server configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"pathtiles/internal/board"
	"pathtiles/internal/game"
)

// Config is the server configuration. The defaults host the classic game:
// a 6x6 board, two ports per edge, three tiles per hand.
type Config struct {
	Addr            string   `env:"ADDR" envDefault:":7878"`
	OriginAllowlist []string `env:"ORIGIN_ALLOWLIST" envSeparator:","`
	BoardWidth      int      `env:"BOARD_WIDTH" envDefault:"6"`
	BoardHeight     int      `env:"BOARD_HEIGHT" envDefault:"6"`
	PortsPerEdge    int      `env:"PORTS_PER_EDGE" envDefault:"2"`
	TilesPerPlayer  int      `env:"TILES_PER_PLAYER" envDefault:"3"`
	HistoryPath     string   `env:"HISTORY_PATH"`
}

// Parse loads and validates the configuration.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Rules(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Rules builds the game rules the server will host.
func (c Config) Rules() (game.Rules, error) {
	b, err := board.NewRectangle(c.BoardWidth, c.BoardHeight, c.PortsPerEdge)
	if err != nil {
		return game.Rules{}, fmt.Errorf("board config: %w", err)
	}
	if c.TilesPerPlayer < 1 {
		return game.Rules{}, fmt.Errorf("tiles per player must be positive, got %d", c.TilesPerPlayer)
	}
	return game.Rules{Board: b, TilesPerPlayer: c.TilesPerPlayer}, nil
}
