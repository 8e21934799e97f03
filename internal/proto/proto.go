// Package proto defines the websocket wire protocol: a small JSON envelope
// carrying a message type tag and one typed payload per message.
package proto

import (
	"encoding/json"
	"fmt"

	"pathtiles/internal/board"
	"pathtiles/internal/game"
)

// Msg is the envelope every frame uses.
type Msg struct {
	T string          `json:"t"`
	M json.RawMessage `json:"m,omitempty"`
}

// Client -> server message types.
const (
	TSetUsername = "set_username"
	TJoinLobby   = "join_lobby"
	TCreateGame  = "create_game"
	TJoinGame    = "join_game"
	TStartGame   = "start_game"
	TPlaceToken  = "place_token"
	TPlaceTile   = "place_tile"
)

// Server -> client message types.
const (
	TWelcome          = "welcome"
	TUsernameRejected = "username_rejected"
	TLobby            = "lobby"
	TGameChanged      = "game_changed"
	TGameJoined       = "game_joined"
	TPlayersChanged   = "players_changed"
	TGameStarted      = "game_started"
	TTokenPlaced      = "token_placed"
	TAllTokensPlaced  = "all_tokens_placed"
	TTilePlaced       = "tile_placed"
	TYourTurn         = "your_turn"
	TState            = "state"
	TGameOver         = "game_over"
	TRejected         = "rejected"
)

// Encode wraps a payload in an envelope and marshals the whole frame.
func Encode(t string, payload any) ([]byte, error) {
	m := Msg{T: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		m.M = raw
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return b, nil
}

// Decode parses an envelope.
func Decode(data []byte) (Msg, error) {
	var m Msg
	if err := json.Unmarshal(data, &m); err != nil {
		return Msg{}, fmt.Errorf("decode envelope: %w", err)
	}
	return m, nil
}

// Payload parses the envelope body into a typed payload.
func (m Msg) Payload(v any) error {
	if len(m.M) == 0 {
		return fmt.Errorf("message %q has no payload", m.T)
	}
	if err := json.Unmarshal(m.M, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.T, err)
	}
	return nil
}

// ---- requests ----

type SetUsername struct {
	Name string `json:"name"`
}

type JoinGame struct {
	ID string `json:"id"`
}

type StartGame struct {
	ID string `json:"id"`
}

type PlaceToken struct {
	ID   string     `json:"id"`
	Port board.Port `json:"port"`
}

type PlaceTile struct {
	ID       string    `json:"id"`
	Index    int       `json:"index"`
	Rotation int       `json:"rotation"`
	Loc      board.Loc `json:"loc"`
}

// ---- responses ----

// GameSummary is the lobby listing entry for one game.
type GameSummary struct {
	ID      string     `json:"id"`
	Status  string     `json:"status"`
	Players []string   `json:"players"`
	Rules   game.Rules `json:"rules"`
}

// Summarize builds the listing entry for an instance.
func Summarize(g *game.Instance) GameSummary {
	return GameSummary{
		ID:      g.ID(),
		Status:  g.Status(),
		Players: g.PlayerNames(),
		Rules:   g.Rules(),
	}
}

type Welcome struct {
	Name string `json:"name"`
}

type Lobby struct {
	Games []GameSummary `json:"games"`
}

type GameChanged struct {
	Game GameSummary `json:"game"`
}

type GameJoined struct {
	Game      GameSummary `json:"game"`
	Index     int         `json:"index"`
	Spectator bool        `json:"spectator"`
}

type PlayersChanged struct {
	ID    string   `json:"id"`
	Names []string `json:"names"`
}

type GameStarted struct {
	ID    string    `json:"id"`
	State game.View `json:"state"`
}

type TokenPlaced struct {
	ID     string     `json:"id"`
	Player int        `json:"player"`
	Port   board.Port `json:"port"`
}

type AllTokensPlaced struct {
	ID string `json:"id"`
}

type TilePlaced struct {
	ID       string    `json:"id"`
	Player   int       `json:"player"`
	Index    int       `json:"index"`
	Rotation int       `json:"rotation"`
	Loc      board.Loc `json:"loc"`
}

type YourTurn struct {
	ID string `json:"id"`
}

type State struct {
	ID    string    `json:"id"`
	State game.View `json:"state"`
}

type GameOver struct {
	ID      string   `json:"id"`
	Winners []string `json:"winners"`
}

type Rejected struct {
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}
