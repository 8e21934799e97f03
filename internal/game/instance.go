package game

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStarted means players can no longer join; late joiners spectate.
	ErrStarted = errors.New("game already started")
	// ErrNotStarted guards moves against games still gathering players.
	ErrNotStarted = errors.New("game not started")
)

// Member is a named peer attached to a game instance. Key identifies the
// connection, Name the person; reconnecting with the same name rebinds the
// key to the existing seat.
type Member struct {
	Key  string
	Name string
}

// Instance is one hosted game: its rules, members, and, once started, the
// live state.
type Instance struct {
	id         string
	rules      Rules
	createdAt  time.Time
	startedAt  time.Time
	state      *State
	players    []Member
	spectators []Member
}

// NewInstance creates an empty instance for the given rules.
func NewInstance(rules Rules) *Instance {
	return &Instance{
		id:        uuid.NewString(),
		rules:     rules,
		createdAt: time.Now(),
	}
}

func (g *Instance) ID() string           { return g.id }
func (g *Instance) Rules() Rules         { return g.rules }
func (g *Instance) CreatedAt() time.Time { return g.createdAt }
func (g *Instance) StartedAt() time.Time { return g.startedAt }

// State is the live game state, nil until started.
func (g *Instance) State() *State { return g.state }

// Started reports whether the game is underway.
func (g *Instance) Started() bool { return g.state != nil }

// PlayerNames lists player names in seat order.
func (g *Instance) PlayerNames() []string {
	names := make([]string, len(g.players))
	for i, p := range g.players {
		names[i] = p.Name
	}
	return names
}

// NumPlayers is the number of seated players.
func (g *Instance) NumPlayers() int { return len(g.players) }

// AddPlayer seats a member. A member with the same name already in the game
// gets their key rebound (reconnect) whether or not the game started; new
// names are rejected with ErrStarted once underway. Returns the seat index.
func (g *Instance) AddPlayer(key, name string) (int, error) {
	for i := range g.players {
		if g.players[i].Name == name {
			g.players[i].Key = key
			return i, nil
		}
	}
	if g.Started() {
		return -1, fmt.Errorf("add player %q: %w", name, ErrStarted)
	}
	g.players = append(g.players, Member{Key: key, Name: name})
	return len(g.players) - 1, nil
}

// AddSpectator attaches a watching member, rebinding by name like AddPlayer.
func (g *Instance) AddSpectator(key, name string) {
	for i := range g.spectators {
		if g.spectators[i].Name == name {
			g.spectators[i].Key = key
			return
		}
	}
	g.spectators = append(g.spectators, Member{Key: key, Name: name})
}

// RemovePeer detaches a connection. Before the start a seated player is
// removed outright; after the start the seat survives so the player can
// reconnect. Spectators are always removed. Reports whether membership
// changed.
func (g *Instance) RemovePeer(key string) bool {
	changed := false
	if !g.Started() {
		for i := 0; i < len(g.players); i++ {
			if g.players[i].Key == key {
				g.players = slices.Delete(g.players, i, i+1)
				changed = true
				i--
			}
		}
	}
	for i := 0; i < len(g.spectators); i++ {
		if g.spectators[i].Key == key {
			g.spectators = slices.Delete(g.spectators, i, i+1)
			changed = true
			i--
		}
	}
	return changed
}

// PlayerIndex is the seat bound to a connection key, or -1.
func (g *Instance) PlayerIndex(key string) int {
	for i, p := range g.players {
		if p.Key == key {
			return i
		}
	}
	return -1
}

// HasPeer reports whether the key is attached as a player or spectator.
func (g *Instance) HasPeer(key string) bool {
	if g.PlayerIndex(key) >= 0 {
		return true
	}
	for _, s := range g.spectators {
		if s.Key == key {
			return true
		}
	}
	return false
}

// Members lists all attached members, players first.
func (g *Instance) Members() []Member {
	out := make([]Member, 0, len(g.players)+len(g.spectators))
	out = append(out, g.players...)
	out = append(out, g.spectators...)
	return out
}

// Start deals the game. No new players may join afterward.
func (g *Instance) Start(rng *rand.Rand) error {
	if g.Started() {
		return fmt.Errorf("start: %w", ErrStarted)
	}
	state, err := NewState(g.rules, len(g.players), rng)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	g.state = state
	g.startedAt = time.Now()
	return nil
}

// Status is the lobby-facing lifecycle label.
func (g *Instance) Status() string {
	switch {
	case !g.Started():
		return "open"
	case g.state.Phase() == PhaseDone:
		return "finished"
	default:
		return "playing"
	}
}
