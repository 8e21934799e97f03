package game

import "slices"

// Lobby is the registry of hosted games. Like State it relies on the hub for
// serialization.
type Lobby struct {
	games map[string]*Instance
	order []string // creation order, for stable listings
}

// NewLobby creates an empty lobby.
func NewLobby() *Lobby {
	return &Lobby{games: make(map[string]*Instance)}
}

// Create registers a new instance with the given rules.
func (l *Lobby) Create(rules Rules) *Instance {
	g := NewInstance(rules)
	l.games[g.ID()] = g
	l.order = append(l.order, g.ID())
	return g
}

// Get looks a game up by id, nil if absent.
func (l *Lobby) Get(id string) *Instance {
	return l.games[id]
}

// Games lists all games in creation order.
func (l *Lobby) Games() []*Instance {
	out := make([]*Instance, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.games[id])
	}
	return out
}

// Remove drops a game from the registry.
func (l *Lobby) Remove(id string) {
	if _, ok := l.games[id]; !ok {
		return
	}
	delete(l.games, id)
	if i := slices.Index(l.order, id); i >= 0 {
		l.order = slices.Delete(l.order, i, i+1)
	}
}

// RemovePeer detaches a connection from every game. Returns the games whose
// membership changed.
func (l *Lobby) RemovePeer(key string) []*Instance {
	var changed []*Instance
	for _, g := range l.Games() {
		if g.RemovePeer(key) {
			changed = append(changed, g)
		}
	}
	return changed
}
