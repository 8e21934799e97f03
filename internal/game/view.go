package game

import (
	"slices"

	"pathtiles/internal/board"
)

// PlacedTile is a tile sitting on the board.
type PlacedTile struct {
	Loc  board.Loc  `json:"loc"`
	Tile board.Tile `json:"tile"`
}

// View is what one player (or spectator) is allowed to see of a game: the
// public board, tokens and counts, plus only the viewer's own hand.
type View struct {
	Phase     Phase         `json:"phase"`
	Rules     Rules         `json:"rules"`
	Tiles     []PlacedTile  `json:"tiles"`
	Ports     []*board.Port `json:"ports"`
	Alive     []bool        `json:"alive"`
	HandSizes []int         `json:"handSizes"`
	Hand      []board.Tile  `json:"hand,omitempty"`
	DrawCount int           `json:"drawCount"`
	Current   int           `json:"current"`
	Winners   []int         `json:"winners,omitempty"`
}

// VisibleState builds the redacted view for a player index. Pass a negative
// index for a spectator view with no hand.
func (s *State) VisibleState(viewer int) View {
	tiles := make([]PlacedTile, 0, len(s.tiles))
	for loc, tile := range s.tiles {
		tiles = append(tiles, PlacedTile{Loc: loc, Tile: tile})
	}
	slices.SortFunc(tiles, func(a, b PlacedTile) int {
		if a.Loc.Y != b.Loc.Y {
			return a.Loc.Y - b.Loc.Y
		}
		return a.Loc.X - b.Loc.X
	})

	ports := make([]*board.Port, len(s.ports))
	for i, p := range s.ports {
		if p != nil {
			q := *p
			ports[i] = &q
		}
	}

	sizes := make([]int, len(s.hands))
	for i, h := range s.hands {
		sizes[i] = len(h)
	}

	v := View{
		Phase:     s.phase,
		Rules:     s.rules,
		Tiles:     tiles,
		Ports:     ports,
		Alive:     slices.Clone(s.alive),
		HandSizes: sizes,
		DrawCount: len(s.draw),
		Current:   s.current,
		Winners:   slices.Clone(s.winners),
	}
	if viewer >= 0 && viewer < len(s.hands) {
		v.Hand = slices.Clone(s.hands[viewer])
	}
	return v
}

// LegalTilePlacements recomputes a mover's options from a view, for clients
// that only hold the redacted state.
func (v View) LegalTilePlacements(player int) []Placement {
	if v.Phase != PhasePlay || player != v.Current || player < 0 || player >= len(v.Ports) {
		return nil
	}
	if !v.Alive[player] || v.Ports[player] == nil {
		return nil
	}
	occupied := make(map[board.Loc]bool, len(v.Tiles))
	for _, t := range v.Tiles {
		occupied[t.Loc] = true
	}
	var moves []Placement
	for _, loc := range v.Rules.Board.PortLocs(*v.Ports[player]) {
		if occupied[loc] {
			continue
		}
		for index := range v.Hand {
			for rotation := 0; rotation < 4; rotation++ {
				moves = append(moves, Placement{Index: index, Rotation: rotation, Loc: loc})
			}
		}
	}
	return moves
}

// FreeBoundaryPorts lists the rim ports no token occupies, the candidates
// for a starting token.
func (v View) FreeBoundaryPorts() []board.Port {
	taken := make(map[board.Port]bool)
	for _, p := range v.Ports {
		if p != nil {
			taken[*p] = true
		}
	}
	var free []board.Port
	for _, p := range v.Rules.Board.BoundaryPorts() {
		if !taken[p] {
			free = append(free, p)
		}
	}
	return free
}
