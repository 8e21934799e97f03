// Package game implements the path game itself: token placement, tile
// placement, token movement along tile paths, deaths and the win condition,
// plus the lobby of game instances the server hosts.
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"pathtiles/internal/board"
)

// Phase of a running game.
type Phase int

const (
	// PhasePlaceTokens: players are picking starting ports on the rim.
	PhasePlaceTokens Phase = iota
	// PhasePlay: players take turns placing tiles.
	PhasePlay
	// PhaseDone: the game is over and winners are known.
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhasePlaceTokens: "place_tokens",
	PhasePlay:        "play",
	PhaseDone:        "done",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for phase, name := range phaseNames {
		if name == s {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", s)
}

// Rules is the immutable definition of a game.
type Rules struct {
	Board          board.Rectangle `json:"board"`
	TilesPerPlayer int             `json:"tilesPerPlayer"`
}

// Move rejection causes, wrapped by the State methods.
var (
	ErrWrongPhase   = errors.New("not allowed in this phase")
	ErrNoSuchPlayer = errors.New("no such player")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrBadPort      = errors.New("not a free boundary port")
	ErrBadLoc       = errors.New("not a free location next to your token")
	ErrBadTile      = errors.New("no such tile in hand")
	ErrDead         = errors.New("player is dead")
)

// State is the live state of one game. It is not safe for concurrent use;
// the hub serializes access.
type State struct {
	rules   Rules
	phase   Phase
	tiles   map[board.Loc]board.Tile
	ports   []*board.Port // per player, nil until the token is placed
	alive   []bool
	hands   [][]board.Tile
	draw    []board.Tile
	current int
	winners []int
}

// NewState creates a game for numPlayers players. The draw pile holds every
// distinct tile for the board's port count, shuffled with rng (or the global
// source when rng is nil).
func NewState(rules Rules, numPlayers int, rng *rand.Rand) (*State, error) {
	if numPlayers < 2 {
		return nil, fmt.Errorf("need at least 2 players, got %d", numPlayers)
	}
	if rules.TilesPerPlayer < 1 {
		return nil, fmt.Errorf("tiles per player must be positive, got %d", rules.TilesPerPlayer)
	}
	if numPlayers > len(rules.Board.BoundaryPorts()) {
		return nil, fmt.Errorf("board has too few starting ports for %d players", numPlayers)
	}
	draw := board.AllTiles(rules.Board.PortsPerEdge)
	if numPlayers*rules.TilesPerPlayer > len(draw) {
		return nil, fmt.Errorf("not enough tiles to deal %d each to %d players", rules.TilesPerPlayer, numPlayers)
	}
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(draw), func(i, j int) { draw[i], draw[j] = draw[j], draw[i] })

	s := &State{
		rules: rules,
		phase: PhasePlaceTokens,
		tiles: make(map[board.Loc]board.Tile),
		ports: make([]*board.Port, numPlayers),
		alive: make([]bool, numPlayers),
		hands: make([][]board.Tile, numPlayers),
		draw:  draw,
	}
	for i := range s.alive {
		s.alive[i] = true
	}
	return s, nil
}

func (s *State) Rules() Rules    { return s.rules }
func (s *State) Phase() Phase    { return s.phase }
func (s *State) NumPlayers() int { return len(s.ports) }
func (s *State) Current() int    { return s.current }
func (s *State) DrawCount() int  { return len(s.draw) }

// Winners is the set of winning players, only non-empty once the game is done.
func (s *State) Winners() []int { return slices.Clone(s.winners) }

// Alive reports whether the player's token is still on the board.
func (s *State) Alive(player int) bool {
	return player >= 0 && player < len(s.alive) && s.alive[player]
}

// PlayerPort is the player's token position, nil before placement.
func (s *State) PlayerPort(player int) *board.Port {
	if player < 0 || player >= len(s.ports) || s.ports[player] == nil {
		return nil
	}
	p := *s.ports[player]
	return &p
}

// TileAt is the tile on a location, if any.
func (s *State) TileAt(loc board.Loc) (board.Tile, bool) {
	t, ok := s.tiles[loc]
	return t, ok
}

// AllTokensPlaced reports whether every player has put down a starting token.
func (s *State) AllTokensPlaced() bool {
	for _, p := range s.ports {
		if p == nil {
			return false
		}
	}
	return true
}

// PlaceToken puts a player's starting token on a free boundary port. When the
// last token lands, hands are dealt and the play phase begins with player 0.
func (s *State) PlaceToken(player int, port board.Port) error {
	if s.phase != PhasePlaceTokens {
		return fmt.Errorf("place token: %w", ErrWrongPhase)
	}
	if player < 0 || player >= len(s.ports) {
		return fmt.Errorf("place token: %w", ErrNoSuchPlayer)
	}
	if s.ports[player] != nil {
		return fmt.Errorf("place token: token already placed: %w", ErrBadPort)
	}
	if !s.rules.Board.IsBoundary(port) {
		return fmt.Errorf("place token: %w", ErrBadPort)
	}
	for _, q := range s.ports {
		if q != nil && *q == port {
			return fmt.Errorf("place token: port taken: %w", ErrBadPort)
		}
	}
	s.ports[player] = &port

	if s.AllTokensPlaced() {
		for i := range s.hands {
			s.hands[i] = s.drawTiles(s.rules.TilesPerPlayer)
		}
		s.phase = PhasePlay
		s.current = 0
	}
	return nil
}

// PlaceTile plays the index-th tile of the mover's hand, rotated rotation
// times counterclockwise, onto loc. Every token around loc then rides the
// paths; tokens that leave the board die. Returns the newly dead players.
func (s *State) PlaceTile(player, index, rotation int, loc board.Loc) ([]int, error) {
	if s.phase != PhasePlay {
		return nil, fmt.Errorf("place tile: %w", ErrWrongPhase)
	}
	if player < 0 || player >= len(s.ports) {
		return nil, fmt.Errorf("place tile: %w", ErrNoSuchPlayer)
	}
	if !s.alive[player] {
		return nil, fmt.Errorf("place tile: %w", ErrDead)
	}
	if player != s.current {
		return nil, fmt.Errorf("place tile: %w", ErrNotYourTurn)
	}
	if index < 0 || index >= len(s.hands[player]) {
		return nil, fmt.Errorf("place tile: %w", ErrBadTile)
	}
	if _, occupied := s.tiles[loc]; occupied || !s.rules.Board.Contains(loc) {
		return nil, fmt.Errorf("place tile: %w", ErrBadLoc)
	}
	if !slices.Contains(s.rules.Board.PortLocs(*s.ports[player]), loc) {
		return nil, fmt.Errorf("place tile: %w", ErrBadLoc)
	}

	tile := s.hands[player][index].Rotate(rotation)
	s.hands[player] = slices.Delete(s.hands[player], index, index+1)
	s.tiles[loc] = tile

	dead := s.advance(loc)

	// Dead hands go under the draw pile; the mover draws a replacement.
	for _, d := range dead {
		s.draw = append(s.draw, s.hands[d]...)
		s.hands[d] = nil
	}
	if s.alive[player] {
		s.hands[player] = append(s.hands[player], s.drawTiles(1)...)
	}

	s.settle(dead)
	return dead, nil
}

// advance moves every token adjacent to loc along the paths until it faces
// an empty location or leaves the board. Newly dead players are returned and
// marked not alive.
func (s *State) advance(loc board.Loc) []int {
	var dead []int
	around := s.rules.Board.LocPorts(loc)
	for player := range s.ports {
		if !s.alive[player] || s.ports[player] == nil {
			continue
		}
		if !slices.Contains(around, *s.ports[player]) {
			continue
		}
		cur := loc
		for {
			ports := s.rules.Board.LocPorts(cur)
			in := s.rules.Board.PortIndex(cur, *s.ports[player])
			out := s.tiles[cur].Output(in)
			portOut := ports[out]
			s.ports[player] = &portOut

			next, onBoard := otherLoc(s.rules.Board.PortLocs(portOut), cur)
			if !onBoard {
				s.alive[player] = false
				dead = append(dead, player)
				break
			}
			if _, placed := s.tiles[next]; !placed {
				break
			}
			cur = next
		}
	}
	return dead
}

// settle ends the game or passes the turn after a placement. dead is the set
// of players killed by the placement.
func (s *State) settle(dead []int) {
	var alive []int
	for i, a := range s.alive {
		if a {
			alive = append(alive, i)
		}
	}
	switch {
	case len(alive) == 1:
		s.finish(alive)
	case len(alive) == 0:
		// Everyone left died on the same tile; they tie.
		s.finish(dead)
	case s.tilesExhausted():
		s.finish(alive)
	default:
		s.current = s.nextAlive(s.current)
	}
}

func (s *State) finish(winners []int) {
	s.phase = PhaseDone
	s.winners = slices.Clone(winners)
	slices.Sort(s.winners)
}

func (s *State) tilesExhausted() bool {
	if len(s.draw) > 0 {
		return false
	}
	for _, h := range s.hands {
		if len(h) > 0 {
			return false
		}
	}
	return true
}

func (s *State) nextAlive(from int) int {
	n := len(s.ports)
	for i := 1; i <= n; i++ {
		p := (from + i) % n
		if s.alive[p] {
			return p
		}
	}
	return from
}

func (s *State) drawTiles(n int) []board.Tile {
	if n > len(s.draw) {
		n = len(s.draw)
	}
	dealt := slices.Clone(s.draw[:n])
	s.draw = s.draw[n:]
	return dealt
}

// otherLoc picks the element of locs that is not cur. False when there is
// none, i.e. the port is on the rim.
func otherLoc(locs []board.Loc, cur board.Loc) (board.Loc, bool) {
	for _, l := range locs {
		if l != cur {
			return l, true
		}
	}
	return board.Loc{}, false
}

// Placement is one legal tile play.
type Placement struct {
	Index    int       `json:"index"`
	Rotation int       `json:"rotation"`
	Loc      board.Loc `json:"loc"`
}

// LegalTilePlacements lists every placement open to the player on their turn.
// Empty unless the game is in the play phase and it is the player's turn.
func (s *State) LegalTilePlacements(player int) []Placement {
	if s.phase != PhasePlay || player != s.current || !s.Alive(player) {
		return nil
	}
	var moves []Placement
	for _, loc := range s.rules.Board.PortLocs(*s.ports[player]) {
		if _, occupied := s.tiles[loc]; occupied {
			continue
		}
		for index := range s.hands[player] {
			for rotation := 0; rotation < 4; rotation++ {
				moves = append(moves, Placement{Index: index, Rotation: rotation, Loc: loc})
			}
		}
	}
	return moves
}
