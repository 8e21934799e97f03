package board

import (
	"fmt"
	"slices"
)

// Tile is a square path tile. Connections is a perfect matching of the port
// indices 0..len-1 (see Rectangle.LocPorts for the index space):
// Connections[i] == j means a path joins port i to port j, and
// Connections[j] == i.
type Tile struct {
	Connections []int `json:"connections"`
}

// NewTile validates that conns is a fixed-point-free involution.
func NewTile(conns []int) (Tile, error) {
	if len(conns)%2 != 0 {
		return Tile{}, fmt.Errorf("tile needs an even number of ports, got %d", len(conns))
	}
	for i, j := range conns {
		if j < 0 || j >= len(conns) {
			return Tile{}, fmt.Errorf("connection %d out of range: %d", i, j)
		}
		if j == i {
			return Tile{}, fmt.Errorf("port %d connects to itself", i)
		}
		if conns[j] != i {
			return Tile{}, fmt.Errorf("ports %d and %d are not paired symmetrically", i, j)
		}
	}
	return Tile{Connections: slices.Clone(conns)}, nil
}

// NumPorts is the number of ports on the tile.
func (t Tile) NumPorts() int { return len(t.Connections) }

// Output is the port a path entering at in exits from.
func (t Tile) Output(in int) int { return t.Connections[in] }

// Rotate rotates the tile n times counterclockwise (negative n is clockwise).
func (t Tile) Rotate(n int) Tile {
	num := t.NumPorts()
	perEdge := num / 4 // square tiles
	off := mod(n*perEdge, num)
	conns := make([]int, num)
	for i := range conns {
		conns[i] = mod(t.Connections[mod(i-off, num)]+off, num)
	}
	return Tile{Connections: conns}
}

// Rotations lists the four rotations of the tile, starting with itself.
func (t Tile) Rotations() []Tile {
	out := make([]Tile, 4)
	for i := range out {
		out[i] = t.Rotate(i)
	}
	return out
}

// Canonical is the minimal rotation of the tile under Compare. Tiles with
// the same canonical form are the same physical tile.
func (t Tile) Canonical() Tile {
	best := t
	for _, r := range t.Rotations()[1:] {
		if Compare(r, best) < 0 {
			best = r
		}
	}
	return best
}

// Equal reports whether two tiles have identical connections, counting
// rotations as distinct.
func (t Tile) Equal(u Tile) bool { return slices.Equal(t.Connections, u.Connections) }

// Compare orders tiles lexicographically by connections.
func Compare(t, u Tile) int { return slices.Compare(t.Connections, u.Connections) }

// AllTilesWithRotations enumerates every perfect matching of 4*portsPerEdge
// ports, counting rotations as separate tiles.
func AllTilesWithRotations(portsPerEdge int) []Tile {
	num := 4 * portsPerEdge
	conns := make([]int, num)
	for i := range conns {
		conns[i] = -1
	}
	var tiles []Tile
	var pair func()
	pair = func() {
		a := -1
		for i, c := range conns {
			if c == -1 {
				a = i
				break
			}
		}
		if a == -1 {
			tiles = append(tiles, Tile{Connections: slices.Clone(conns)})
			return
		}
		for b := a + 1; b < num; b++ {
			if conns[b] != -1 {
				continue
			}
			conns[a], conns[b] = b, a
			pair()
			conns[a], conns[b] = -1, -1
		}
	}
	pair()
	return tiles
}

// AllTiles enumerates every distinct tile, counting rotations as the same
// tile. The result is sorted and forms the game's full draw pile.
func AllTiles(portsPerEdge int) []Tile {
	seen := make(map[string]Tile)
	for _, t := range AllTilesWithRotations(portsPerEdge) {
		c := t.Canonical()
		seen[tileKey(c)] = c
	}
	tiles := make([]Tile, 0, len(seen))
	for _, t := range seen {
		tiles = append(tiles, t)
	}
	slices.SortFunc(tiles, Compare)
	return tiles
}

func tileKey(t Tile) string {
	b := make([]byte, len(t.Connections))
	for i, c := range t.Connections {
		b[i] = byte(c)
	}
	return string(b)
}

// mod is the Euclidean remainder, nonnegative for positive m.
func mod(n, m int) int {
	return ((n % m) + m) % m
}
