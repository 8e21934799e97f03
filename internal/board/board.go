// Package board holds the geometry of the path game: a rectangular grid of
// square tile locations, and the ports along tile edges that player tokens
// travel between.
package board

import "fmt"

// Loc is a tile location on the board.
type Loc struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Port is a token position: a grid point plus an offset along one edge.
// Exactly one of DX, DY is zero; the other is in 1..PortsPerEdge.
// DY == 0 means the port sits on a horizontal edge, DX == 0 on a vertical one.
type Port struct {
	X  int `json:"x"`
	Y  int `json:"y"`
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// Rectangle is a rectangular board of square tiles.
type Rectangle struct {
	Width        int `json:"width"`
	Height       int `json:"height"`
	PortsPerEdge int `json:"portsPerEdge"`
}

// NewRectangle validates the dimensions.
func NewRectangle(width, height, portsPerEdge int) (Rectangle, error) {
	if width < 1 || height < 1 {
		return Rectangle{}, fmt.Errorf("board must be at least 1x1, got %dx%d", width, height)
	}
	if portsPerEdge < 1 {
		return Rectangle{}, fmt.Errorf("ports per edge must be positive, got %d", portsPerEdge)
	}
	return Rectangle{Width: width, Height: height, PortsPerEdge: portsPerEdge}, nil
}

// Contains reports whether loc is a tile location on the board.
func (b Rectangle) Contains(loc Loc) bool {
	return loc.X >= 0 && loc.X < b.Width && loc.Y >= 0 && loc.Y < b.Height
}

// ValidPort reports whether p names a port that exists on the board.
func (b Rectangle) ValidPort(p Port) bool {
	switch {
	case p.DY == 0 && p.DX >= 1 && p.DX <= b.PortsPerEdge:
		return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y <= b.Height
	case p.DX == 0 && p.DY >= 1 && p.DY <= b.PortsPerEdge:
		return p.X >= 0 && p.X <= b.Width && p.Y >= 0 && p.Y < b.Height
	}
	return false
}

// IsBoundary reports whether p lies on the outer rim of the board.
func (b Rectangle) IsBoundary(p Port) bool {
	if !b.ValidPort(p) {
		return false
	}
	if p.DY == 0 {
		return p.Y == 0 || p.Y == b.Height
	}
	return p.X == 0 || p.X == b.Width
}

// AllPorts enumerates every port on the board, in no particular order.
func (b Rectangle) AllPorts() []Port {
	var ports []Port
	for y := 0; y <= b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			for i := 1; i <= b.PortsPerEdge; i++ {
				ports = append(ports, Port{X: x, Y: y, DX: i})
			}
		}
	}
	for x := 0; x <= b.Width; x++ {
		for y := 0; y < b.Height; y++ {
			for i := 1; i <= b.PortsPerEdge; i++ {
				ports = append(ports, Port{X: x, Y: y, DY: i})
			}
		}
	}
	return ports
}

// BoundaryPorts enumerates the ports on the rim of the board, the legal
// starting positions for player tokens.
func (b Rectangle) BoundaryPorts() []Port {
	var ports []Port
	for _, y := range []int{0, b.Height} {
		for x := 0; x < b.Width; x++ {
			for i := 1; i <= b.PortsPerEdge; i++ {
				ports = append(ports, Port{X: x, Y: y, DX: i})
			}
		}
	}
	for _, x := range []int{0, b.Width} {
		for y := 0; y < b.Height; y++ {
			for i := 1; i <= b.PortsPerEdge; i++ {
				ports = append(ports, Port{X: x, Y: y, DY: i})
			}
		}
	}
	return ports
}

// LocPorts lists the 4*PortsPerEdge ports around a tile location, clockwise
// starting from the top edge. The index of a port in this slice is the port
// index used by tile connections.
func (b Rectangle) LocPorts(loc Loc) []Port {
	p := b.PortsPerEdge
	ports := make([]Port, 0, 4*p)
	for i := 1; i <= p; i++ {
		ports = append(ports, Port{X: loc.X, Y: loc.Y, DX: i})
	}
	for i := 1; i <= p; i++ {
		ports = append(ports, Port{X: loc.X + 1, Y: loc.Y, DY: i})
	}
	for i := p; i >= 1; i-- {
		ports = append(ports, Port{X: loc.X, Y: loc.Y + 1, DX: i})
	}
	for i := p; i >= 1; i-- {
		ports = append(ports, Port{X: loc.X, Y: loc.Y, DY: i})
	}
	return ports
}

// PortLocs lists the tile locations adjacent to a port: two for an interior
// port, one for a rim port.
func (b Rectangle) PortLocs(p Port) []Loc {
	first := Loc{X: p.X, Y: p.Y}
	second := first
	if p.DY == 0 {
		second.Y--
	} else {
		second.X--
	}
	var locs []Loc
	for _, loc := range []Loc{first, second} {
		if b.Contains(loc) {
			locs = append(locs, loc)
		}
	}
	return locs
}

// PortIndex finds p among the ports around loc, or -1.
func (b Rectangle) PortIndex(loc Loc, p Port) int {
	for i, q := range b.LocPorts(loc) {
		if q == p {
			return i
		}
	}
	return -1
}
