// pkg/tiles/types.go - Tile address types
package tiles

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom an address may use
const MaxZoom = 22

// Address identifies a single tile in the slippy-map pyramid
type Address struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// NewAddress creates a new tile address
func NewAddress(z, x, y int) Address {
	return Address{Z: z, X: x, Y: y}
}

// FromTile converts a maptile.Tile to an Address
func FromTile(t maptile.Tile) Address {
	return Address{Z: int(t.Z), X: int(t.X), Y: int(t.Y)}
}

// String returns the address in z/x/y form
func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Z, a.X, a.Y)
}

// Tile returns the maptile.Tile for this address
func (a Address) Tile() maptile.Tile {
	return maptile.New(uint32(a.X), uint32(a.Y), maptile.Zoom(a.Z))
}

// Bound returns the WGS84 bound covered by the tile
func (a Address) Bound() orb.Bound {
	return a.Tile().Bound()
}

// Center returns the WGS84 center of the tile
func (a Address) Center() orb.Point {
	return a.Tile().Center()
}

// Validate ensures the address lies inside the pyramid
func (a Address) Validate() error {
	if a.Z < 0 || a.Z > MaxZoom {
		return fmt.Errorf("invalid zoom level %d: must be between 0 and %d", a.Z, MaxZoom)
	}

	maxTile := 1 << uint(a.Z)
	if a.X < 0 || a.X >= maxTile {
		return fmt.Errorf("invalid x coordinate %d for zoom %d: must be between 0 and %d", a.X, a.Z, maxTile-1)
	}

	if a.Y < 0 || a.Y >= maxTile {
		return fmt.Errorf("invalid y coordinate %d for zoom %d: must be between 0 and %d", a.Y, a.Z, maxTile-1)
	}

	return nil
}

// Range is an inclusive rectangle of tiles at one zoom
type Range struct {
	Z    int `json:"z"`
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Count returns the number of tiles in the range
func (r Range) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Addresses enumerates the range x-major, then y ascending
func (r Range) Addresses() []Address {
	out := make([]Address, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			out = append(out, NewAddress(r.Z, x, y))
		}
	}
	return out
}
