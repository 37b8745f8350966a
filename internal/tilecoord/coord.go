// Package tilecoord defines the XYZ tile coordinate used as the key
// throughout the acquisition and caching core.
package tilecoord

import "fmt"

// MaxZoom is the highest zoom level this core accepts.
const MaxZoom = 16

// Coord identifies a single map tile at a zoom level, in the standard
// XYZ scheme. It is a small, comparable value usable directly as a map
// key and ordered total by (Z, X, Y).
type Coord struct {
	Z uint8
	X uint32
	Y uint32
}

// New builds a Coord and validates it against the tile grid for z.
func New(z uint8, x, y uint32) (Coord, error) {
	c := Coord{Z: z, X: x, Y: y}
	if err := c.Validate(); err != nil {
		return Coord{}, err
	}
	return c, nil
}

// Validate reports whether c lies within the tile grid for its zoom
// level: 0 <= Z <= MaxZoom and 0 <= X,Y < 2^Z.
func (c Coord) Validate() error {
	if c.Z > MaxZoom {
		return fmt.Errorf("tilecoord: zoom %d exceeds max zoom %d", c.Z, MaxZoom)
	}
	span := uint32(1) << c.Z
	if c.X >= span || c.Y >= span {
		return fmt.Errorf("tilecoord: coordinate (%d,%d) out of range for zoom %d", c.X, c.Y, c.Z)
	}
	return nil
}

// Less orders coordinates by (Z, X, Y), giving a total order suitable
// for deterministic iteration in tests.
func (c Coord) Less(other Coord) bool {
	if c.Z != other.Z {
		return c.Z < other.Z
	}
	if c.X != other.X {
		return c.X < other.X
	}
	return c.Y < other.Y
}

// String renders the coordinate in "z/x/y" form, used in logs.
func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// PathSegment renders the coordinate in the "zZxXyY" form used for
// on-disk cache filenames.
func (c Coord) PathSegment() string {
	return fmt.Sprintf("z%dx%dy%d", c.Z, c.X, c.Y)
}
