// Package mvtparse provides the default production Parser: a
// pass-through adapter, not a real Mapbox Vector Tile decoder. Real
// decoding is an external collaborator by design (spec §1); this
// adapter exists so the core has something concrete to wire by
// default, and so tests can swap in a fake that fails on demand.
package mvtparse

import (
	"errors"

	"tilecore/internal/vectortile"
)

// ErrEmpty is returned when asked to decode a zero-length payload.
var ErrEmpty = errors.New("mvtparse: empty payload")

// Parser is a thin pass-through vectortile.Parser.
type Parser struct{}

// New returns the default pass-through Parser.
func New() *Parser {
	return &Parser{}
}

// Decode validates that raw is non-empty and wraps it as a Tile. It
// performs no actual protobuf/MVT decoding.
func (p *Parser) Decode(raw []byte) (*vectortile.Tile, error) {
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return vectortile.New(cp), nil
}
