package tilecoord

import "testing"

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		c       Coord
		wantErr bool
	}{
		{"root tile", Coord{Z: 0, X: 0, Y: 0}, false},
		{"max zoom corner", Coord{Z: 16, X: 0, Y: 0}, false},
		{"zoom too high", Coord{Z: 17, X: 0, Y: 0}, true},
		{"x out of range", Coord{Z: 1, X: 2, Y: 0}, true},
		{"y out of range", Coord{Z: 1, X: 0, Y: 2}, true},
		{"in range at zoom 2", Coord{Z: 2, X: 3, Y: 3}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLessOrdersByZThenXThenY(t *testing.T) {
	a := Coord{Z: 1, X: 0, Y: 0}
	b := Coord{Z: 1, X: 0, Y: 1}
	c := Coord{Z: 2, X: 0, Y: 0}

	if !a.Less(b) {
		t.Fatalf("expected a < b")
	}
	if !b.Less(c) {
		t.Fatalf("expected b < c")
	}
	if c.Less(a) {
		t.Fatalf("expected c not < a")
	}
}

func TestPathSegment(t *testing.T) {
	c := Coord{Z: 3, X: 4, Y: 5}
	if got, want := c.PathSegment(), "z3x4y5"; got != want {
		t.Fatalf("PathSegment() = %q, want %q", got, want)
	}
}
