package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParseNonce checks that ParseNonce never accepts a value that fails to
// round-trip as a canonical UUID.
func FuzzParseNonce(f *testing.F) {
	f.Add("a2aa6e74-1b9c-4b4d-a2d1-7c1f7b6a5c3e")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("")
	f.Add("not-a-uuid")
	f.Add("a2aa6e74-1b9c-4b4d-a2d1-7c1f7b6a5c3e ")

	f.Fuzz(func(t *testing.T, s string) {
		n, err := ParseNonce(s)
		if err != nil {
			return
		}
		u, parseErr := uuid.Parse(n.String())
		if parseErr != nil {
			t.Fatalf("accepted nonce %q does not reparse: %v", n, parseErr)
		}
		if u == uuid.Nil {
			t.Fatalf("accepted nil UUID from input %q", s)
		}
		if u.String() != n.String() {
			t.Fatalf("nonce %q is not canonical", n)
		}
	})
}

// FuzzParseHolder checks that accepted holder identifiers are stable under
// re-parsing.
func FuzzParseHolder(f *testing.F) {
	f.Add("0.0.4821")
	f.Add("  padded  ")
	f.Add("")
	f.Add("with space inside")

	f.Fuzz(func(t *testing.T, s string) {
		h, err := ParseHolder(s)
		if err != nil {
			return
		}
		again, err := ParseHolder(h.String())
		if err != nil {
			t.Fatalf("accepted holder %q does not reparse: %v", h, err)
		}
		if again != h {
			t.Fatalf("holder %q not stable under reparse", h)
		}
	})
}
