// Package domain holds the identifier primitives shared across modules.
// Construct values via the Parse functions at trust boundaries; direct
// casting bypasses validation.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "tessera/pkg/domain-errors"
)

// Holder identifies a ledger account that can hold a membership credential.
// The value is the external ledger's account identifier and is treated as
// opaque beyond basic shape checks.
type Holder string

const maxHolderLen = 128

// ParseHolder validates an externally supplied holder identifier.
func ParseHolder(s string) (Holder, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "holder is required")
	}
	if len(s) > maxHolderLen {
		return "", dErrors.New(dErrors.CodeValidation, "holder exceeds maximum length")
	}
	for _, r := range s {
		if r < '!' || r > '~' {
			return "", dErrors.New(dErrors.CodeValidation, "holder contains invalid characters")
		}
	}
	return Holder(s), nil
}

func (h Holder) String() string { return string(h) }

func (h Holder) IsNil() bool { return h == "" }

// Nonce is the caller-generated idempotency key for an operation intent.
// Invariant: a client nonce is a non-nil UUID string. System-generated
// nonces are derived (see Derive) and therefore also valid UUIDs.
type Nonce string

// ParseNonce validates an externally supplied client nonce.
func ParseNonce(s string) (Nonce, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "nonce is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "nonce must be a valid UUID")
	}
	if u == uuid.Nil {
		return "", dErrors.New(dErrors.CodeValidation, "nonce must not be the nil UUID")
	}
	return Nonce(u.String()), nil
}

// NewNonce generates a fresh random nonce. Used by the relay when turning a
// deposit notification into a coordinator intent.
func NewNonce() Nonce {
	return Nonce(uuid.NewString())
}

// autoReleaseNamespace scopes nonces derived for automatic terminations so
// they can never collide with client-chosen UUIDs.
var autoReleaseNamespace = uuid.MustParse("5ea1ed00-6b1e-4c1a-9dfc-3f9a27f1c0de")

// Derive returns the deterministic nonce for a system operation triggered by
// this one. Deriving twice from the same trigger yields the same nonce, which
// keeps automatic terminations idempotent under log redelivery.
func (n Nonce) Derive() Nonce {
	return Nonce(uuid.NewSHA1(autoReleaseNamespace, []byte(n)).String())
}

func (n Nonce) String() string { return string(n) }

func (n Nonce) IsNil() bool { return n == "" }
