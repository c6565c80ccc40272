// Package intent defines the versioned envelope the coordinator appends to
// the consensus log. Every log entry is one Intent; decoding is strict so a
// malformed or unknown entry halts consumption instead of being skipped.
package intent

import (
	"encoding/json"
	"time"

	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// Version is the envelope schema version written by this build. Decode
// rejects any other version; schema changes bump it.
const Version = 1

// Type tags the operation an intent carries.
type Type string

const (
	TypeIssue     Type = "ISSUE"
	TypeAccrue    Type = "ACCRUE"
	TypeTerminate Type = "TERMINATE"
)

var validTypes = map[Type]bool{
	TypeIssue:     true,
	TypeAccrue:    true,
	TypeTerminate: true,
}

// IsValid checks if the type is one of the supported intent types.
func (t Type) IsValid() bool {
	return validTypes[t]
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// Intent is the unit of work submitted to the consensus log. Amount carries
// the deposit amount for ISSUE and the accrual amount for ACCRUE; TERMINATE
// has no amount.
type Intent struct {
	Version     int       `json:"v"`
	Type        Type      `json:"type"`
	Nonce       id.Nonce  `json:"nonce"`
	Holder      id.Holder `json:"holder"`
	Amount      int64     `json:"amount,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewIssue builds an ISSUE intent carrying the deposit amount.
func NewIssue(holder id.Holder, depositAmount int64, nonce id.Nonce, now time.Time) Intent {
	return Intent{Version: Version, Type: TypeIssue, Nonce: nonce, Holder: holder, Amount: depositAmount, SubmittedAt: now}
}

// NewAccrue builds an ACCRUE intent carrying the accrual amount.
func NewAccrue(holder id.Holder, amount int64, nonce id.Nonce, now time.Time) Intent {
	return Intent{Version: Version, Type: TypeAccrue, Nonce: nonce, Holder: holder, Amount: amount, SubmittedAt: now}
}

// NewTerminate builds a TERMINATE intent.
func NewTerminate(holder id.Holder, nonce id.Nonce, now time.Time) Intent {
	return Intent{Version: Version, Type: TypeTerminate, Nonce: nonce, Holder: holder, SubmittedAt: now}
}

// Validate checks the envelope's fixed field set for its type.
func (i Intent) Validate() error {
	if i.Version != Version {
		return dErrors.Newf(dErrors.CodeValidation, "unsupported intent version %d", i.Version)
	}
	if !i.Type.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown intent type %q", string(i.Type))
	}
	if _, err := id.ParseNonce(i.Nonce.String()); err != nil {
		return dErrors.New(dErrors.CodeValidation, "intent nonce is invalid")
	}
	if _, err := id.ParseHolder(i.Holder.String()); err != nil {
		return dErrors.New(dErrors.CodeValidation, "intent holder is invalid")
	}
	switch i.Type {
	case TypeIssue, TypeAccrue:
		if i.Amount <= 0 {
			return dErrors.Newf(dErrors.CodeValidation, "%s intent amount must be positive", i.Type)
		}
	case TypeTerminate:
		if i.Amount != 0 {
			return dErrors.New(dErrors.CodeValidation, "TERMINATE intent carries no amount")
		}
	}
	return nil
}

// Encode validates the intent and serializes it for the log.
func (i Intent) Encode() ([]byte, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(i)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode intent")
	}
	return data, nil
}

// Decode parses and validates a log entry payload. Any failure means the
// entry was not produced by a compatible submit path and must not be
// silently skipped.
func Decode(data []byte) (Intent, error) {
	var i Intent
	if err := json.Unmarshal(data, &i); err != nil {
		return Intent{}, dErrors.Wrap(err, dErrors.CodeValidation, "malformed intent payload")
	}
	if err := i.Validate(); err != nil {
		return Intent{}, err
	}
	return i, nil
}
