// Package relay bridges the external deposit notification stream to the
// coordinator. Notifications arrive at least once; the relay deduplicates by
// source event ID, validates the deposit against the issuance price, submits
// an ISSUE intent under a fresh nonce, and reports the terminal outcome back
// on the results stream.
package relay

import (
	"encoding/json"
	"time"

	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// State tracks a relayed deposit through its handshake. RECEIVED covers
// decode, validation, and dedup; COORDINATOR_SUBMITTED means the ISSUE intent
// is on the consensus log; COMPLETED and FAILED are terminal and mirrored to
// the results stream.
type State string

const (
	StateReceived  State = "RECEIVED"
	StateSubmitted State = "COORDINATOR_SUBMITTED"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// IsTerminal reports whether the state admits no further transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) String() string {
	return string(s)
}

const maxEventIDLen = 128

// Notification is one inbound deposit event. EventID is the upstream
// transport's identifier and is the dedup key; it shares nothing with the
// coordinator nonce space.
type Notification struct {
	EventID     string    `json:"event_id"`
	Depositor   id.Holder `json:"depositor"`
	Amount      int64     `json:"amount"`
	DepositedAt time.Time `json:"deposited_at"`
}

// Validate checks the notification's shape. The amount-versus-price check
// lives in the service because the price is configuration, not schema.
func (n Notification) Validate() error {
	if n.EventID == "" {
		return dErrors.New(dErrors.CodeValidation, "deposit event id is required")
	}
	if len(n.EventID) > maxEventIDLen {
		return dErrors.New(dErrors.CodeValidation, "deposit event id exceeds maximum length")
	}
	if _, err := id.ParseHolder(n.Depositor.String()); err != nil {
		return dErrors.New(dErrors.CodeValidation, "deposit depositor is invalid")
	}
	if n.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "deposit amount must be positive")
	}
	return nil
}

// Encode serializes a notification for the deposit stream. Used by the
// orchestrator and by tests; production notifications come from upstream.
func (n Notification) Encode() ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode deposit notification")
	}
	return data, nil
}

// DecodeNotification parses and validates a deposit stream payload.
func DecodeNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, dErrors.Wrap(err, dErrors.CodeValidation, "malformed deposit notification")
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Report is the terminal outcome published for a relayed deposit. Delivery is
// at least once; consumers dedup by EventID.
type Report struct {
	EventID    string    `json:"event_id"`
	Depositor  id.Holder `json:"depositor"`
	Nonce      id.Nonce  `json:"nonce,omitempty"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// Encode serializes a report for the results stream.
func (r Report) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode deposit report")
	}
	return data, nil
}

// Delivery is the relay's in-flight view of one deposit. Entries exist from
// first sight until the terminal report is published.
type Delivery struct {
	EventID   string
	Depositor id.Holder
	Amount    int64
	Nonce     id.Nonce
	State     State
	UpdatedAt time.Time
}
