package models

import (
	"time"

	"tessera/internal/coordinator/intent"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// OperationStatus tracks an operation record through its lifecycle.
// SUBMITTED → EXECUTING → COMPLETED | FAILED, forward-only.
type OperationStatus string

const (
	StatusSubmitted OperationStatus = "SUBMITTED"
	StatusExecuting OperationStatus = "EXECUTING"
	StatusCompleted OperationStatus = "COMPLETED"
	StatusFailed    OperationStatus = "FAILED"
)

var validStatuses = map[OperationStatus]bool{
	StatusSubmitted: true,
	StatusExecuting: true,
	StatusCompleted: true,
	StatusFailed:    true,
}

// IsValid checks if the status is one of the supported enum values.
func (s OperationStatus) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether the status admits no further transitions.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// String returns the string representation of the status.
func (s OperationStatus) String() string {
	return string(s)
}

// Result captures the outcome of an executed operation. Steps lists the
// ledger and store steps that ran in order; on a FAILED record it shows how
// far the sequence progressed before the error, which is the partial-effect
// evidence operators reconcile from.
type Result struct {
	Holder         id.Holder `json:"holder"`
	Steps          []string  `json:"steps,omitempty"`
	MaxQuota       int64     `json:"max_quota,omitempty"`
	TotalAccrued   int64     `json:"total_accrued,omitempty"`
	RemainingQuota int64     `json:"remaining_quota,omitempty"`
	CapReached     bool      `json:"cap_reached,omitempty"`
	LifecycleCount int       `json:"lifecycle_count,omitempty"`
	RefundAmount   int64     `json:"refund_amount,omitempty"`
	FeeAmount      int64     `json:"fee_amount,omitempty"`
	Auto           bool      `json:"auto,omitempty"`
	TriggeredBy    id.Nonce  `json:"triggered_by,omitempty"`
}

// OperationRecord is the per-nonce ledger of what the coordinator did.
//
// Invariants:
//   - Nonce is immutable after construction and unique across operations
//   - Status only moves forward; a terminal record never changes again
//   - ConsensusPosition is set once, when the intent's log position is known
//   - Once COMPLETED, the ledger side effects for this nonce happened
//     exactly once and are never re-run
type OperationRecord struct {
	Nonce             id.Nonce        `json:"nonce"`
	Type              intent.Type     `json:"type"`
	Status            OperationStatus `json:"status"`
	ConsensusPosition *int64          `json:"consensus_position,omitempty"`
	Result            *Result         `json:"result,omitempty"`
	Error             string          `json:"error,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func NewOperationRecord(nonce id.Nonce, typ intent.Type, now time.Time) (*OperationRecord, error) {
	if nonce.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "operation nonce cannot be empty")
	}
	if !typ.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "operation type is invalid")
	}
	return &OperationRecord{
		Nonce:     nonce,
		Type:      typ,
		Status:    StatusSubmitted,
		UpdatedAt: now,
	}, nil
}

// IsTerminal reports whether the record reached COMPLETED or FAILED.
func (r *OperationRecord) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// RecordPosition stores the confirmed log position. The position is
// immutable once set; repeated calls with the same value are no-ops so
// redelivered confirmations stay idempotent.
func (r *OperationRecord) RecordPosition(position int64, now time.Time) {
	if r.ConsensusPosition != nil {
		return
	}
	r.ConsensusPosition = &position
	r.UpdatedAt = now
}

// MarkExecuting transitions the record to EXECUTING and pins the log
// position that triggered execution.
func (r *OperationRecord) MarkExecuting(position int64, now time.Time) {
	r.RecordPosition(position, now)
	r.Status = StatusExecuting
	r.UpdatedAt = now
}

// MarkCompleted finalizes the record with its result.
func (r *OperationRecord) MarkCompleted(result *Result, now time.Time) {
	r.Status = StatusCompleted
	r.Result = result
	r.Error = ""
	r.UpdatedAt = now
}

// MarkFailed finalizes the record with the error and whatever partial
// result the sequence produced before failing.
func (r *OperationRecord) MarkFailed(result *Result, errMsg string, now time.Time) {
	r.Status = StatusFailed
	r.Result = result
	r.Error = errMsg
	r.UpdatedAt = now
}
