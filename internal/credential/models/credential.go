package models

import (
	"time"

	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// Credential is the aggregate root for a holder's membership credential.
// Each holder has at most one credential row; re-issuance after termination
// replaces the row and bumps LifecycleCount, while the accrual and
// termination event tables preserve history across lifecycles.
//
// Invariants (hold while Active):
//   - MaxQuota is positive and immutable after construction
//   - TotalAccrued + RemainingQuota == MaxQuota
//   - CapReached == (RemainingQuota == 0)
//   - TotalAccrued and RemainingQuota are never negative
//
// Termination zeroes the quota counters and clears Active; the invariants
// above are scoped to the active lifecycle and are not checked afterwards.
// LifecycleCount increments on every transition: once per termination and
// once per re-issuance, so a holder on their second credential reads 2.
type Credential struct {
	Holder         id.Holder `json:"holder"`
	MaxQuota       int64     `json:"max_quota"`
	TotalAccrued   int64     `json:"total_accrued"`
	RemainingQuota int64     `json:"remaining_quota"`
	CapReached     bool      `json:"cap_reached"`
	Active         bool      `json:"active"`
	LifecycleCount int       `json:"lifecycle_count"`
	IssuedAt       time.Time `json:"issued_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewCredential(holder id.Holder, maxQuota int64, lifecycleCount int, now time.Time) (*Credential, error) {
	if holder.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential holder cannot be empty")
	}
	if maxQuota <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential max quota must be positive")
	}
	if lifecycleCount < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential lifecycle count cannot be negative")
	}
	return &Credential{
		Holder:         holder,
		MaxQuota:       maxQuota,
		TotalAccrued:   0,
		RemainingQuota: maxQuota,
		CapReached:     false,
		Active:         true,
		LifecycleCount: lifecycleCount,
		IssuedAt:       now,
		UpdatedAt:      now,
	}, nil
}

func (c *Credential) IsActive() bool {
	return c.Active
}

// Status derives the externally visible lifecycle status from the
// Active and CapReached flags.
func (c *Credential) Status() Status {
	switch {
	case c.Active && !c.CapReached:
		return StatusActiveAccruing
	case c.Active && c.CapReached:
		return StatusCapReached
	default:
		return StatusTerminated
	}
}

// CanAccrue checks whether amount units can be accrued against the
// credential. maxPerRequest bounds a single accrual and is enforced
// before any state is inspected, so oversized requests fail the same
// way regardless of the credential's position in its lifecycle.
func (c *Credential) CanAccrue(amount, maxPerRequest int64) error {
	if amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "accrual amount must be positive")
	}
	if maxPerRequest > 0 && amount > maxPerRequest {
		return dErrors.New(dErrors.CodeValidation, "accrual amount exceeds per-request maximum")
	}
	if !c.Active {
		return dErrors.New(dErrors.CodeNotEligible, "credential is not active")
	}
	if amount > c.RemainingQuota {
		return dErrors.New(dErrors.CodeQuotaExceeded, "accrual amount exceeds remaining quota")
	}
	return nil
}

// ApplyAccrual consumes amount units of remaining quota and flips
// CapReached when the quota is exhausted exactly.
// Call CanAccrue first to validate the accrual.
func (c *Credential) ApplyAccrual(amount int64, now time.Time) {
	c.TotalAccrued += amount
	c.RemainingQuota -= amount
	if c.RemainingQuota == 0 {
		c.CapReached = true
	}
	c.UpdatedAt = now
}

// Accrue validates and applies an accrual in one call. Store Execute
// callbacks use the split CanAccrue and ApplyAccrual steps instead.
func (c *Credential) Accrue(amount, maxPerRequest int64, now time.Time) error {
	if err := c.CanAccrue(amount, maxPerRequest); err != nil {
		return err
	}
	c.ApplyAccrual(amount, now)
	return nil
}

// CanTerminate checks whether the credential can be returned and settled.
// Termination requires the accrual cap to have been reached; a credential
// still accruing cannot be handed back.
func (c *Credential) CanTerminate() error {
	if !c.Active {
		return dErrors.New(dErrors.CodeNotEligible, "credential is not active")
	}
	if !c.CapReached {
		return dErrors.New(dErrors.CodeNotEligible, "credential has not reached its accrual cap")
	}
	return nil
}

// ApplyTermination retires the credential: quota counters are zeroed,
// Active is cleared, and LifecycleCount records the completed lifecycle.
// Call CanTerminate first to validate the transition.
func (c *Credential) ApplyTermination(now time.Time) {
	c.Active = false
	c.TotalAccrued = 0
	c.RemainingQuota = 0
	c.LifecycleCount++
	c.UpdatedAt = now
}

// Terminate validates and applies termination in one call. Store Execute
// callbacks use the split CanTerminate and ApplyTermination steps instead.
func (c *Credential) Terminate(now time.Time) error {
	if err := c.CanTerminate(); err != nil {
		return err
	}
	c.ApplyTermination(now)
	return nil
}

// CheckInvariants verifies the quota arithmetic of an active credential.
// Stores call this after mutation callbacks so a broken transition is
// rejected before it is persisted.
func (c *Credential) CheckInvariants() error {
	if !c.Active {
		return nil
	}
	if c.MaxQuota <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential max quota must be positive")
	}
	if c.TotalAccrued < 0 || c.RemainingQuota < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential quota counters cannot be negative")
	}
	if c.TotalAccrued+c.RemainingQuota != c.MaxQuota {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential quota counters do not sum to max quota")
	}
	if c.CapReached != (c.RemainingQuota == 0) {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential cap flag does not match remaining quota")
	}
	return nil
}
