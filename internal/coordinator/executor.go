package coordinator

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"tessera/internal/coordinator/intent"
	"tessera/internal/coordinator/models"
	credmodels "tessera/internal/credential/models"
	"tessera/internal/ledger"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/requestcontext"
)

// Step names recorded in operation results. On a FAILED record the step
// list shows exactly which ledger mutations already applied.
const (
	stepMint             = "mint"
	stepTransfer         = "transfer"
	stepFreeze           = "freeze"
	stepCreateCredential = "create_credential"
	stepApplyAccrual     = "apply_accrual"
	stepUnfreeze         = "unfreeze"
	stepReturnTransfer   = "return_transfer"
	stepBurn             = "burn"
	stepRefundTransfer   = "refund_transfer"
	stepFeeTransfer      = "fee_transfer"
	stepApplyTermination = "apply_termination"
	stepRecordEvent      = "record_event"
)

// onConfirmed executes one confirmed log entry. Called in log order per
// holder, exactly once per position under normal operation; redelivered
// entries are absorbed by the terminal-status check. Execution failures are
// captured on the operation record and do not stop consumption; only
// infrastructure failures (operation store unavailable) propagate.
func (s *Service) onConfirmed(ctx context.Context, it intent.Intent, position int64) error {
	ctx, span := s.tracer.Start(ctx, "coordinator.execute")
	defer span.End()
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("intent.type", it.Type.String()),
			attribute.String("intent.holder", it.Holder.String()),
			attribute.String("intent.nonce", it.Nonce.String()),
			attribute.Int64("intent.position", position),
		)
	}

	rec, err := s.operations.FindByNonce(ctx, it.Nonce)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation record")
		}
		// Confirmed entry without a record: another instance appended it.
		rec, err = models.NewOperationRecord(it.Nonce, it.Type, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if cerr := s.operations.Create(ctx, rec); cerr != nil && !errors.Is(cerr, sentinel.ErrDuplicate) {
			return dErrors.Wrap(cerr, dErrors.CodeInternal, "failed to record confirmed operation")
		}
	}

	if rec.IsTerminal() {
		s.metrics.IncrementSkippedConfirmation()
		s.completions.notify(rec)
		return nil
	}

	start := requestcontext.Now(ctx)
	rec.MarkExecuting(position, start)
	if err := s.operations.Update(ctx, rec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark operation executing")
	}

	result, execErr := s.execute(ctx, it)
	now := requestcontext.Now(ctx)
	outcome := "completed"
	if execErr != nil {
		outcome = "failed"
		span.RecordError(execErr)
		rec.MarkFailed(result, execErr.Error(), now)
		s.logAudit(ctx, "operation_failed",
			"nonce", it.Nonce.String(),
			"type", it.Type.String(),
			"holder", it.Holder.String(),
			"position", position,
			"error", execErr.Error(),
		)
	} else {
		rec.MarkCompleted(result, now)
		s.logAudit(ctx, "operation_completed",
			"nonce", it.Nonce.String(),
			"type", it.Type.String(),
			"holder", it.Holder.String(),
			"position", position,
		)
	}
	if err := s.operations.Update(ctx, rec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize operation record")
	}

	s.metrics.ObserveExecution(it.Type.String(), outcome, now.Sub(start))
	s.completions.notify(rec)
	return nil
}

func (s *Service) execute(ctx context.Context, it intent.Intent) (*models.Result, error) {
	switch it.Type {
	case intent.TypeIssue:
		return s.executeIssue(ctx, it)
	case intent.TypeAccrue:
		return s.executeAccrue(ctx, it)
	case intent.TypeTerminate:
		return s.executeTerminate(ctx, it.Holder, it.Nonce, false, "")
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown intent type %q", it.Type.String())
	}
}

// executeIssue runs the ISSUE sequence: mint one membership unit, transfer
// it to the holder, freeze it there, then create the credential row.
func (s *Service) executeIssue(ctx context.Context, it intent.Intent) (*models.Result, error) {
	res := &models.Result{Holder: it.Holder}

	lifecycle := 0
	existing, err := s.credentials.FindByHolder(ctx, it.Holder)
	switch {
	case err == nil:
		if existing.Active {
			return res, dErrors.New(dErrors.CodeNotEligible, "holder already has an active credential")
		}
		lifecycle = existing.LifecycleCount + 1
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return res, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if it.Amount != s.cfg.IssuePrice {
		return res, dErrors.Newf(dErrors.CodeValidation, "deposit amount must equal the issuance price of %d", s.cfg.IssuePrice)
	}

	if err := s.gateway.Mint(ctx, ledger.TokenMembership, 1); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "mint membership unit")
	}
	res.Steps = append(res.Steps, stepMint)

	if err := s.gateway.Transfer(ctx, ledger.TokenMembership, s.accounts.TreasuryAccount, it.Holder.String(), 1); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "transfer membership unit to holder")
	}
	res.Steps = append(res.Steps, stepTransfer)

	if err := s.gateway.Freeze(ctx, ledger.TokenMembership, it.Holder.String()); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "freeze membership unit")
	}
	res.Steps = append(res.Steps, stepFreeze)

	now := requestcontext.Now(ctx)
	cred, err := credmodels.NewCredential(it.Holder, s.cfg.MaxQuota, lifecycle, now)
	if err != nil {
		return res, err
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return res, dErrors.New(dErrors.CodeNotEligible, "holder already has an active credential")
		}
		return res, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create credential")
	}
	res.Steps = append(res.Steps, stepCreateCredential)

	res.MaxQuota = cred.MaxQuota
	res.TotalAccrued = cred.TotalAccrued
	res.RemainingQuota = cred.RemainingQuota
	res.CapReached = cred.CapReached
	res.LifecycleCount = cred.LifecycleCount

	s.logAudit(ctx, "credential_issued",
		"holder", it.Holder.String(),
		"lifecycle_count", cred.LifecycleCount,
		"max_quota", cred.MaxQuota,
	)
	return res, nil
}

// executeAccrue runs the ACCRUE sequence: mint reward units, transfer them
// to the holder, then consume quota atomically. A cap-reaching accrual runs
// the TERMINATE sequence inline under a nonce derived from the accrue
// nonce, before any later entry for the holder executes.
func (s *Service) executeAccrue(ctx context.Context, it intent.Intent) (*models.Result, error) {
	res := &models.Result{Holder: it.Holder}

	cred, err := s.credentials.FindByHolder(ctx, it.Holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return res, dErrors.New(dErrors.CodeNotEligible, "holder has no active credential")
		}
		return res, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if err := cred.CanAccrue(it.Amount, s.cfg.MaxAccrualPerRequest); err != nil {
		return res, err
	}

	if err := s.gateway.Mint(ctx, ledger.TokenReward, it.Amount); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "mint reward units")
	}
	res.Steps = append(res.Steps, stepMint)

	if err := s.gateway.Transfer(ctx, ledger.TokenReward, s.accounts.TreasuryAccount, it.Holder.String(), it.Amount); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "transfer reward units to holder")
	}
	res.Steps = append(res.Steps, stepTransfer)

	now := requestcontext.Now(ctx)
	updated, err := s.credentials.Execute(ctx, it.Holder,
		func(c *credmodels.Credential) error {
			return c.CanAccrue(it.Amount, s.cfg.MaxAccrualPerRequest)
		},
		func(c *credmodels.Credential) {
			c.ApplyAccrual(it.Amount, now)
		},
	)
	if err != nil {
		return res, err
	}
	res.Steps = append(res.Steps, stepApplyAccrual)

	event := &credmodels.AccrualEvent{
		Holder:     it.Holder,
		Amount:     it.Amount,
		Cumulative: updated.TotalAccrued,
		Remaining:  updated.RemainingQuota,
		OpNonce:    it.Nonce,
		OccurredAt: now,
	}
	if err := s.credentials.AppendAccrualEvent(ctx, event); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record accrual event")
	}
	res.Steps = append(res.Steps, stepRecordEvent)

	res.MaxQuota = updated.MaxQuota
	res.TotalAccrued = updated.TotalAccrued
	res.RemainingQuota = updated.RemainingQuota
	res.CapReached = updated.CapReached
	res.LifecycleCount = updated.LifecycleCount

	s.logAudit(ctx, "quota_accrued",
		"holder", it.Holder.String(),
		"amount", it.Amount,
		"remaining_quota", updated.RemainingQuota,
	)

	if updated.CapReached {
		s.logAudit(ctx, "credential_cap_reached", "holder", it.Holder.String())
		s.autoTerminate(ctx, it)
	}
	return res, nil
}

// autoTerminate runs the inline TERMINATE for a cap-reaching accrual under
// its own operation record. The accrue operation itself already succeeded;
// a failed inline termination leaves the credential observable in
// CAP_REACHED with a FAILED record pointing at it.
func (s *Service) autoTerminate(ctx context.Context, trigger intent.Intent) {
	nonce := trigger.Nonce.Derive()
	now := requestcontext.Now(ctx)

	rec, err := s.operations.FindByNonce(ctx, nonce)
	switch {
	case err == nil:
		if rec.IsTerminal() {
			return
		}
	case errors.Is(err, sentinel.ErrNotFound):
		rec, err = models.NewOperationRecord(nonce, intent.TypeTerminate, now)
		if err != nil {
			s.logError(ctx, "failed to build auto-termination record", err, "nonce", nonce.String())
			return
		}
		if cerr := s.operations.Create(ctx, rec); cerr != nil && !errors.Is(cerr, sentinel.ErrDuplicate) {
			s.logError(ctx, "failed to create auto-termination record", cerr, "nonce", nonce.String())
			return
		}
	default:
		s.logError(ctx, "failed to load auto-termination record", err, "nonce", nonce.String())
		return
	}

	position := int64(0)
	if trig, err := s.operations.FindByNonce(ctx, trigger.Nonce); err == nil && trig.ConsensusPosition != nil {
		position = *trig.ConsensusPosition
	}
	rec.MarkExecuting(position, now)
	if err := s.operations.Update(ctx, rec); err != nil {
		s.logError(ctx, "failed to mark auto-termination executing", err, "nonce", nonce.String())
		return
	}

	start := requestcontext.Now(ctx)
	result, execErr := s.executeTerminate(ctx, trigger.Holder, nonce, true, trigger.Nonce)
	end := requestcontext.Now(ctx)
	outcome := "completed"
	if execErr != nil {
		outcome = "failed"
		rec.MarkFailed(result, execErr.Error(), end)
		s.logAudit(ctx, "auto_termination_failed",
			"holder", trigger.Holder.String(),
			"nonce", nonce.String(),
			"trigger_nonce", trigger.Nonce.String(),
			"error", execErr.Error(),
		)
	} else {
		rec.MarkCompleted(result, end)
	}
	if err := s.operations.Update(ctx, rec); err != nil {
		s.logError(ctx, "failed to finalize auto-termination record", err, "nonce", nonce.String())
		return
	}

	s.metrics.IncrementAutoTermination()
	s.metrics.ObserveExecution(intent.TypeTerminate.String(), outcome, end.Sub(start))
	s.completions.notify(rec)
}

// executeTerminate runs the TERMINATE sequence: unfreeze and recover the
// membership unit, burn it, pay out the escrowed deposit split, then retire
// the credential row.
func (s *Service) executeTerminate(ctx context.Context, holder id.Holder, nonce id.Nonce, auto bool, trigger id.Nonce) (*models.Result, error) {
	res := &models.Result{Holder: holder, Auto: auto, TriggeredBy: trigger}

	cred, err := s.credentials.FindByHolder(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return res, dErrors.New(dErrors.CodeNotEligible, "holder has no active credential")
		}
		return res, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if err := cred.CanTerminate(); err != nil {
		return res, err
	}

	if err := s.gateway.Unfreeze(ctx, ledger.TokenMembership, holder.String()); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "unfreeze membership unit")
	}
	res.Steps = append(res.Steps, stepUnfreeze)

	if err := s.gateway.Transfer(ctx, ledger.TokenMembership, holder.String(), s.accounts.TreasuryAccount, 1); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "return membership unit")
	}
	res.Steps = append(res.Steps, stepReturnTransfer)

	if err := s.gateway.Burn(ctx, ledger.TokenMembership, 1); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "burn membership unit")
	}
	res.Steps = append(res.Steps, stepBurn)

	refund := s.cfg.IssuePrice * s.cfg.RefundShareBps / 10000
	fee := s.cfg.IssuePrice - refund

	if err := s.gateway.Transfer(ctx, ledger.TokenDeposit, s.accounts.VaultAccount, holder.String(), refund); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "transfer deposit refund")
	}
	res.Steps = append(res.Steps, stepRefundTransfer)
	res.RefundAmount = refund

	if err := s.gateway.Transfer(ctx, ledger.TokenDeposit, s.accounts.VaultAccount, s.accounts.FeeAccount, fee); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeLedger, "transfer termination fee")
	}
	res.Steps = append(res.Steps, stepFeeTransfer)
	res.FeeAmount = fee

	now := requestcontext.Now(ctx)
	updated, err := s.credentials.Execute(ctx, holder,
		func(c *credmodels.Credential) error {
			return c.CanTerminate()
		},
		func(c *credmodels.Credential) {
			c.ApplyTermination(now)
		},
	)
	if err != nil {
		return res, err
	}
	res.Steps = append(res.Steps, stepApplyTermination)

	event := &credmodels.TerminationEvent{
		Holder:       holder,
		RefundAmount: refund,
		FeeAmount:    fee,
		OpNonce:      nonce,
		OccurredAt:   now,
	}
	if err := s.credentials.AppendTerminationEvent(ctx, event); err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record termination event")
	}
	res.Steps = append(res.Steps, stepRecordEvent)

	res.LifecycleCount = updated.LifecycleCount

	s.logAudit(ctx, "credential_terminated",
		"holder", holder.String(),
		"refund_amount", refund,
		"fee_amount", fee,
		"lifecycle_count", updated.LifecycleCount,
		"auto", auto,
	)
	return res, nil
}
