package models

import (
	"time"

	id "tessera/pkg/domain"
)

// AccrualEvent records one executed accrual against a holder's credential.
// Events survive termination and re-issuance, so the per-holder history
// spans lifecycles even though the credential row is replaced.
type AccrualEvent struct {
	ID         int64     `json:"id"`
	Holder     id.Holder `json:"holder"`
	Amount     int64     `json:"amount"`
	Cumulative int64     `json:"cumulative"`
	Remaining  int64     `json:"remaining"`
	OpNonce    id.Nonce  `json:"op_nonce"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TerminationEvent records one executed termination settlement: how the
// escrowed deposit was split between the holder refund and the fee account.
type TerminationEvent struct {
	ID           int64     `json:"id"`
	Holder       id.Holder `json:"holder"`
	RefundAmount int64     `json:"refund_amount"`
	FeeAmount    int64     `json:"fee_amount"`
	OpNonce      id.Nonce  `json:"op_nonce"`
	OccurredAt   time.Time `json:"occurred_at"`
}
