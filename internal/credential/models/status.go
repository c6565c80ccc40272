package models

// Status describes the lifecycle position of a credential as seen by
// status queries. It is derived from the Active and CapReached flags
// rather than stored, so the flags remain the single source of truth.
type Status string

const (
	// StatusActiveAccruing means the credential is held and still has
	// unconsumed quota.
	StatusActiveAccruing Status = "ACTIVE_ACCRUING"
	// StatusCapReached means the credential is held but its quota is
	// fully consumed; the only remaining transition is termination.
	StatusCapReached Status = "CAP_REACHED"
	// StatusTerminated means the credential was returned and settled.
	StatusTerminated Status = "TERMINATED"
	// StatusNotIssued means the holder has never been issued a credential.
	StatusNotIssued Status = "NOT_ISSUED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
