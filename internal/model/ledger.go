package model

// LedgerStatus records the outcome of mirroring a record onto the ledger.
type LedgerStatus string

const (
	// LedgerStatusConfirmed means the transaction was mined successfully.
	LedgerStatusConfirmed LedgerStatus = "confirmed"
	// LedgerStatusFailed means submission was attempted and did not confirm.
	LedgerStatusFailed LedgerStatus = "failed"
	// LedgerStatusSkipped means no signer was available for the action.
	LedgerStatusSkipped LedgerStatus = "skipped"
	// LedgerStatusDisabled means no ledger is configured.
	LedgerStatusDisabled LedgerStatus = "disabled"
)

// LedgerResult is the outcome of a best-effort ledger mirror. The primary
// database operation has already committed when one is returned.
type LedgerResult struct {
	Status LedgerStatus `json:"status"`
	TxHash string       `json:"tx_hash,omitempty"`
	Err    error        `json:"-"`
	Error  string       `json:"error,omitempty"`
}

// NewLedgerFailure builds a failed LedgerResult from err.
func NewLedgerFailure(err error) LedgerResult {
	return LedgerResult{Status: LedgerStatusFailed, Err: err, Error: err.Error()}
}

// OK reports whether the mirror confirmed on-chain.
func (r LedgerResult) OK() bool {
	return r.Status == LedgerStatusConfirmed
}
