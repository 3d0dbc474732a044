package ledger

import (
	"context"
	"crypto/ecdsa"
)

// Noop is the Client used when no ledger is configured.
type Noop struct{}

func (Noop) SignAndSubmit(context.Context, *ecdsa.PrivateKey, Call) (Receipt, error) {
	return Receipt{}, ErrLedgerDisabled
}

func (Noop) IsVerified(context.Context, string) (bool, error) {
	return false, ErrLedgerDisabled
}
