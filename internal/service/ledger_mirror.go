package service

import (
	"context"
	"crypto/ecdsa"
	"errors"

	"farmtrace/internal/ledger"
	"farmtrace/internal/logger"
	"farmtrace/internal/model"
	"farmtrace/internal/wallet"
)

// LedgerMirror submits best-effort copies of committed records to the ledger.
// It never fails the caller: every outcome is reported as a model.LedgerResult.
type LedgerMirror struct {
	client   ledger.Client
	wallets  *wallet.Manager
	operator *ecdsa.PrivateKey
	log      *logger.Logger
}

// NewLedgerMirror creates a LedgerMirror. client may be nil, which disables
// mirroring; operator may be nil, which skips operator-signed calls.
func NewLedgerMirror(client ledger.Client, wallets *wallet.Manager, operator *ecdsa.PrivateKey, log *logger.Logger) *LedgerMirror {
	if client == nil {
		client = ledger.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LedgerMirror{client: client, wallets: wallets, operator: operator, log: log}
}

// Submit signs call with key and waits for confirmation. A nil key skips the call.
func (m *LedgerMirror) Submit(ctx context.Context, key *ecdsa.PrivateKey, call ledger.Call) model.LedgerResult {
	if key == nil {
		return model.LedgerResult{Status: model.LedgerStatusSkipped}
	}

	receipt, err := m.client.SignAndSubmit(ctx, key, call)
	switch {
	case errors.Is(err, ledger.ErrLedgerDisabled):
		return model.LedgerResult{Status: model.LedgerStatusDisabled}
	case err != nil:
		res := model.NewLedgerFailure(err)
		var ledgerErr *ledger.Error
		if errors.As(err, &ledgerErr) {
			res.TxHash = ledgerErr.TxHash
		}
		return res
	}
	return model.LedgerResult{Status: model.LedgerStatusConfirmed, TxHash: receipt.TxHash}
}

// SubmitAsOperator signs call with the contract operator key.
func (m *LedgerMirror) SubmitAsOperator(ctx context.Context, call ledger.Call) model.LedgerResult {
	return m.Submit(ctx, m.operator, call)
}

// HasOperator reports whether operator-signed calls can be submitted.
func (m *LedgerMirror) HasOperator() bool {
	return m.operator != nil
}

// Unlock returns the signing key of user, or nil when no password is given.
// A wrong password fails with ErrAuthentication.
func (m *LedgerMirror) Unlock(user *model.User, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		return nil, nil
	}
	return m.wallets.Unlock(encryptedKeyOf(user), password)
}

// IsVerified reads the verification flag of address from the contract.
func (m *LedgerMirror) IsVerified(ctx context.Context, address string) (bool, error) {
	return m.client.IsVerified(ctx, address)
}

// logResult records the outcome of a mirror with the caller's context.
func logResult(log *logger.Logger, msg string, res model.LedgerResult, args ...any) {
	args = append(args, "ledger_status", res.Status)
	switch res.Status {
	case model.LedgerStatusConfirmed:
		log.Info(msg, append(args, "tx_hash", res.TxHash)...)
	case model.LedgerStatusFailed:
		log.Warn(msg, append(args, "tx_hash", res.TxHash, "error", res.Err)...)
	default:
		log.Debug(msg, args...)
	}
}

func encryptedKeyOf(user *model.User) wallet.EncryptedKey {
	return wallet.EncryptedKey{
		Ciphertext: user.EncryptedPrivateKey,
		IV:         user.KeyIV,
		Salt:       user.KeySalt,
	}
}
