package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"farmtrace/internal/ledger"
	"farmtrace/internal/logger"
	"farmtrace/internal/model"
	"farmtrace/internal/wallet"
)

const testPassword = "secret1"

func newTestWallets() *wallet.Manager {
	return wallet.NewManager(wallet.KDFParams{Time: 1, MemKiB: 1024, Par: 1})
}

func newTestMirror(client ledger.Client, wallets *wallet.Manager) *LedgerMirror {
	return NewLedgerMirror(client, wallets, nil, logger.Nop())
}

// newTestUser builds a persisted-looking user whose wallet is sealed with testPassword.
func newTestUser(t *testing.T, wallets *wallet.Manager, role model.Role) *model.User {
	t.Helper()

	w, err := wallets.Generate()
	require.NoError(t, err)
	sealed, err := wallets.Encrypt(w.PrivateKey, testPassword)
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	return &model.User{
		ID:                  uuid.New(),
		Phone:               "+254700000001",
		Name:                string(role) + " user",
		Role:                role,
		PasswordHash:        string(hash),
		WalletAddress:       w.Address,
		EncryptedPrivateKey: sealed.Ciphertext,
		KeyIV:               sealed.IV,
		KeySalt:             sealed.Salt,
	}
}
