// Package wallet issues custodial signing keys and keeps them encrypted at rest.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"

	apperrors "farmtrace/internal/errors"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// ErrMalformedKey is returned when stored key material cannot be parsed.
// It is a server-side fault, never the caller's.
var ErrMalformedKey = fmt.Errorf("%w: malformed encrypted key", apperrors.ErrPersistence)

// KDFParams are the argon2id cost parameters.
type KDFParams struct {
	Time   uint32
	MemKiB uint32
	Par    uint8
}

// DefaultKDFParams are used when no parameters are configured.
var DefaultKDFParams = KDFParams{Time: 1, MemKiB: 64 * 1024, Par: 4}

// Wallet is a freshly generated key pair.
type Wallet struct {
	Address    string
	PrivateKey string
}

// EncryptedKey is a private key sealed under a password. All fields are hex.
type EncryptedKey struct {
	Ciphertext string
	IV         string
	Salt       string
}

// Manager generates wallets and seals their keys.
type Manager struct {
	kdf  KDFParams
	rand io.Reader
}

// NewManager creates a Manager using the given KDF parameters.
func NewManager(kdf KDFParams) *Manager {
	if kdf.Time == 0 || kdf.MemKiB == 0 || kdf.Par == 0 {
		kdf = DefaultKDFParams
	}
	return &Manager{kdf: kdf, rand: rand.Reader}
}

// Generate creates a new secp256k1 key pair.
func (m *Manager) Generate() (Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Wallet{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return Wallet{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

// Encrypt seals privateKeyHex with a key derived from password.
func (m *Manager) Encrypt(privateKeyHex, password string) (EncryptedKey, error) {
	plain, err := hex.DecodeString(privateKeyHex)
	if err != nil || len(plain) != keySize {
		return EncryptedKey{}, ErrMalformedKey
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(m.rand, salt); err != nil {
		return EncryptedKey{}, fmt.Errorf("failed to read salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(m.rand, nonce); err != nil {
		return EncryptedKey{}, fmt.Errorf("failed to read nonce: %w", err)
	}

	gcm, err := m.aead(password, salt)
	if err != nil {
		return EncryptedKey{}, err
	}

	return EncryptedKey{
		Ciphertext: hex.EncodeToString(gcm.Seal(nil, nonce, plain, nil)),
		IV:         hex.EncodeToString(nonce),
		Salt:       hex.EncodeToString(salt),
	}, nil
}

// Decrypt reverses Encrypt. A wrong password fails with ErrAuthentication,
// unreadable key material with ErrMalformedKey.
func (m *Manager) Decrypt(enc EncryptedKey, password string) (string, error) {
	ciphertext, err := hex.DecodeString(enc.Ciphertext)
	if err != nil || len(ciphertext) == 0 {
		return "", ErrMalformedKey
	}
	nonce, err := hex.DecodeString(enc.IV)
	if err != nil || len(nonce) != nonceSize {
		return "", ErrMalformedKey
	}
	salt, err := hex.DecodeString(enc.Salt)
	if err != nil || len(salt) != saltSize {
		return "", ErrMalformedKey
	}

	gcm, err := m.aead(password, salt)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperrors.ErrAuthentication
	}
	return hex.EncodeToString(plain), nil
}

// Unlock decrypts enc and parses it into a signing key.
func (m *Manager) Unlock(enc EncryptedKey, password string) (*ecdsa.PrivateKey, error) {
	keyHex, err := m.Decrypt(enc, password)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(keyHex)
}

func (m *Manager) aead(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, m.kdf.Time, m.kdf.MemKiB, m.kdf.Par, keySize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// ParsePrivateKey parses a hex private key, with or without 0x prefix.
func ParsePrivateKey(keyHex string) (*ecdsa.PrivateKey, error) {
	if len(keyHex) > 1 && (keyHex[:2] == "0x" || keyHex[:2] == "0X") {
		keyHex = keyHex[2:]
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, errors.Join(ErrMalformedKey, err)
	}
	return key, nil
}

// AddressOf returns the EIP-55 address controlled by key.
func AddressOf(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

// IsAddress reports whether s is a hex encoded account address.
func IsAddress(s string) bool {
	return common.IsHexAddress(s)
}
