package wallet

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "farmtrace/internal/errors"
)

// cheap parameters keep the tests fast
var testKDF = KDFParams{Time: 1, MemKiB: 1024, Par: 1}

func TestGenerate(t *testing.T) {
	m := NewManager(testKDF)

	w, err := m.Generate()
	require.NoError(t, err)
	assert.True(t, IsAddress(w.Address))
	assert.Len(t, w.PrivateKey, 64)

	key, err := ParsePrivateKey(w.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, w.Address, AddressOf(key))

	other, err := m.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, w.Address, other.Address)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	m := NewManager(testKDF)

	passwords := []string{"secret1", "", "pässwörd with spaces", strings.Repeat("x", 256)}
	for _, password := range passwords {
		w, err := m.Generate()
		require.NoError(t, err)

		enc, err := m.Encrypt(w.PrivateKey, password)
		require.NoError(t, err)
		assert.NotContains(t, enc.Ciphertext, w.PrivateKey)
		assert.Len(t, enc.IV, nonceSize*2)
		assert.Len(t, enc.Salt, saltSize*2)

		got, err := m.Decrypt(enc, password)
		require.NoError(t, err)
		assert.Equal(t, w.PrivateKey, got)
	}
}

func TestEncrypt_FreshSaltAndNonce(t *testing.T) {
	m := NewManager(testKDF)
	w, err := m.Generate()
	require.NoError(t, err)

	a, err := m.Encrypt(w.PrivateKey, "secret1")
	require.NoError(t, err)
	b, err := m.Encrypt(w.PrivateKey, "secret1")
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecrypt_WrongPassword(t *testing.T) {
	m := NewManager(testKDF)
	w, err := m.Generate()
	require.NoError(t, err)
	enc, err := m.Encrypt(w.PrivateKey, "secret1")
	require.NoError(t, err)

	for _, password := range []string{"secret2", "", "Secret1", "secret1 "} {
		got, err := m.Decrypt(enc, password)
		assert.ErrorIs(t, err, apperrors.ErrAuthentication)
		assert.Empty(t, got)

		key, err := m.Unlock(enc, password)
		assert.ErrorIs(t, err, apperrors.ErrAuthentication)
		assert.Nil(t, key)
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	m := NewManager(testKDF)
	w, err := m.Generate()
	require.NoError(t, err)
	enc, err := m.Encrypt(w.PrivateKey, "secret1")
	require.NoError(t, err)

	flipped := []byte(enc.Ciphertext)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}
	enc.Ciphertext = string(flipped)

	_, err = m.Decrypt(enc, "secret1")
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
}

func TestDecrypt_Malformed(t *testing.T) {
	m := NewManager(testKDF)
	w, err := m.Generate()
	require.NoError(t, err)
	good, err := m.Encrypt(w.PrivateKey, "secret1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(e *EncryptedKey)
	}{
		{"ciphertext not hex", func(e *EncryptedKey) { e.Ciphertext = "zz" }},
		{"empty ciphertext", func(e *EncryptedKey) { e.Ciphertext = "" }},
		{"short iv", func(e *EncryptedKey) { e.IV = "abcd" }},
		{"iv not hex", func(e *EncryptedKey) { e.IV = strings.Repeat("g", nonceSize*2) }},
		{"short salt", func(e *EncryptedKey) { e.Salt = "00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := good
			tt.mutate(&enc)
			_, err := m.Decrypt(enc, "secret1")
			assert.ErrorIs(t, err, ErrMalformedKey)
			assert.ErrorIs(t, err, apperrors.ErrPersistence)
			assert.NotErrorIs(t, err, apperrors.ErrValidation)
			assert.NotErrorIs(t, err, apperrors.ErrAuthentication)

			httpErr := apperrors.MapErrorToHTTP(err)
			assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
			assert.Equal(t, "internal server error", httpErr.Message)
		})
	}
}

func TestEncrypt_RejectsMalformedKey(t *testing.T) {
	m := NewManager(testKDF)
	_, err := m.Encrypt("not-a-key", "secret1")
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestParsePrivateKey_Prefix(t *testing.T) {
	m := NewManager(testKDF)
	w, err := m.Generate()
	require.NoError(t, err)

	key, err := ParsePrivateKey("0x" + w.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, w.Address, AddressOf(key))

	_, err = ParsePrivateKey("0x1234")
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestNewManager_DefaultsZeroParams(t *testing.T) {
	m := NewManager(KDFParams{})
	assert.Equal(t, DefaultKDFParams, m.kdf)
}
