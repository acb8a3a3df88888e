package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	vault, err := New("testpassword123")
	require.NoError(t, err)
	assert.True(t, vault.IsUnlocked())

	original := []byte("Date,Category,Revenue,Expenses\n2024-01-15,A,100,40\n")

	encrypted, err := vault.Encrypt(original)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(encrypted), "encrypted payload should carry the age header")

	decoded, err := vault.Decode(encrypted)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(decoded))
}

func TestDecodePlainPassthrough(t *testing.T) {
	vault, err := New("")
	require.NoError(t, err)
	assert.False(t, vault.IsUnlocked())

	plain := []byte("Date,Revenue\n2024-01-01,10\n")
	decoded, err := vault.Decode(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, decoded)
}

func TestDecodeLocked(t *testing.T) {
	sealed, err := New("secret")
	require.NoError(t, err)

	encrypted, err := sealed.Encrypt([]byte("Date\n2024-01-01\n"))
	require.NoError(t, err)

	vault, err := New("")
	require.NoError(t, err)
	assert.False(t, vault.IsUnlocked())

	_, err = vault.Decode(encrypted)
	assert.ErrorIs(t, err, ErrLocked)

	_, err = vault.Encrypt([]byte("x"))
	assert.ErrorIs(t, err, ErrLocked)
}

func TestDecodeWrongPassphrase(t *testing.T) {
	vault, err := New("correct")
	require.NoError(t, err)

	encrypted, err := vault.Encrypt([]byte("Date\n2024-01-01\n"))
	require.NoError(t, err)

	require.NoError(t, vault.Unlock("wrong"))
	_, err = vault.Decode(encrypted)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestIsEncrypted(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, false},
		{"header only", []byte(ageHeader), false},
		{"csv", []byte("Date,Revenue\n"), false},
		{"age", []byte(ageHeader + "/v1\n"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEncrypted(tt.data))
		})
	}
}
