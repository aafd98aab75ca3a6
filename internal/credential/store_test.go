package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "account_store.yaml")
	return NewStore(path, zap.NewNop()), path
}

func TestStoreStartsEmpty(t *testing.T) {
	store, _ := newStore(t)

	assert.False(t, store.Has("a@x.com"))
	assert.Empty(t, store.CurrentEmail())
}

func TestSetCredentialPersists(t *testing.T) {
	store, path := newStore(t)

	require.NoError(t, store.SetCredential("a@x.com", "hash-a", true))
	require.NoError(t, store.SetCredential("b@x.com", "hash-b", false))

	reopened := NewStore(path, zap.NewNop())

	hash, ok := reopened.Hash("a@x.com")
	require.True(t, ok)
	assert.Equal(t, "hash-a", hash)
	assert.True(t, reopened.Has("b@x.com"))
	assert.Equal(t, "a@x.com", reopened.CurrentEmail())
}

func TestSetCurrentEmail(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.SetCredential("a@x.com", "hash-a", false))
	assert.Empty(t, store.CurrentEmail())

	require.NoError(t, store.SetCurrentEmail("a@x.com"))
	assert.Equal(t, "a@x.com", store.CurrentEmail())

	require.NoError(t, store.SetCurrentEmail(""))
	assert.Empty(t, store.CurrentEmail())
	assert.True(t, store.Has("a@x.com"))
}

func TestCorruptFileReadsAsEmpty(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, os.WriteFile(path, []byte("account_credentials: [unterminated"), 0o600))

	assert.False(t, store.Has("a@x.com"))
	assert.Empty(t, store.CurrentEmail())

	// the next write replaces the corrupt file
	require.NoError(t, store.SetCredential("a@x.com", "hash-a", true))
	assert.True(t, store.Has("a@x.com"))
}

func TestEncodeDecodeCredentials(t *testing.T) {
	encoded := EncodeCredentials(map[string]string{
		"b@x.com": "$2a$10$bbb",
		"a@x.com": "$2a$10$aaa",
	})
	assert.Equal(t, "a@x.com|$2a$10$aaa\nb@x.com|$2a$10$bbb", encoded)

	decoded := DecodeCredentials(encoded + "\nmalformed\n|nohash\nnoemail|\n")
	assert.Equal(t, map[string]string{
		"a@x.com": "$2a$10$aaa",
		"b@x.com": "$2a$10$bbb",
	}, decoded)

	assert.Empty(t, DecodeCredentials(""))
}

func TestHasher(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.True(t, hasher.Check(hash, "secret1"))
	assert.False(t, hasher.Check(hash, "Secret1"))
	assert.False(t, hasher.Check("not-a-hash", "secret1"))

	again, err := hasher.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}
