package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestManagerStoreRetrieveDelete(t *testing.T) {
	store := NewMemoryStore()
	manager := NewManagerWithStores(store)

	cred := &Credential{Host: "API.Example.com.", Token: "tok_1234567890"}
	require.NoError(t, manager.Store(cred))
	assert.Equal(t, "api.example.com", cred.Host)
	assert.Equal(t, DefaultScheme, cred.Scheme)
	assert.False(t, cred.LastModified.IsZero())

	got, err := manager.Retrieve("api.example.com")
	require.NoError(t, err)
	assert.Equal(t, "tok_1234567890", got.Token)

	header, ok := manager.Header("API.EXAMPLE.COM")
	assert.True(t, ok)
	assert.Equal(t, "Bearer tok_1234567890", header)

	_, ok = manager.Header("other.example.com")
	assert.False(t, ok)

	require.NoError(t, manager.Delete("api.example.com"))
	assert.Equal(t, 0, store.Count())

	err = manager.Delete("api.example.com")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager := NewManagerWithStores(NewMemoryStore())
	assert.Error(t, manager.Store(nil))
	assert.Error(t, manager.Store(&Credential{Token: "x"}))
	assert.Error(t, manager.Store(&Credential{Host: "h"}))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("keychain locked")
	fallback := NewMemoryStore()

	manager := NewManagerWithStores(broken, fallback)
	require.NoError(t, manager.Store(&Credential{Host: "h", Token: "t", Scheme: "Token"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, fallback.Count())

	header, ok := manager.Header("h")
	assert.True(t, ok)
	assert.Equal(t, "Token t", header)

	all := NewManagerWithStores(broken)
	assert.ErrorContains(t, all.Store(&Credential{Host: "h", Token: "t"}), "keychain locked")

	assert.Error(t, NewManagerWithStores().Store(&Credential{Host: "h", Token: "t"}))
}

func TestManagerListNewestWins(t *testing.T) {
	older := NewMemoryStore()
	newer := NewMemoryStore()
	now := time.Now()

	require.NoError(t, older.Store(&Credential{Host: "b.example", Token: "old", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Credential{Host: "b.example", Token: "new", LastModified: now}))
	require.NoError(t, newer.Store(&Credential{Host: "a.example", Token: "a", LastModified: now}))

	failing := NewMemoryStore()
	failing.ListError = errors.New("boom")

	creds, err := NewManagerWithStores(older, failing, newer).List()
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "a.example", creds[0].Host)
	assert.Equal(t, "new", creds[1].Token)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvToken, "")
	env := NewEnvironmentStore()
	_, err := env.Retrieve("any")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv(EnvToken, "envtoken")
	cred, err := env.Retrieve("whatever.example")
	require.NoError(t, err)
	assert.Equal(t, AnyHost, cred.Host)
	assert.Equal(t, "Bearer envtoken", cred.HeaderValue())

	t.Setenv(EnvHost, "Only.Example")
	t.Setenv(EnvScheme, "Basic")
	assert.False(t, env.Exists("other.example"))
	cred, err = env.Retrieve("only.example")
	require.NoError(t, err)
	assert.Equal(t, "Basic envtoken", cred.HeaderValue())

	assert.ErrorIs(t, env.Store(cred), ErrStoreUnavailable)
	assert.ErrorIs(t, env.Delete("only.example"), ErrStoreUnavailable)

	list, err := env.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestManagerUsesWildcardEnvironmentToken(t *testing.T) {
	t.Setenv(EnvToken, "wild")
	t.Setenv(EnvHost, "")

	specific := NewMemoryStore()
	require.NoError(t, specific.Store(&Credential{Host: "api.example", Scheme: "Bearer", Token: "specific"}))

	manager := NewManagerWithStores(specific, NewEnvironmentStore())

	header, ok := manager.Header("api.example")
	assert.True(t, ok)
	assert.Equal(t, "Bearer specific", header)

	header, ok = manager.Header("elsewhere.example")
	assert.True(t, ok)
	assert.Equal(t, "Bearer wild", header)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")
	store, err := NewEncryptedFileStoreWithPassphrase(path, "test_passphrase_123")
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Host: "a.example", Scheme: "Bearer", Token: "alpha"}))
	require.NoError(t, store.Store(&Credential{Host: "b.example", Scheme: "Bearer", Token: "beta"}))
	assert.True(t, store.Exists("a.example"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "alpha", "tokens are not stored in clear")

	reopened, err := NewEncryptedFileStoreWithPassphrase(path, "test_passphrase_123")
	require.NoError(t, err)
	cred, err := reopened.Retrieve("b.example")
	require.NoError(t, err)
	assert.Equal(t, "beta", cred.Token)

	wrong, err := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	require.NoError(t, err)
	_, err = wrong.Retrieve("a.example")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.example", list[0].Host)

	require.NoError(t, store.Delete("a.example"))
	assert.ErrorIs(t, store.Delete("a.example"), ErrCredentialsNotFound)
	require.NoError(t, store.Delete("b.example"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file removed with the last credential")

	_, err = store.Retrieve("a.example")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreFromEnvironment(t *testing.T) {
	t.Setenv(EnvPassphrase, "from-env")
	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", store.passphrase)

	_, err = NewEncryptedFileStoreWithPassphrase(filepath.Join(t.TempDir(), "x.enc"), "")
	assert.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Host: "k.example", Scheme: "Bearer", Token: "secret"}))
	require.NoError(t, store.Store(&Credential{Host: "j.example", Scheme: "Bearer", Token: "other"}))
	assert.True(t, store.Exists("k.example"))

	cred, err := store.Retrieve("k.example")
	require.NoError(t, err)
	assert.Equal(t, "secret", cred.Token)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "j.example", list[0].Host)

	require.NoError(t, store.Delete("k.example"))
	assert.ErrorIs(t, store.Delete("k.example"), ErrCredentialsNotFound)
	_, err = store.Retrieve("k.example")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	list, err = store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSanitize(t *testing.T) {
	cred := &Credential{Host: "h", Scheme: "Bearer", Token: "abcdefghijklmnop"}
	masked := Sanitize(cred)
	assert.Equal(t, "abcd...mnop", masked.Token)
	assert.Equal(t, "h", masked.Host)
	assert.Equal(t, "********", Sanitize(&Credential{Token: "short"}).Token)
	assert.Nil(t, Sanitize(nil))
}

func TestWriteStorageGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteStorageGuide(&buf)
	assert.Contains(t, buf.String(), EnvToken)
	assert.Contains(t, buf.String(), EnvPassphrase)
}
