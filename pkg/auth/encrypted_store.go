package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// EnvPassphrase overrides the generated passphrase file
	EnvPassphrase = "HTTPRETRY_PASSPHRASE"
)

// EncryptedFileStore implements CredentialStore using an AES-GCM encrypted
// file keyed by PBKDF2.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// fileEnvelope is the on-disk layout
type fileEnvelope struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedFileStore creates a store at filePath. The passphrase comes
// from HTTPRETRY_PASSPHRASE or a generated file next to the config.
func NewEncryptedFileStore(filePath string) (*EncryptedFileStore, error) {
	passphrase, err := loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return NewEncryptedFileStoreWithPassphrase(filePath, passphrase)
}

// NewEncryptedFileStoreWithPassphrase creates a store with an explicit passphrase
func NewEncryptedFileStoreWithPassphrase(filePath, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	dir := filepath.Dir(filePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return &EncryptedFileStore{path: filePath, passphrase: passphrase}, nil
}

// Store saves the credential to the encrypted file
func (e *EncryptedFileStore) Store(cred *Credential) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cred == nil || cred.Host == "" {
		return ErrInvalidCredentials
	}

	creds, salt, err := e.load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load existing data: %w", err)
	}
	if creds == nil {
		creds = make(map[string]Credential)
	}

	creds[cred.Host] = *cred
	return e.save(creds, salt)
}

// Retrieve gets the credential for host from the encrypted file
func (e *EncryptedFileStore) Retrieve(host string) (*Credential, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if host == "" {
		return nil, ErrInvalidCredentials
	}

	creds, _, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	cred, ok := creds[host]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &cred, nil
}

// List returns all stored credentials sorted by host
func (e *EncryptedFileStore) List() ([]*Credential, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	creds, _, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return []*Credential{}, nil
		}
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	out := make([]*Credential, 0, len(creds))
	for _, cred := range creds {
		c := cred
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out, nil
}

// Delete removes the credential for host; the file goes with the last one
func (e *EncryptedFileStore) Delete(host string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if host == "" {
		return ErrInvalidCredentials
	}

	creds, salt, err := e.load()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to load data: %w", err)
	}

	if _, ok := creds[host]; !ok {
		return ErrCredentialsNotFound
	}
	delete(creds, host)

	if len(creds) == 0 {
		return os.Remove(e.path)
	}
	return e.save(creds, salt)
}

// Exists checks if a credential exists for host
func (e *EncryptedFileStore) Exists(host string) bool {
	cred, err := e.Retrieve(host)
	return err == nil && cred != nil
}

// load reads and decrypts the file, returning its credentials and salt
func (e *EncryptedFileStore) load() (map[string]Credential, []byte, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(content, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to parse file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(envelope.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(envelope.Encrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plain, err := decrypt(sealed, e.key(salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	var creds map[string]Credential
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds, salt, nil
}

// save encrypts creds and replaces the file, generating a salt when none exists
func (e *EncryptedFileStore) save(creds map[string]Credential, salt []byte) error {
	if len(salt) == 0 {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	sealed, err := encrypt(plain, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	content, err := json.MarshalIndent(fileEnvelope{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal file data: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase reads HTTPRETRY_PASSPHRASE or the passphrase file, creating it on first use
func loadPassphrase() (string, error) {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return pass, nil
	}

	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	passphraseFile := filepath.Join(configDir, ".passphrase")

	if content, err := os.ReadFile(passphraseFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(passphraseFile, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

// encrypt encrypts data using AES-GCM
func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt decrypts data using AES-GCM
func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
