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
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// vaultVersion is the only vault layout this store reads and writes
	vaultVersion = 1
)

// ErrUnsupportedVault is returned for a vault file written in another layout
var ErrUnsupportedVault = errors.New("unsupported credential vault version")

// EncryptedFileStore implements CredentialStore over a vault file. Handles
// and timestamps are stored in the clear so accounts can be listed and
// removed; each account's email and password are sealed with AES-GCM under
// a PBKDF2-derived key, bound to the account's handle.
type EncryptedFileStore struct {
	filepath   string
	passphrase string

	mu sync.RWMutex

	keyMu sync.Mutex
	salt  []byte
	key   []byte
}

// vault is the on-disk layout
type vault struct {
	Version int                   `json:"version"`
	Salt    string                `json:"salt"`
	Entries map[string]vaultEntry `json:"accounts"`
}

// vaultEntry is one account, keyed in the vault by its normalized handle
type vaultEntry struct {
	Username     string    `json:"username"`
	LastModified time.Time `json:"last_modified"`
	Sealed       string    `json:"sealed"`
}

// secrets is the plaintext that gets sealed
type secrets struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// NewEncryptedFileStore creates a store backed by the vault at filePath.
// The file is created on the first Store.
func NewEncryptedFileStore(filePath string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(filePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	store := &EncryptedFileStore{
		filepath: filePath,
	}

	passphrase, err := store.getPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	store.passphrase = passphrase

	return store, nil
}

// normalizeHandle maps "@SigmaBot " and "sigmabot" to the same vault key
func normalizeHandle(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// Store seals the account's secrets and saves it under its handle
func (e *EncryptedFileStore) Store(account *Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if account == nil || normalizeHandle(account.Username) == "" {
		return ErrInvalidCredentials
	}

	v, err := e.load()
	if errors.Is(err, os.ErrNotExist) {
		v, err = e.newVault()
	}
	if err != nil {
		return err
	}

	handle := normalizeHandle(account.Username)
	sealed, err := e.seal(v, handle, secrets{Email: account.Email, Password: account.Password})
	if err != nil {
		return err
	}

	v.Entries[handle] = vaultEntry{
		Username:     account.Username,
		LastModified: account.LastModified,
		Sealed:       sealed,
	}
	return e.save(v)
}

// Retrieve opens the account stored under username's handle
func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	handle := normalizeHandle(username)
	if handle == "" {
		return nil, ErrInvalidCredentials
	}

	v, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCredentialsNotFound
		}
		return nil, err
	}

	entry, ok := v.Entries[handle]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return e.open(v, handle, entry)
}

// List opens every stored account
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*Account{}, nil
		}
		return nil, err
	}

	accounts := make([]*Account, 0, len(v.Entries))
	for handle, entry := range v.Entries {
		account, err := e.open(v, handle, entry)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes the account stored under username's handle. The vault file
// is removed with its last account.
func (e *EncryptedFileStore) Delete(username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	handle := normalizeHandle(username)
	if handle == "" {
		return ErrInvalidCredentials
	}

	v, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrCredentialsNotFound
		}
		return err
	}

	if _, ok := v.Entries[handle]; !ok {
		return ErrCredentialsNotFound
	}
	delete(v.Entries, handle)

	if len(v.Entries) == 0 {
		return os.Remove(e.filepath)
	}
	return e.save(v)
}

// Exists reports whether an account can be opened for username
func (e *EncryptedFileStore) Exists(username string) bool {
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}

// load reads the vault file and checks its version
func (e *EncryptedFileStore) load() (*vault, error) {
	content, err := os.ReadFile(e.filepath)
	if err != nil {
		return nil, err
	}

	var v vault
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("failed to parse credential vault: %w", err)
	}
	if v.Version != vaultVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVault, v.Version)
	}
	if v.Entries == nil {
		v.Entries = make(map[string]vaultEntry)
	}
	return &v, nil
}

func (e *EncryptedFileStore) newVault() (*vault, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &vault{
		Version: vaultVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Entries: make(map[string]vaultEntry),
	}, nil
}

// save writes the vault through a temp file and rename
func (e *EncryptedFileStore) save(v *vault) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential vault: %w", err)
	}

	tempFile := e.filepath + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return fmt.Errorf("failed to write credential vault: %w", err)
	}
	return os.Rename(tempFile, e.filepath)
}

// vaultKey derives the key for the vault's salt, reusing the last
// derivation while the salt is unchanged
func (e *EncryptedFileStore) vaultKey(v *vault) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(v.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	if e.key != nil && string(salt) == string(e.salt) {
		return e.key, nil
	}

	key := pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
	e.salt, e.key = salt, key
	return key, nil
}

// seal encrypts s with the handle as associated data, so a sealed value
// cannot be moved to another account's entry
func (e *EncryptedFileStore) seal(v *vault, handle string, s secrets) (string, error) {
	key, err := e.vaultKey(v)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode secrets: %w", err)
	}
	sealed, err := encrypt(plaintext, key, []byte(handle))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt secrets: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open decrypts entry back into an Account
func (e *EncryptedFileStore) open(v *vault, handle string, entry vaultEntry) (*Account, error) {
	key, err := e.vaultKey(v)
	if err != nil {
		return nil, err
	}
	sealed, err := base64.StdEncoding.DecodeString(entry.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secrets of %s: %w", entry.Username, err)
	}
	plaintext, err := decrypt(sealed, key, []byte(handle))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secrets of %s: %w", entry.Username, err)
	}

	var s secrets
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return nil, fmt.Errorf("failed to parse secrets of %s: %w", entry.Username, err)
	}
	return &Account{
		Username:     entry.Username,
		Email:        s.Email,
		Password:     s.Password,
		LastModified: entry.LastModified,
	}, nil
}

// PassphraseEnv overrides the generated passphrase of the encrypted store
const PassphraseEnv = "SIGMABOT_PASSPHRASE"

// getPassphrase returns the passphrase from the environment, or from a
// passphrase file beside the vault, generating one on first use
func (e *EncryptedFileStore) getPassphrase() (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	passphraseFile := filepath.Join(filepath.Dir(e.filepath), ".passphrase")
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

// encrypt seals plaintext with AES-GCM, prefixing the random nonce
func encrypt(plaintext, key, additional []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, additional), nil
}

// decrypt opens a value produced by encrypt
func decrypt(ciphertext, key, additional []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, additional)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
