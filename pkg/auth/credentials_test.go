package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sigmabot/pkg/config"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Username: "sigmabot",
		Email:    "bot@example.com",
		Password: "correct-horse-battery",
	}

	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("sigmabot")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.Email != account.Email || retrieved.Password != account.Password {
		t.Errorf("Retrieved account mismatch: %+v", retrieved)
	}

	creds := retrieved.Credentials()
	if creds.Username != "sigmabot" || creds.Email != "bot@example.com" || creds.Password != "correct-horse-battery" {
		t.Errorf("Credentials conversion mismatch: %+v", creds)
	}

	if err := manager.Delete("sigmabot"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("sigmabot"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
	if err := manager.Delete("sigmabot"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound deleting twice, got %v", err)
	}
}

func TestStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	if err := manager.Store(&Account{Password: "x"}); err == nil {
		t.Error("Expected error for missing username")
	}
	if err := manager.Store(&Account{Username: "bot"}); err == nil {
		t.Error("Expected error for missing password")
	}
}

func TestStoreFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	if err := manager.Store(&Account{Username: "bot", Password: "pw"}); err != nil {
		t.Fatalf("Expected fallback store to succeed: %v", err)
	}
	if working.Count() != 1 {
		t.Error("Expected account in fallback store")
	}
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Username: "sigmabot", Email: "bot@example.com", Password: "correct-horse-battery"}
	sanitized := SanitizeAccount(account)

	if sanitized.Username != "sigmabot" {
		t.Error("Username should not be masked")
	}
	if sanitized.Password != "co...ry" {
		t.Errorf("Unexpected password mask: %s", sanitized.Password)
	}
	if sanitized.Email != "b***@example.com" {
		t.Errorf("Unexpected email mask: %s", sanitized.Email)
	}
	if SanitizeAccount(&Account{Password: "short"}).Password != "********" {
		t.Error("Short passwords should be fully masked")
	}
	if SanitizeAccount(nil) != nil {
		t.Error("Expected nil for nil account")
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	account := &Account{Username: "encrypted_user", Email: "enc@example.com", Password: "encrypted_password"}
	if err := store.Store(account); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted_user")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Password != account.Password {
		t.Errorf("Password mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("encrypted_password")) || bytes.Contains(content, []byte("enc@example.com")) {
		t.Error("File contains plaintext credentials")
	}

	t.Setenv(PassphraseEnv, "wrong passphrase")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("encrypted_user"); err == nil {
		t.Error("Expected decryption failure with the wrong passphrase")
	}

	t.Setenv(PassphraseEnv, "test_passphrase_123")
	if err := store.Delete("encrypted_user"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file removed after last account deleted")
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Account{Username: "bot", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	if err != nil {
		t.Fatalf("Expected passphrase file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 passphrase file, got %v", info.Mode().Perm())
	}

	reopened, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Exists("bot") {
		t.Error("Expected reopened store to decrypt with the saved passphrase")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvUsername, "env_user")
	t.Setenv(EnvEmail, "env@example.com")
	t.Setenv(EnvPassword, "env_password")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if account.Username != "env_user" || account.Email != "env@example.com" || account.Password != "env_password" {
		t.Errorf("Unexpected environment account: %+v", account)
	}

	if _, err := store.Retrieve("someone_else"); err != ErrCredentialsNotFound {
		t.Error("Expected ErrCredentialsNotFound for a different username")
	}
	if err := store.Store(&Account{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}

	t.Setenv(EnvPassword, "")
	if store.Exists("env_user") {
		t.Error("Expected no account without a password")
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")

	manager, _ := NewMockManager()
	manager.stores = append(manager.stores, NewEnvironmentStore())
	if err := manager.Store(&Account{Username: "stored", Email: "s@example.com", Password: "stored_pw"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.PlatformConfig{}
	if err := manager.Resolve(&cfg); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Username != "stored" || cfg.Password != "stored_pw" || cfg.Email != "s@example.com" {
		t.Errorf("Unexpected resolved config: %+v", cfg)
	}

	cfg = config.PlatformConfig{Username: "stored", Password: "explicit"}
	if err := manager.Resolve(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Password != "explicit" {
		t.Error("Explicit password must win")
	}

	cfg = config.PlatformConfig{Username: "missing"}
	if err := manager.Resolve(&cfg); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestManagerWithEncryptedStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_real_manager")

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}
	manager := NewManagerWithStores(encryptedStore)

	for _, name := range []string{"zeta", "alpha"} {
		if err := manager.Store(&Account{Username: name, Password: "pw_" + name}); err != nil {
			t.Fatalf("Failed to store %s: %v", name, err)
		}
	}

	accounts, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list accounts: %v", err)
	}
	if len(accounts) != 2 || accounts[0].Username != "alpha" {
		t.Errorf("Expected sorted accounts, got %d", len(accounts))
	}

	def, err := manager.RetrieveDefault()
	if err != nil || def.Username != "alpha" {
		t.Errorf("Expected alpha as default, got %v, %v", def, err)
	}
}

func TestMockStoreErrorInjection(t *testing.T) {
	store := NewMockStore()
	store.ListError = errors.New("injected error")

	if _, err := store.List(); err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func TestEncryptedFileStoreKeysByHandle(t *testing.T) {
	t.Setenv(PassphraseEnv, "handle_passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Account{Username: "@SigmaBot", Email: "bot@example.com", Password: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Account{Username: "sigmabot", Password: "second"}); err != nil {
		t.Fatal(err)
	}

	accounts, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 {
		t.Fatalf("Expected one account per handle, got %d", len(accounts))
	}

	account, err := store.Retrieve(" @SIGMABOT")
	if err != nil {
		t.Fatalf("Expected lookup by handle to succeed: %v", err)
	}
	if account.Password != "second" || account.Username != "sigmabot" {
		t.Errorf("Unexpected account: %+v", account)
	}

	if err := store.Store(&Account{Username: "@", Password: "pw"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for an empty handle, got %v", err)
	}
}

func readVault(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]interface{}
	if err := json.Unmarshal(content, &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func writeVault(t *testing.T, path string, v map[string]interface{}) {
	t.Helper()
	content, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestEncryptedFileStoreSealsOnlySecrets(t *testing.T) {
	t.Setenv(PassphraseEnv, "seal_passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"alice", "bob"} {
		if err := store.Store(&Account{Username: name, Email: name + "@example.com", Password: "pw_" + name}); err != nil {
			t.Fatal(err)
		}
	}

	v := readVault(t, path)
	if v["version"] != float64(1) {
		t.Errorf("Expected version 1, got %v", v["version"])
	}
	entries := v["accounts"].(map[string]interface{})
	alice := entries["alice"].(map[string]interface{})
	if alice["username"] != "alice" {
		t.Errorf("Expected handle in the clear, got %v", alice["username"])
	}
	if _, ok := alice["password"]; ok {
		t.Error("Password must only appear sealed")
	}

	// A sealed value copied onto another handle must not open
	bob := entries["bob"].(map[string]interface{})
	bob["sealed"] = alice["sealed"]
	writeVault(t, path, v)

	if _, err := store.Retrieve("bob"); err == nil {
		t.Error("Expected sealed secrets to be bound to their handle")
	}
	if account, err := store.Retrieve("alice"); err != nil || account.Password != "pw_alice" {
		t.Errorf("Expected alice to still open, got %+v, %v", account, err)
	}
}

func TestEncryptedFileStoreRejectsUnknownVersion(t *testing.T) {
	t.Setenv(PassphraseEnv, "version_passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Account{Username: "bot", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	v := readVault(t, path)
	v["version"] = 2
	writeVault(t, path, v)

	if _, err := store.Retrieve("bot"); !errors.Is(err, ErrUnsupportedVault) {
		t.Errorf("Expected ErrUnsupportedVault, got %v", err)
	}
	if err := store.Store(&Account{Username: "other", Password: "pw"}); !errors.Is(err, ErrUnsupportedVault) {
		t.Errorf("Expected Store to refuse overwriting an unknown vault, got %v", err)
	}
}
