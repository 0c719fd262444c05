// Package keyring provides secure credential storage.
// It uses the system keyring when available (the Windows Credential
// Manager on the target platform), falling back to an encrypted local
// file when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/scrypt"

	"github.com/BojanKomazec/IpSec/common"
)

// DefaultService is the identifier used in the system keyring.
const DefaultService = "ipsec-client"

const (
	saltSize       = 16
	keySize        = 32
	usernamePrefix = "user:"
)

// scrypt cost parameters for the local file key.
var (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Options configures a Store.
type Options struct {
	// Service names the credentials in the system keyring.
	Service string
	// Dir holds the fallback credentials file. Defaults to the config dir.
	Dir string
	// ForceLocal skips the system keyring.
	ForceLocal bool
}

// Store keeps dial passwords and user names per phonebook entry.
type Store struct {
	mu       sync.RWMutex
	service  string
	useLocal bool
	local    map[string]string
	file     string
	salt     []byte
	key      []byte
}

// New returns a Store, probing the system keyring first.
func New(opts Options) (*Store, error) {
	s := &Store{service: opts.Service}
	if s.service == "" {
		s.service = DefaultService
	}

	dir := opts.Dir
	if dir == "" {
		var err error
		if dir, err = common.GetConfigDir(); err != nil {
			return nil, err
		}
	}
	s.file = filepath.Join(dir, common.CredentialsFileName)

	if !opts.ForceLocal {
		testKey := s.service + "-test-init"
		if err := keyring.Set(s.service, testKey, "test"); err == nil {
			keyring.Delete(s.service, testKey)
			return s, nil
		}
		common.LogWarn("System keyring unavailable, using encrypted file %s", s.file)
	}

	if err := s.initLocal(); err != nil {
		return nil, err
	}
	return s, nil
}

// Local reports whether the encrypted file backend is in use.
func (s *Store) Local() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useLocal
}

func (s *Store) initLocal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.useLocal {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.file), 0700); err != nil {
		return fmt.Errorf("%w: %w", common.ErrCredentialStorage, err)
	}
	s.local = make(map[string]string)
	s.useLocal = true

	data, err := os.ReadFile(s.file)
	if errors.Is(err, os.ErrNotExist) {
		s.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
			return fmt.Errorf("%w: %w", common.ErrEncryption, err)
		}
		s.key, err = deriveKey(s.salt)
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrCredentialStorage, err)
	}

	plaintext, err := s.decrypt(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, &s.local); err != nil {
		return fmt.Errorf("%w: %w", common.ErrDecryption, err)
	}
	return nil
}

// deriveKey stretches the machine and user identity into the file key.
func deriveKey(salt []byte) ([]byte, error) {
	hostname, _ := os.Hostname()
	account := ""
	if u, err := user.Current(); err == nil {
		account = u.Uid
	}
	material := fmt.Sprintf("%s|%s|%s|%s", DefaultService, hostname, machineID(), account)

	key, err := scrypt.Key([]byte(material), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEncryption, err)
	}
	return key, nil
}

func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.local)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrCredentialStorage, err)
	}
	encrypted, err := s.encrypt(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.file, encrypted, 0600); err != nil {
		return fmt.Errorf("%w: %w", common.ErrCredentialStorage, err)
	}
	return nil
}

// encrypt returns base64(salt | nonce | AES-GCM ciphertext).
func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEncryption, err)
	}

	out := append([]byte(nil), s.salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(out)), nil
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryption, err)
	}
	if len(raw) < saltSize {
		return nil, fmt.Errorf("%w: credentials file too short", common.ErrDecryption)
	}

	s.salt = append([]byte(nil), raw[:saltSize]...)
	if s.key, err = deriveKey(s.salt); err != nil {
		return nil, err
	}
	gcm, err := newGCM(s.key)
	if err != nil {
		return nil, err
	}

	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrDecryption)
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryption, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEncryption, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEncryption, err)
	}
	return gcm, nil
}

func (s *Store) set(key, value string) error {
	if !s.Local() {
		err := keyring.Set(s.service, key, value)
		if err == nil {
			return nil
		}
		common.LogWarn("System keyring write failed, falling back to file: %v", err)
		if err := s.initLocal(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[key] = value
	return s.saveLocked()
}

func (s *Store) get(key string) (string, error) {
	if !s.Local() {
		value, err := keyring.Get(s.service, key)
		if err == nil {
			return value, nil
		}
		if errors.Is(err, keyring.ErrNotFound) {
			return "", common.ErrCredentialsNotFound
		}
		return "", fmt.Errorf("%w: %w", common.ErrCredentialStorage, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.local[key]
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return value, nil
}

func (s *Store) delete(key string) error {
	if !s.Local() {
		err := keyring.Delete(s.service, key)
		if errors.Is(err, keyring.ErrNotFound) {
			return common.ErrCredentialsNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrCredentialStorage, err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.local[key]; !ok {
		return common.ErrCredentialsNotFound
	}
	delete(s.local, key)
	return s.saveLocked()
}

// Store saves the dial password of a phonebook entry.
func (s *Store) Store(entryName, password string) error {
	if entryName == "" {
		return fmt.Errorf("%w: entry name cannot be empty", common.ErrInvalidArgument)
	}
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", common.ErrInvalidArgument)
	}
	return s.set(entryName, password)
}

// Get retrieves the dial password of a phonebook entry.
func (s *Store) Get(entryName string) (string, error) {
	if entryName == "" {
		return "", fmt.Errorf("%w: entry name cannot be empty", common.ErrInvalidArgument)
	}
	return s.get(entryName)
}

// Delete removes the password and user name of a phonebook entry.
func (s *Store) Delete(entryName string) error {
	if entryName == "" {
		return fmt.Errorf("%w: entry name cannot be empty", common.ErrInvalidArgument)
	}
	if err := s.delete(usernamePrefix + entryName); err != nil && !errors.Is(err, common.ErrCredentialsNotFound) {
		return err
	}
	return s.delete(entryName)
}

// Exists checks if a password is stored for a phonebook entry.
func (s *Store) Exists(entryName string) bool {
	_, err := s.Get(entryName)
	return err == nil
}

// StoreUsername remembers the dial user name of a phonebook entry.
func (s *Store) StoreUsername(entryName, username string) error {
	if entryName == "" || username == "" {
		return fmt.Errorf("%w: entry name and user name are required", common.ErrInvalidArgument)
	}
	return s.set(usernamePrefix+entryName, username)
}

// Username returns the remembered user name of a phonebook entry.
func (s *Store) Username(entryName string) (string, error) {
	return s.get(usernamePrefix + entryName)
}

// Clear removes all stored credentials.
func (s *Store) Clear() error {
	if !s.Local() {
		if err := keyring.DeleteAll(s.service); err != nil {
			return fmt.Errorf("%w: %w", common.ErrCredentialStorage, err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = make(map[string]string)
	return s.saveLocked()
}

var _ common.CredentialStore = (*Store)(nil)
