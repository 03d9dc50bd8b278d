package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// FileVault keeps the session in one AES-256-GCM sealed JSON record.
// It is the default outside macOS.
type FileVault struct {
	path string
	key  []byte
	now  func() time.Time
}

// sessionFile is the plaintext layout of the vault file.
type sessionFile struct {
	Session
	SavedAt time.Time `json:"saved_at"`
}

// NewFileVault creates a vault backed by $XDG_CONFIG_HOME/kgraph/vault.enc.
func NewFileVault() *FileVault {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return newFileVault(filepath.Join(dir, "kgraph", "vault.enc"), machineKey())
}

func newFileVault(path string, key []byte) *FileVault {
	return &FileVault{path: path, key: key, now: time.Now}
}

// machineKey ties the sealed file to this host and user.
func machineKey() []byte {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("kgraph-vault:%s:%s", hostname, username)))
	return sum[:]
}

// Path returns the vault file location.
func (f *FileVault) Path() string {
	return f.path
}

// Session returns the stored tokens and when they were last written.
// A missing file is an empty session.
func (f *FileVault) Session() (Session, time.Time, error) {
	rec, err := f.read()
	if err != nil {
		return Session{}, time.Time{}, err
	}
	return rec.Session, rec.SavedAt, nil
}

func (f *FileVault) Get(key string) (string, error) {
	rec, err := f.read()
	if err != nil {
		return "", err
	}
	slot, err := rec.field(key)
	if err != nil {
		return "", err
	}
	if *slot == "" {
		return "", notFound(key)
	}
	return *slot, nil
}

func (f *FileVault) Set(key, value string) error {
	return f.update(key, func(slot *string) error {
		*slot = value
		return nil
	})
}

func (f *FileVault) Delete(key string) error {
	return f.update(key, func(slot *string) error {
		if *slot == "" {
			return notFound(key)
		}
		*slot = ""
		return nil
	})
}

// update applies fn to one token and rewrites the file. Once both tokens are
// gone the file is removed.
func (f *FileVault) update(key string, fn func(slot *string) error) error {
	rec, err := f.read()
	if err != nil {
		return err
	}
	slot, err := rec.field(key)
	if err != nil {
		return err
	}
	if err := fn(slot); err != nil {
		return err
	}

	if rec.Session == (Session{}) {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "vault remove")
		}
		return nil
	}
	rec.SavedAt = f.now().UTC()
	return f.write(rec)
}

func (f *FileVault) read() (*sessionFile, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &sessionFile{}, nil
		}
		return nil, errors.Wrap(err, "vault read")
	}

	gcm, err := f.cipher()
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, errors.New("vault decrypt: ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "vault decrypt")
	}

	var rec sessionFile
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return nil, errors.Wrap(err, "vault parse")
	}
	return &rec, nil
}

func (f *FileVault) write(rec *sessionFile) error {
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "vault encode")
	}

	gcm, err := f.cipher()
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return errors.Wrap(err, "vault nonce")
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "vault dir")
	}
	return errors.Wrap(os.WriteFile(f.path, gcm.Seal(nonce, nonce, plaintext, nil), 0o600), "vault write")
}

func (f *FileVault) cipher() (cipher.AEAD, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, errors.Wrap(err, "vault key")
	}
	gcm, err := cipher.NewGCM(block)
	return gcm, errors.Wrap(err, "vault cipher")
}
