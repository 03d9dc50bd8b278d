package vault

import (
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

const serviceName = "kgraph-tokens"

// errSecItemNotFound is the exit status of security(1) for a missing item.
const errSecItemNotFound = 44

// KeychainVault stores each token as a generic password in the macOS
// Keychain, under the kgraph-tokens service.
type KeychainVault struct {
	// security runs security(1) and returns its combined output.
	security func(args ...string) ([]byte, error)
}

// NewKeychain creates a vault backed by the login keychain.
func NewKeychain() *KeychainVault {
	return &KeychainVault{security: func(args ...string) ([]byte, error) {
		return exec.Command("security", args...).CombinedOutput()
	}}
}

// Set stores or replaces a token. -U updates the item in place.
func (k *KeychainVault) Set(key, value string) error {
	if _, err := (&Session{}).field(key); err != nil {
		return err
	}
	out, err := k.security("add-generic-password", "-s", serviceName, "-a", key, "-w", value, "-U")
	if err != nil {
		return errors.Wrapf(err, "keychain set %s: %s", key, strings.TrimSpace(string(out)))
	}
	return nil
}

func (k *KeychainVault) Get(key string) (string, error) {
	out, err := k.security("find-generic-password", "-s", serviceName, "-a", key, "-w")
	if err != nil {
		if missing(err, out) {
			return "", notFound(key)
		}
		return "", errors.Wrapf(err, "keychain get %s: %s", key, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (k *KeychainVault) Delete(key string) error {
	out, err := k.security("delete-generic-password", "-s", serviceName, "-a", key)
	if err != nil {
		if missing(err, out) {
			return notFound(key)
		}
		return errors.Wrapf(err, "keychain delete %s: %s", key, strings.TrimSpace(string(out)))
	}
	return nil
}

// missing reports whether a failed security(1) call means the item is absent.
func missing(err error, out []byte) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == errSecItemNotFound {
		return true
	}
	return strings.Contains(string(out), "could not be found")
}
