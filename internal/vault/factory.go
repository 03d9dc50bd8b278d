package vault

import (
	"runtime"

	"github.com/pkg/errors"
)

// New returns the vault for the configured backend. "auto" picks the macOS
// Keychain on darwin and an AES-256-GCM encrypted file at
// $XDG_CONFIG_HOME/kgraph/vault.enc elsewhere.
func New(backend string) (Vault, error) {
	switch backend {
	case "", BackendAuto:
		if runtime.GOOS == "darwin" {
			return NewKeychain(), nil
		}
		return NewFileVault(), nil
	case BackendKeychain:
		if runtime.GOOS != "darwin" {
			return nil, errors.Errorf("keychain vault is only available on macOS, not %s", runtime.GOOS)
		}
		return NewKeychain(), nil
	case BackendFile:
		return NewFileVault(), nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Errorf("unknown vault backend %q", backend)
	}
}
