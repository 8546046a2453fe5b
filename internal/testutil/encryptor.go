package testutil

import (
	"safeop/internal/encryption"
)

// NewTestEncryptor creates a deterministic encryptor whose output is the
// plaintext behind a fixed header.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}

// Passphrase returns a PassphraseFunc that always yields p.
func Passphrase(p string) func() (string, error) {
	return func() (string, error) { return p, nil }
}
