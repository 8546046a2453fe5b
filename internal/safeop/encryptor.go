package safeop

import "io"

// Encryptor encrypts artifacts at rest. Encryption needs only the public
// key; decryption needs the passphrase that protects the private key.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context for decrypting
	// artifacts during this invocation.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key files exist.
	IsConfigured() bool

	// Encrypted reports whether content starting with prefix was produced
	// by this encryptor. prefix may be shorter than the full header when the
	// artifact itself is short.
	Encrypted(prefix []byte) bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// PassphraseFunc obtains a passphrase on demand, e.g. by prompting.
type PassphraseFunc func() (string, error)
