package encryption

import (
	"fmt"

	"safeop/internal/config"
	"safeop/internal/safeop"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil when encryption is disabled.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (safeop.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("public_key_path and private_key_path required for age encryption")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
