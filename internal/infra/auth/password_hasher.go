package auth

import (
	"strings"

	"evently/config"
	"evently/internal/domain/service"

	"github.com/pkg/errors"
)

// passwordHasher hashes new passwords with the configured algorithm and verifies
// stored hashes of any supported algorithm.
type passwordHasher struct {
	primary service.PasswordHasher
	argon2  *argon2Hasher
	bcrypt  *bcryptHasher
}

// NewPasswordHasher builds the hasher selected by auth.hasher.
func NewPasswordHasher(cfg *config.Config) (service.PasswordHasher, error) {
	h := &passwordHasher{
		argon2: newArgon2Hasher(cfg.Auth.Argon2),
		bcrypt: newBcryptHasher(cfg.Auth.BcryptCost),
	}

	switch strings.ToLower(cfg.Auth.Hasher) {
	case config.HasherArgon2id, "":
		if err := validateArgon2Params(cfg.Auth.Argon2); err != nil {
			return nil, err
		}
		h.primary = h.argon2
	case config.HasherBcrypt:
		h.primary = h.bcrypt
	default:
		return nil, errors.Errorf("unknown password hasher %q", cfg.Auth.Hasher)
	}

	return h, nil
}

// Hash generates a salted hash from a plaintext password.
func (h *passwordHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Check dispatches on the hash prefix.
func (h *passwordHasher) Check(password, hash string) bool {
	switch {
	case strings.HasPrefix(hash, argon2idPrefix):
		return h.argon2.Check(password, hash)
	case isBcryptHash(hash):
		return h.bcrypt.Check(password, hash)
	default:
		return false
	}
}

func validateArgon2Params(p config.Argon2Config) error {
	switch {
	case p.Time == 0 || p.Time > maxArgon2Time:
		return errors.Errorf("argon2 time must be between 1 and %d", maxArgon2Time)
	case p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB > maxArgon2MemoryKiB:
		return errors.Errorf("argon2 memory must be at least 8 KiB per thread and at most %d KiB", maxArgon2MemoryKiB)
	case p.Threads == 0:
		return errors.New("argon2 threads must be positive")
	case p.SaltLength < 8:
		return errors.New("argon2 salt must be at least 8 bytes")
	case p.KeyLength < 16 || p.KeyLength > maxArgon2KeyLength:
		return errors.Errorf("argon2 key must be between 16 and %d bytes", maxArgon2KeyLength)
	}

	return nil
}
