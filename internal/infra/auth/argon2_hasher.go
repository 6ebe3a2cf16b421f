package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"evently/config"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const argon2idPrefix = "$argon2id$"

// Upper bounds for parameters read back from stored hashes.
const (
	maxArgon2MemoryKiB = 1 << 20 // 1 GiB
	maxArgon2Time      = 32
	maxArgon2KeyLength = 128
)

// argon2Hasher hashes with argon2id and stores the PHC string form:
// $argon2id$v=19$m=<memory KiB>,t=<time>,p=<threads>$<salt>$<key>
type argon2Hasher struct {
	params config.Argon2Config
}

func newArgon2Hasher(params config.Argon2Config) *argon2Hasher {
	return &argon2Hasher{params: params}
}

func (h *argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "failed to generate salt")
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLength)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix,
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Check re-derives the key with the parameters stored in hash, so hashes made
// under older settings keep verifying.
func (h *argon2Hasher) Check(password, hash string) bool {
	decoded, err := decodeArgon2Hash(hash)
	if err != nil {
		return false
	}

	key := argon2.IDKey([]byte(password), decoded.salt, decoded.time, decoded.memory, decoded.threads, uint32(len(decoded.key)))

	return subtle.ConstantTimeCompare(key, decoded.key) == 1
}

type argon2Hash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func decodeArgon2Hash(encoded string) (*argon2Hash, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, errors.New("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, errors.Wrap(err, "invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.Errorf("unsupported argon2 version %d", version)
	}

	decoded := &argon2Hash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &decoded.memory, &decoded.time, &decoded.threads); err != nil {
		return nil, errors.Wrap(err, "invalid argon2 parameters")
	}

	var err error
	if decoded.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, errors.Wrap(err, "invalid argon2 salt")
	}
	if decoded.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, errors.Wrap(err, "invalid argon2 key")
	}
	if len(decoded.key) == 0 || len(decoded.key) > maxArgon2KeyLength {
		return nil, errors.Errorf("invalid argon2 key length %d", len(decoded.key))
	}
	if len(decoded.salt) == 0 {
		return nil, errors.New("empty argon2 salt")
	}

	// argon2.IDKey panics on zero time or threads and on too little memory
	switch {
	case decoded.threads == 0:
		return nil, errors.New("argon2 threads must be positive")
	case decoded.time == 0 || decoded.time > maxArgon2Time:
		return nil, errors.Errorf("argon2 time %d out of range", decoded.time)
	case decoded.memory < 8*uint32(decoded.threads) || decoded.memory > maxArgon2MemoryKiB:
		return nil, errors.Errorf("argon2 memory %d KiB out of range", decoded.memory)
	}

	return decoded, nil
}
