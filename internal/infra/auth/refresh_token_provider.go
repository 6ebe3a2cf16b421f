package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"evently/config"
	"evently/internal/domain/entity"
	"evently/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const minRefreshTokenBytes = 16

// refreshTokenProvider issues opaque random refresh tokens.
// Only the SHA-256 digest of a token is ever persisted.
type refreshTokenProvider struct {
	byteLength int
	ttl        time.Duration
	now        func() time.Time
}

// NewRefreshTokenProvider builds a provider from the refreshToken config section.
func NewRefreshTokenProvider(cfg *config.Config) (service.RefreshTokenProvider, error) {
	if cfg.RefreshToken.ByteLength < minRefreshTokenBytes {
		return nil, errors.Errorf("refresh token must be at least %d bytes", minRefreshTokenBytes)
	}
	if cfg.RefreshToken.TTL <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}

	return &refreshTokenProvider{
		byteLength: cfg.RefreshToken.ByteLength,
		ttl:        cfg.RefreshToken.TTL,
		now:        time.Now,
	}, nil
}

func (p *refreshTokenProvider) GenerateToken(_ uuid.UUID) (*entity.IssuedRefreshToken, error) {
	buf := make([]byte, p.byteLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "failed to read random bytes")
	}

	return &entity.IssuedRefreshToken{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		ExpiresAt: p.now().Add(p.ttl),
	}, nil
}

func (p *refreshTokenProvider) HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}
