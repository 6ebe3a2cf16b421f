package auth

import (
	"strings"
	"time"

	"evently/config"
	"evently/internal/domain/entity"
	"evently/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const minSigningKeyLength = 32

// jwtService issues and validates HMAC-signed access tokens.
type jwtService struct {
	signingKey []byte
	method     jwt.SigningMethod
	issuer     string
	audience   string
	accessTTL  time.Duration
	now        func() time.Time
}

// NewJWTService is the constructor for jwtService.
// The signing key must be at least 32 bytes and the algorithm one of HS256, HS384 or HS512.
func NewJWTService(cfg *config.Config) (service.AccessTokenProvider, error) {
	if len(cfg.JWT.SigningKey) < minSigningKeyLength {
		return nil, errors.Errorf("jwt signing key must be at least %d bytes", minSigningKeyLength)
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		return nil, errors.New("jwt access token ttl must be positive")
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(cfg.JWT.Algorithm) {
	case "HS256", "":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, errors.Errorf("unsupported jwt algorithm %q", cfg.JWT.Algorithm)
	}

	return &jwtService{
		signingKey: []byte(cfg.JWT.SigningKey),
		method:     method,
		issuer:     cfg.JWT.Issuer,
		audience:   cfg.JWT.Audience,
		accessTTL:  cfg.JWT.AccessTokenTTL,
		now:        time.Now,
	}, nil
}

// GenerateToken signs an access token carrying the user's id, username and role.
func (s *jwtService) GenerateToken(user *entity.User) (*entity.AccessToken, error) {
	if user == nil {
		return nil, errors.New("user is required")
	}

	now := s.now()
	expiresAt := now.Add(s.accessTTL)

	claims := service.AccessClaims{
		Username: user.Username,
		Role:     user.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if s.issuer != "" {
		claims.Issuer = s.issuer
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.signingKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign access token")
	}

	return &entity.AccessToken{
		Value:     signed,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken verifies signature, algorithm, expiry and, when configured, issuer and audience.
func (s *jwtService) ValidateToken(tokenString string) (*service.AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &service.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "invalid access token")
	}
	if !token.Valid {
		return nil, errors.New("invalid access token")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, errors.Wrap(err, "invalid token subject")
	}

	return claims, nil
}
