package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "evently/internal/delivery/context"
	"evently/internal/domain/entity"
	domainerrors "evently/internal/domain/errors"
	"evently/internal/domain/repository"
	"evently/internal/domain/service"
	"evently/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// refreshTokenService implements the RefreshTokenUsecase interface.
type refreshTokenService struct {
	repos    repository.RepositoryFactory
	provider service.RefreshTokenProvider
	logger   *slog.Logger
	now      func() time.Time
}

// RefreshTokenServiceParams holds dependencies for RefreshTokenService, injected by Fx.
type RefreshTokenServiceParams struct {
	fx.In

	Repos    repository.RepositoryFactory
	Provider service.RefreshTokenProvider
	Logger   *slog.Logger
}

// NewRefreshTokenService is the constructor for refreshTokenService.
func NewRefreshTokenService(params RefreshTokenServiceParams) usecase.RefreshTokenUsecase {
	return &refreshTokenService{
		repos:    params.Repos,
		provider: params.Provider,
		logger:   params.Logger,
		now:      time.Now,
	}
}

func (srv *refreshTokenService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *refreshTokenService) tokenRepo(repos repository.RepositoryFactory) repository.RefreshTokenRepository {
	if repos == nil {
		repos = srv.repos
	}

	return repos.RefreshTokenRepo()
}

// CreateRefreshToken issues and stores the first refresh token of a user.
func (srv *refreshTokenService) CreateRefreshToken(ctx context.Context, repos repository.RepositoryFactory, userID uuid.UUID) (*entity.IssuedRefreshToken, error) {
	repo := srv.tokenRepo(repos)

	_, err := repo.FindByUserID(ctx, userID, true)
	if err == nil {
		srv.log(ctx).Warn("Refresh token already exists", slog.Any("userID", userID))

		return nil, errors.WithStack(domainerrors.ErrRefreshTokenConflict)
	}
	if !errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return nil, errors.Wrap(err, "failed to look up refresh token")
	}

	issued, err := srv.provider.GenerateToken(userID)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrTokenIssueFailed, err.Error())
	}

	token := &entity.RefreshToken{
		UserID:    userID,
		TokenHash: srv.provider.HashToken(issued.Value),
		ExpiresAt: issued.ExpiresAt,
	}
	if err := repo.Create(ctx, token); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenExists) {
			return nil, errors.WithStack(domainerrors.ErrRefreshTokenConflict)
		}

		return nil, errors.Wrap(err, "failed to create refresh token")
	}

	srv.log(ctx).Debug("Refresh token created", slog.Any("userID", userID))

	return issued, nil
}

// UpdateRefreshToken replaces the user's stored token with newToken.
func (srv *refreshTokenService) UpdateRefreshToken(
	ctx context.Context,
	repos repository.RepositoryFactory,
	userID uuid.UUID,
	newToken *entity.IssuedRefreshToken,
	trackChanges bool,
) error {
	if newToken == nil || newToken.Value == "" {
		return errors.Wrap(domainerrors.ErrValidationFailed, "refresh token is required")
	}

	repo := srv.tokenRepo(repos)
	hash := srv.provider.HashToken(newToken.Value)

	existing, err := repo.FindByUserID(ctx, userID, trackChanges)
	switch {
	case err == nil:
		existing.TokenHash = hash
		existing.ExpiresAt = newToken.ExpiresAt

		return errors.Wrap(repo.Update(ctx, existing), "failed to rotate refresh token")

	case errors.Is(err, repository.ErrRefreshTokenNotFound):
		token := &entity.RefreshToken{
			UserID:    userID,
			TokenHash: hash,
			ExpiresAt: newToken.ExpiresAt,
		}
		err = repo.Create(ctx, token)
		if errors.Is(err, repository.ErrRefreshTokenExists) {
			// A concurrent call inserted first; overwrite its row.
			srv.log(ctx).Debug("Refresh token insert lost race, overwriting", slog.Any("userID", userID))

			return errors.Wrap(repo.Update(ctx, token), "failed to rotate refresh token")
		}

		return errors.Wrap(err, "failed to create refresh token")

	default:
		return errors.Wrap(err, "failed to look up refresh token")
	}
}

// ValidateRefreshToken resolves a raw token to its stored record.
func (srv *refreshTokenService) ValidateRefreshToken(ctx context.Context, value string) (*entity.RefreshToken, error) {
	if value == "" {
		return nil, errors.WithStack(domainerrors.ErrRefreshTokenInvalid)
	}

	token, err := srv.tokenRepo(nil).FindByTokenHash(ctx, srv.provider.HashToken(value))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, errors.WithStack(domainerrors.ErrRefreshTokenInvalid)
		}

		return nil, errors.Wrap(err, "failed to look up refresh token")
	}

	if token.IsExpired(srv.now()) {
		srv.log(ctx).Info("Expired refresh token presented", slog.Any("userID", token.UserID))

		return nil, errors.WithStack(domainerrors.ErrRefreshTokenInvalid)
	}

	return token, nil
}
