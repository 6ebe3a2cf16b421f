// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"
	"sync"
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

// userService implements the UserUsecase interface.
type userService struct {
	txManager       repository.TransactionManager
	userRepo        repository.UserRepository
	refreshTokenSvc usecase.RefreshTokenUsecase
	hasher          service.PasswordHasher
	accessTokens    service.AccessTokenProvider
	refreshTokens   service.RefreshTokenProvider
	publisher       service.EventPublisher
	logger          *slog.Logger
	now             func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

// dummyPassword is hashed once and checked against on unknown usernames.
const dummyPassword = "evently-unknown-user-placeholder"

// UserServiceParams holds dependencies for UserService, injected by Fx.
type UserServiceParams struct {
	fx.In

	TxManager       repository.TransactionManager
	UserRepo        repository.UserRepository
	RefreshTokenSvc usecase.RefreshTokenUsecase
	Hasher          service.PasswordHasher
	AccessTokens    service.AccessTokenProvider
	RefreshTokens   service.RefreshTokenProvider
	Publisher       service.EventPublisher `optional:"true"`
	Logger          *slog.Logger
}

// NewUserService is the constructor for userService. It receives all dependencies as interfaces.
func NewUserService(params UserServiceParams) usecase.UserUsecase {
	return &userService{
		txManager:       params.TxManager,
		userRepo:        params.UserRepo,
		refreshTokenSvc: params.RefreshTokenSvc,
		hasher:          params.Hasher,
		accessTokens:    params.AccessTokens,
		refreshTokens:   params.RefreshTokens,
		publisher:       params.Publisher,
		logger:          params.Logger,
		now:             time.Now,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *userService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates the user and its initial refresh token in one transaction.
func (srv *userService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	if input == nil || strings.TrimSpace(input.Username) == "" || input.Password == "" {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed, "username and password are required")
	}

	username := strings.TrimSpace(input.Username)
	srv.log(ctx).Info("Starting registration", slog.String("username", username))

	_, err := srv.userRepo.FindByUsername(ctx, username, false)
	if err == nil {
		srv.log(ctx).Warn("Username already taken", slog.String("username", username))

		return nil, errors.WithStack(domainerrors.ErrUserAlreadyExists)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(err, "failed to look up username")
	}

	newUser, err := srv.createUser(ctx, input, entity.RoleUser)
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Registration completed", slog.Any("userID", newUser.ID))
	srv.publish(ctx, service.AuthEventUserRegistered, newUser)

	registered := *newUser
	registered.PasswordHash = ""

	return &usecase.RegisterOutput{User: &registered}, nil
}

// EnsureAdmin creates an admin account from input unless the username is already taken.
// An existing account is returned as is; its role and password are left untouched.
func (srv *userService) EnsureAdmin(ctx context.Context, input *usecase.RegisterInput) (*entity.User, error) {
	if input == nil || strings.TrimSpace(input.Username) == "" || input.Password == "" {
		return nil, errors.Wrap(domainerrors.ErrValidationFailed, "admin username and password are required")
	}

	username := strings.TrimSpace(input.Username)

	existing, err := srv.userRepo.FindByUsername(ctx, username, false)
	if err == nil {
		return srv.existingAdmin(ctx, existing), nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(err, "failed to look up admin username")
	}

	admin, err := srv.createUser(ctx, input, entity.RoleAdmin)
	if errors.Is(err, domainerrors.ErrUserAlreadyExists) {
		// another instance seeded it first
		existing, findErr := srv.userRepo.FindByUsername(ctx, username, true)
		if findErr != nil {
			return nil, errors.Wrap(findErr, "failed to reload admin after concurrent creation")
		}

		return srv.existingAdmin(ctx, existing), nil
	}
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Bootstrap admin created", slog.Any("userID", admin.ID))
	srv.publish(ctx, service.AuthEventUserRegistered, admin)

	created := *admin
	created.PasswordHash = ""

	return &created, nil
}

func (srv *userService) existingAdmin(ctx context.Context, user *entity.User) *entity.User {
	if user.Role != entity.RoleAdmin {
		srv.log(ctx).Warn("Bootstrap admin username belongs to a non-admin account",
			slog.String("username", user.Username), slog.String("role", user.Role.String()))
	} else {
		srv.log(ctx).Info("Bootstrap admin already present", slog.Any("userID", user.ID))
	}

	found := *user
	found.PasswordHash = ""

	return &found
}

// createUser hashes the password and stores the user with its initial refresh token in one transaction.
func (srv *userService) createUser(ctx context.Context, input *usecase.RegisterInput, role entity.Role) (*entity.User, error) {
	username := strings.TrimSpace(input.Username)

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password", slog.Any("error", err))

		return nil, errors.WithStack(domainerrors.ErrPasswordHashFailed)
	}

	newUser := newUserFromInput(input, hashedPassword, role)

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.UserRepo().Create(ctx, newUser); err != nil {
			return errors.Wrap(err, "failed to create user")
		}

		if _, err := srv.refreshTokenSvc.CreateRefreshToken(ctx, repoFactory, newUser.ID); err != nil {
			return errors.Wrap(err, "failed to create initial refresh token")
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrUserAlreadyExists) {
			srv.log(ctx).Warn("Username taken by concurrent registration", slog.String("username", username))
		} else {
			srv.log(ctx).Error("Failed to execute user creation transaction", slog.String("username", username), slog.Any("error", err))
		}

		return nil, err
	}

	return newUser, nil
}

// Login authenticates the user and rotates the stored refresh token.
func (srv *userService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	if input == nil {
		return nil, errors.WithStack(domainerrors.ErrInvalidCredentials)
	}

	username := strings.TrimSpace(input.Username)

	user, err := srv.userRepo.FindByUsername(ctx, username, false)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Spend the same hashing work as a wrong password
			srv.hasher.Check(input.Password, srv.unknownUserHash())
			srv.log(ctx).Info("Login failed: unknown username", slog.String("username", username))

			return nil, errors.WithStack(domainerrors.ErrInvalidCredentials)
		}

		return nil, errors.Wrap(err, "failed to look up user")
	}

	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.log(ctx).Info("Login failed: password mismatch", slog.Any("userID", user.ID))

		return nil, errors.WithStack(domainerrors.ErrInvalidCredentials)
	}

	output, err := srv.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("User logged in", slog.Any("userID", user.ID))
	srv.publish(ctx, service.AuthEventUserLoggedIn, user)

	return output, nil
}

// unknownUserHash returns a hash made with the configured algorithm and cost.
func (srv *userService) unknownUserHash() string {
	srv.dummyHashOnce.Do(func() {
		hash, err := srv.hasher.Hash(dummyPassword)
		if err != nil {
			srv.logger.Error("Failed to prepare unknown-user hash", slog.Any("error", err))

			return
		}
		srv.dummyHash = hash
	})

	return srv.dummyHash
}

// RefreshTokens validates the presented refresh token and rotates the pair.
func (srv *userService) RefreshTokens(ctx context.Context, refreshToken string) (*usecase.LoginOutput, error) {
	stored, err := srv.refreshTokenSvc.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := srv.userRepo.FindByID(ctx, stored.UserID, false)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.WithStack(domainerrors.ErrRefreshTokenInvalid)
		}

		return nil, errors.Wrap(err, "failed to load token owner")
	}

	output, err := srv.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Debug("Token pair refreshed", slog.Any("userID", user.ID))
	srv.publish(ctx, service.AuthEventTokenRefreshed, user)

	return output, nil
}

// issueTokens signs an access token, generates a refresh token and stores the latter.
func (srv *userService) issueTokens(ctx context.Context, user *entity.User) (*usecase.LoginOutput, error) {
	accessToken, err := srv.accessTokens.GenerateToken(user)
	if err != nil {
		srv.log(ctx).Error("Failed to sign access token", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, errors.WithStack(domainerrors.ErrTokenIssueFailed)
	}

	refreshToken, err := srv.refreshTokens.GenerateToken(user.ID)
	if err != nil {
		srv.log(ctx).Error("Failed to generate refresh token", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, errors.WithStack(domainerrors.ErrTokenIssueFailed)
	}

	if err := srv.refreshTokenSvc.UpdateRefreshToken(ctx, nil, user.ID, refreshToken, true); err != nil {
		return nil, errors.Wrap(err, "failed to store refresh token")
	}

	return &usecase.LoginOutput{
		AccessToken:           accessToken.Value,
		AccessTokenExpiresAt:  accessToken.ExpiresAt,
		RefreshToken:          refreshToken.Value,
		RefreshTokenExpiresAt: refreshToken.ExpiresAt,
		User:                  user,
	}, nil
}

// GrantRole changes the role of an existing user.
func (srv *userService) GrantRole(ctx context.Context, userID uuid.UUID, roleName string) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID, true)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.WithStack(domainerrors.ErrUserNotFound)
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	role, err := entity.ParseRole(roleName)
	if err != nil {
		srv.log(ctx).Info("Rejected unknown role", slog.String("role", roleName))

		return nil, errors.Wrap(domainerrors.ErrInvalidRole, err.Error())
	}

	user.Role = role
	if err := srv.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.WithStack(domainerrors.ErrUserNotFound)
		}

		return nil, errors.Wrap(err, "failed to update user role")
	}

	srv.log(ctx).Info("Role granted", slog.Any("userID", user.ID), slog.String("role", role.String()))
	srv.publish(ctx, service.AuthEventRoleGranted, user)

	return user, nil
}

// GetUserByID retrieves a single user.
func (srv *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID, false)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.WithStack(domainerrors.ErrUserNotFound)
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	return user, nil
}

// GetAllUsers returns one page of users.
func (srv *userService) GetAllUsers(ctx context.Context, paging entity.Paging) (*entity.UserPage, error) {
	paging = paging.Normalize()

	users, total, err := srv.userRepo.FindAll(ctx, paging, false)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}

	return &entity.UserPage{
		Users: users,
		Page:  paging.Page,
		Size:  paging.Size,
		Total: total,
	}, nil
}

// publish sends an auth event. Failures are logged and never fail the caller.
func (srv *userService) publish(ctx context.Context, eventType service.AuthEventType, user *entity.User) {
	if srv.publisher == nil {
		return
	}

	event := &service.AuthEvent{
		RequestID:  deliverycontext.GetRequestIDFromContext(ctx),
		Type:       eventType,
		UserID:     user.ID.String(),
		Username:   user.Username,
		Role:       user.Role.String(),
		OccurredAt: srv.now().UTC(),
	}
	if err := srv.publisher.PublishAuthEvent(ctx, event); err != nil {
		srv.log(ctx).Warn("Failed to publish auth event",
			slog.String("type", string(eventType)),
			slog.Any("userID", user.ID),
			slog.Any("error", err),
		)
	}
}

// newUserFromInput maps the registration DTO onto a new user entity.
func newUserFromInput(input *usecase.RegisterInput, passwordHash string, role entity.Role) *entity.User {
	return &entity.User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: passwordHash,
		Role:         role,
	}
}
