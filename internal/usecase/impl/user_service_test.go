package impl

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"evently/internal/domain/entity"
	domainerrors "evently/internal/domain/errors"
	"evently/internal/domain/repository"
	"evently/internal/domain/service"
	"evently/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// userServiceFixtures holds all test dependencies for user service tests.
type userServiceFixtures struct {
	service    usecase.UserUsecase
	refreshSvc usecase.RefreshTokenUsecase
	store      *memStore
	providers  testProviders
	publisher  *mockPublisher
}

func createTestUserService(t *testing.T) userServiceFixtures {
	t.Helper()

	store := newMemStore()
	providers := newTestProviders(t)
	logger := newDiscardLogger()

	publisher := &mockPublisher{}
	publisher.On("PublishAuthEvent", mock.Anything, mock.Anything).Return(nil).Maybe()

	refreshSvc := NewRefreshTokenService(RefreshTokenServiceParams{
		Repos:    store,
		Provider: providers.refresh,
		Logger:   logger,
	})

	svc := NewUserService(UserServiceParams{
		TxManager:       &memTxManager{store: store},
		UserRepo:        store.UserRepo(),
		RefreshTokenSvc: refreshSvc,
		Hasher:          providers.hasher,
		AccessTokens:    providers.access,
		RefreshTokens:   providers.refresh,
		Publisher:       publisher,
		Logger:          logger,
	})

	return userServiceFixtures{
		service:    svc,
		refreshSvc: refreshSvc,
		store:      store,
		providers:  providers,
		publisher:  publisher,
	}
}

func (f userServiceFixtures) register(t *testing.T, username, password string) *entity.User {
	t.Helper()

	output, err := f.service.Register(context.Background(), &usecase.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)

	return output.User
}

func TestUserService_Register_Success(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()

	output, err := fx.service.Register(ctx, &usecase.RegisterInput{
		Username: "alice",
		Email:    "a@x.com",
		Password: "Pwd123!",
	})
	require.NoError(t, err)

	user := output.User
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, entity.RoleUser, user.Role)
	assert.Empty(t, user.PasswordHash)

	stored, err := fx.store.UserRepo().FindByID(ctx, user.ID, false)
	require.NoError(t, err)
	assert.NotEqual(t, "Pwd123!", stored.PasswordHash)
	assert.True(t, fx.providers.hasher.Check("Pwd123!", stored.PasswordHash))

	token, ok := fx.store.tokenFor(user.ID)
	require.True(t, ok)
	assert.True(t, token.ExpiresAt.After(time.Now()))

	fx.publisher.AssertCalled(t, "PublishAuthEvent", mock.Anything, eventOfType(service.AuthEventUserRegistered))
}

func TestUserService_Register_DuplicateUsername(t *testing.T) {
	fx := createTestUserService(t)
	fx.register(t, "alice", "Pwd123!")

	_, err := fx.service.Register(context.Background(), &usecase.RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "different",
	})

	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)
	assert.Equal(t, 1, fx.store.userCount())
}

// staleLookupUserRepo misses every username lookup, like a request that lost the
// race against a concurrent registration.
type staleLookupUserRepo struct {
	repository.UserRepository
}

func (staleLookupUserRepo) FindByUsername(context.Context, string, bool) (*entity.User, error) {
	return nil, repository.ErrUserNotFound
}

func TestUserService_Register_ConcurrentDuplicateSurfacesAsAlreadyExists(t *testing.T) {
	fx := createTestUserService(t)
	fx.register(t, "alice", "Pwd123!")

	svc := fx.service.(*userService)
	svc.userRepo = staleLookupUserRepo{UserRepository: fx.store.UserRepo()}

	_, err := svc.Register(context.Background(), &usecase.RegisterInput{
		Username: "alice",
		Email:    "a2@x.com",
		Password: "Pwd123!",
	})

	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)
	assert.Equal(t, 1, fx.store.userCount())
}

func TestUserService_Register_RollsBackWhenTokenCreationFails(t *testing.T) {
	fx := createTestUserService(t)
	fx.store.failTokenCreate = errors.New("disk full")

	_, err := fx.service.Register(context.Background(), &usecase.RegisterInput{
		Username: "alice",
		Email:    "a@x.com",
		Password: "Pwd123!",
	})

	assert.Error(t, err)
	assert.Equal(t, 0, fx.store.userCount())
}

func TestUserService_Register_Validation(t *testing.T) {
	fx := createTestUserService(t)

	inputs := []*usecase.RegisterInput{
		nil,
		{Username: "", Password: "Pwd123!"},
		{Username: "   ", Password: "Pwd123!"},
		{Username: "alice", Password: ""},
	}
	for _, input := range inputs {
		_, err := fx.service.Register(context.Background(), input)
		assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	}
}

func TestUserService_Login_Success(t *testing.T) {
	fx := createTestUserService(t)
	user := fx.register(t, "alice", "Pwd123!")

	output, err := fx.service.Login(context.Background(), &usecase.LoginInput{
		Username: "alice",
		Password: "Pwd123!",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, output.AccessToken)
	assert.NotEmpty(t, output.RefreshToken)
	assert.True(t, output.RefreshTokenExpiresAt.After(time.Now()))
	assert.True(t, output.AccessTokenExpiresAt.After(time.Now()))
	assert.Equal(t, user.ID, output.User.ID)

	claims, err := fx.providers.access.ValidateToken(output.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "user", claims.Role)

	stored, ok := fx.store.tokenFor(user.ID)
	require.True(t, ok)
	assert.Equal(t, fx.providers.refresh.HashToken(output.RefreshToken), stored.TokenHash)

	fx.publisher.AssertCalled(t, "PublishAuthEvent", mock.Anything, eventOfType(service.AuthEventUserLoggedIn))
}

func TestUserService_Login_WrongPassword(t *testing.T) {
	fx := createTestUserService(t)
	fx.register(t, "alice", "Pwd123!")

	_, err := fx.service.Login(context.Background(), &usecase.LoginInput{
		Username: "alice",
		Password: "wrong",
	})

	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestUserService_Login_UnknownUserIsIndistinguishable(t *testing.T) {
	fx := createTestUserService(t)
	fx.register(t, "alice", "Pwd123!")
	ctx := context.Background()

	_, unknownErr := fx.service.Login(ctx, &usecase.LoginInput{Username: "nonexistent", Password: "anything"})
	_, wrongErr := fx.service.Login(ctx, &usecase.LoginInput{Username: "alice", Password: "anything"})

	require.ErrorIs(t, unknownErr, domainerrors.ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	var unknownApp, wrongApp domainerrors.AppError
	require.True(t, errors.As(unknownErr, &unknownApp))
	require.True(t, errors.As(wrongErr, &wrongApp))
	assert.Equal(t, unknownApp.HTTPCode(), wrongApp.HTTPCode())
	assert.Equal(t, unknownApp.ErrorCode(), wrongApp.ErrorCode())
	assert.Equal(t, unknownApp.Message(), wrongApp.Message())
}

// countingHasher records how often the wrapped hasher does real work.
type countingHasher struct {
	service.PasswordHasher
	hashes atomic.Int32
	checks atomic.Int32
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes.Add(1)

	return h.PasswordHasher.Hash(password)
}

func (h *countingHasher) Check(password, hash string) bool {
	h.checks.Add(1)

	return h.PasswordHasher.Check(password, hash)
}

func TestUserService_Login_UnknownUserStillVerifiesPassword(t *testing.T) {
	fx := createTestUserService(t)
	fx.register(t, "alice", "Pwd123!")
	ctx := context.Background()

	counting := &countingHasher{PasswordHasher: fx.providers.hasher}
	fx.service.(*userService).hasher = counting

	_, err := fx.service.Login(ctx, &usecase.LoginInput{Username: "nonexistent", Password: "Pwd123!"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, int32(1), counting.checks.Load())
	assert.Equal(t, int32(1), counting.hashes.Load())

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Username: "ghost", Password: "evently-unknown-user-placeholder"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, int32(2), counting.checks.Load())
	assert.Equal(t, int32(1), counting.hashes.Load(), "placeholder hash is computed once")

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	assert.Equal(t, int32(3), counting.checks.Load())
}

func TestUserService_Login_RotatesRefreshToken(t *testing.T) {
	fx := createTestUserService(t)
	user := fx.register(t, "alice", "Pwd123!")
	ctx := context.Background()
	input := &usecase.LoginInput{Username: "alice", Password: "Pwd123!"}

	first, err := fx.service.Login(ctx, input)
	require.NoError(t, err)
	second, err := fx.service.Login(ctx, input)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	stored, ok := fx.store.tokenFor(user.ID)
	require.True(t, ok)
	assert.Equal(t, fx.providers.refresh.HashToken(second.RefreshToken), stored.TokenHash)

	_, err = fx.refreshSvc.ValidateRefreshToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)

	_, err = fx.refreshSvc.ValidateRefreshToken(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestUserService_Login_PublishFailureIsIgnored(t *testing.T) {
	fx := createTestUserService(t)
	fx.register(t, "alice", "Pwd123!")

	publisher := &mockPublisher{}
	publisher.On("PublishAuthEvent", mock.Anything, mock.Anything).Return(errors.New("bus down"))
	fx.service.(*userService).publisher = publisher

	output, err := fx.service.Login(context.Background(), &usecase.LoginInput{Username: "alice", Password: "Pwd123!"})
	require.NoError(t, err)
	assert.NotEmpty(t, output.AccessToken)
	publisher.AssertNumberOfCalls(t, "PublishAuthEvent", 1)
}

func TestUserService_RefreshTokens(t *testing.T) {
	fx := createTestUserService(t)
	user := fx.register(t, "alice", "Pwd123!")
	ctx := context.Background()

	login, err := fx.service.Login(ctx, &usecase.LoginInput{Username: "alice", Password: "Pwd123!"})
	require.NoError(t, err)

	refreshed, err := fx.service.RefreshTokens(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshed.User.ID)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The presented token is consumed by the rotation
	_, err = fx.service.RefreshTokens(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)

	_, err = fx.service.RefreshTokens(ctx, "")
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)

	fx.publisher.AssertCalled(t, "PublishAuthEvent", mock.Anything, eventOfType(service.AuthEventTokenRefreshed))
}

func TestUserService_GrantRole(t *testing.T) {
	fx := createTestUserService(t)
	user := fx.register(t, "alice", "Pwd123!")
	ctx := context.Background()

	updated, err := fx.service.GrantRole(ctx, user.ID, "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, updated.Role)

	stored, err := fx.service.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, stored.Role)

	fx.publisher.AssertCalled(t, "PublishAuthEvent", mock.Anything, eventOfType(service.AuthEventRoleGranted))
}

func TestUserService_GrantRole_InvalidRole(t *testing.T) {
	fx := createTestUserService(t)
	user := fx.register(t, "alice", "Pwd123!")
	ctx := context.Background()

	_, err := fx.service.GrantRole(ctx, user.ID, "superuser")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRole)

	stored, err := fx.service.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, stored.Role)
}

func TestUserService_GrantRole_UserNotFound(t *testing.T) {
	fx := createTestUserService(t)

	_, err := fx.service.GrantRole(context.Background(), uuid.New(), "user")
	assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
}

func TestUserService_GetUserByID_NotFound(t *testing.T) {
	fx := createTestUserService(t)

	_, err := fx.service.GetUserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
}

func TestUserService_GetAllUsers(t *testing.T) {
	fx := createTestUserService(t)
	for _, name := range []string{"carol", "alice", "bob"} {
		fx.register(t, name, "Pwd123!")
	}

	page, err := fx.service.GetAllUsers(context.Background(), entity.Paging{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Size)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "alice", page.Users[0].Username)
	assert.Equal(t, "bob", page.Users[1].Username)

	page, err = fx.service.GetAllUsers(context.Background(), entity.Paging{Page: 0, Size: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, entity.MaxPageSize, page.Size)
	assert.Len(t, page.Users, 3)

	page, err = fx.service.GetAllUsers(context.Background(), entity.Paging{Page: math.MaxInt, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, entity.MaxPage, page.Page)
	assert.Equal(t, int64(3), page.Total)
	assert.Empty(t, page.Users)
}

func TestUserService_EnsureAdmin_CreatesAdmin(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()

	admin, err := fx.service.EnsureAdmin(ctx, &usecase.RegisterInput{
		Username: " root ",
		Email:    "root@example.com",
		Password: "Adm1n!",
	})
	require.NoError(t, err)
	assert.Equal(t, "root", admin.Username)
	assert.Equal(t, entity.RoleAdmin, admin.Role)
	assert.Empty(t, admin.PasswordHash)

	_, ok := fx.store.tokenFor(admin.ID)
	assert.True(t, ok)

	output, err := fx.service.Login(ctx, &usecase.LoginInput{Username: "root", Password: "Adm1n!"})
	require.NoError(t, err)
	claims, err := fx.providers.access.ValidateToken(output.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin.String(), claims.Role)
}

func TestUserService_EnsureAdmin_IsIdempotent(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()
	input := &usecase.RegisterInput{Username: "root", Email: "root@example.com", Password: "Adm1n!"}

	first, err := fx.service.EnsureAdmin(ctx, input)
	require.NoError(t, err)

	second, err := fx.service.EnsureAdmin(ctx, &usecase.RegisterInput{Username: "root", Password: "Other1!"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.PasswordHash)
	assert.Equal(t, 1, fx.store.userCount())

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Username: "root", Password: "Adm1n!"})
	assert.NoError(t, err, "existing password is kept")
}

func TestUserService_EnsureAdmin_LeavesExistingUserRole(t *testing.T) {
	fx := createTestUserService(t)
	alice := fx.register(t, "alice", "Pwd123!")

	user, err := fx.service.EnsureAdmin(context.Background(), &usecase.RegisterInput{Username: "alice", Password: "Adm1n!"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.Equal(t, entity.RoleUser, user.Role)
}

// missOnceUserRepo misses the first username lookup only, like an instance
// that checked just before another one seeded the same admin.
type missOnceUserRepo struct {
	repository.UserRepository
	missed atomic.Bool
}

func (r *missOnceUserRepo) FindByUsername(ctx context.Context, username string, trackChanges bool) (*entity.User, error) {
	if r.missed.CompareAndSwap(false, true) {
		return nil, repository.ErrUserNotFound
	}

	return r.UserRepository.FindByUsername(ctx, username, trackChanges)
}

func TestUserService_EnsureAdmin_ConcurrentSeedReturnsExisting(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()
	first, err := fx.service.EnsureAdmin(ctx, &usecase.RegisterInput{Username: "root", Password: "Adm1n!"})
	require.NoError(t, err)

	svc := fx.service.(*userService)
	svc.userRepo = &missOnceUserRepo{UserRepository: fx.store.UserRepo()}

	second, err := svc.EnsureAdmin(ctx, &usecase.RegisterInput{Username: "root", Password: "Adm1n!"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, entity.RoleAdmin, second.Role)
	assert.Equal(t, 1, fx.store.userCount())
}

func TestUserService_EnsureAdmin_Validation(t *testing.T) {
	fx := createTestUserService(t)

	_, err := fx.service.EnsureAdmin(context.Background(), &usecase.RegisterInput{Username: "root"})
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	_, err = fx.service.EnsureAdmin(context.Background(), nil)
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Equal(t, 0, fx.store.userCount())
}

func TestUserService_AliceScenario(t *testing.T) {
	fx := createTestUserService(t)
	ctx := context.Background()

	registered, err := fx.service.Register(ctx, &usecase.RegisterInput{Username: "alice", Email: "a@x.com", Password: "Pwd123!"})
	require.NoError(t, err)
	alice := registered.User
	assert.Equal(t, entity.RoleUser, alice.Role)

	initial, ok := fx.store.tokenFor(alice.ID)
	require.True(t, ok)

	login, err := fx.service.Login(ctx, &usecase.LoginInput{Username: "alice", Password: "Pwd123!"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.AccessToken)

	rotated, ok := fx.store.tokenFor(alice.ID)
	require.True(t, ok)
	assert.Equal(t, initial.ID, rotated.ID)
	assert.NotEqual(t, initial.TokenHash, rotated.TokenHash)
	assert.Equal(t, fx.providers.refresh.HashToken(login.RefreshToken), rotated.TokenHash)

	_, err = fx.service.Login(ctx, &usecase.LoginInput{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = fx.service.GrantRole(ctx, alice.ID, "manager")
	require.NoError(t, err)

	reloaded, err := fx.service.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleManager, reloaded.Role)
}
