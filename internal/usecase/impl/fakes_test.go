package impl

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"evently/config"
	"evently/internal/domain/entity"
	domainerrors "evently/internal/domain/errors"
	"evently/internal/domain/repository"
	"evently/internal/domain/service"
	"evently/internal/infra/auth"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{
		SigningKey:     "usecase_test_signing_key_with_enough_bytes",
		Algorithm:      "HS256",
		Issuer:         "evently",
		Audience:       "evently-api",
		AccessTokenTTL: 15 * time.Minute,
	}
	cfg.RefreshToken.TTL = 7 * 24 * time.Hour
	cfg.RefreshToken.ByteLength = 32
	cfg.Auth.Hasher = config.HasherArgon2id
	cfg.Auth.Argon2 = config.Argon2Config{Time: 1, MemoryKiB: 1024, Threads: 1, KeyLength: 32, SaltLength: 16}

	return cfg
}

type testProviders struct {
	hasher  service.PasswordHasher
	access  service.AccessTokenProvider
	refresh service.RefreshTokenProvider
}

func newTestProviders(t *testing.T) testProviders {
	t.Helper()

	cfg := newTestConfig()

	hasher, err := auth.NewPasswordHasher(cfg)
	require.NoError(t, err)
	access, err := auth.NewJWTService(cfg)
	require.NoError(t, err)
	refresh, err := auth.NewRefreshTokenProvider(cfg)
	require.NoError(t, err)

	return testProviders{hasher: hasher, access: access, refresh: refresh}
}

// memStore is an in-memory stand-in for the database. It hands out repositories
// bound to itself and emulates the unique indexes on username and user_id.
type memStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]entity.User
	tokens map[uuid.UUID]entity.RefreshToken // keyed by user id

	failTokenCreate error
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[uuid.UUID]entity.User),
		tokens: make(map[uuid.UUID]entity.RefreshToken),
	}
}

func (s *memStore) UserRepo() repository.UserRepository {
	return &memUserRepo{store: s}
}

func (s *memStore) RefreshTokenRepo() repository.RefreshTokenRepository {
	return &memTokenRepo{store: s}
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.users)
}

func (s *memStore) tokenFor(userID uuid.UUID) (entity.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[userID]

	return token, ok
}

// memTxManager restores the store snapshot when fn fails.
type memTxManager struct {
	store *memStore
}

func (m *memTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	m.store.mu.Lock()
	users := maps.Clone(m.store.users)
	tokens := maps.Clone(m.store.tokens)
	m.store.mu.Unlock()

	if err := fn(m.store); err != nil {
		m.store.mu.Lock()
		m.store.users = users
		m.store.tokens = tokens
		m.store.mu.Unlock()

		return err
	}

	return nil
}

type memUserRepo struct {
	store *memStore
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string, _ bool) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, user := range r.store.users {
		if user.Username == username {
			return &user, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID, _ bool) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return &user, nil
}

func (r *memUserRepo) FindAll(_ context.Context, paging entity.Paging, _ bool) ([]*entity.User, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	all := slices.SortedFunc(maps.Values(r.store.users), func(a, b entity.User) int {
		return strings.Compare(a.Username, b.Username)
	})

	paging = paging.Normalize()
	start := min(paging.Offset(), len(all))
	end := min(start+paging.Size, len(all))

	users := make([]*entity.User, 0, end-start)
	for i := start; i < end; i++ {
		user := all[i]
		users = append(users, &user)
	}

	return users, int64(len(all)), nil
}

func (r *memUserRepo) Create(_ context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, existing := range r.store.users {
		if existing.Username == user.Username {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("username already exists")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.store.users[user.ID] = *user

	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	r.store.users[user.ID] = *user

	return nil
}

type memTokenRepo struct {
	store *memStore
}

func (r *memTokenRepo) FindByUserID(_ context.Context, userID uuid.UUID, _ bool) (*entity.RefreshToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	token, ok := r.store.tokens[userID]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}

	return &token, nil
}

func (r *memTokenRepo) FindByTokenHash(_ context.Context, tokenHash string) (*entity.RefreshToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, token := range r.store.tokens {
		if token.TokenHash == tokenHash {
			return &token, nil
		}
	}

	return nil, repository.ErrRefreshTokenNotFound
}

func (r *memTokenRepo) Create(_ context.Context, token *entity.RefreshToken) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.failTokenCreate != nil {
		return r.store.failTokenCreate
	}
	if _, ok := r.store.tokens[token.UserID]; ok {
		return errors.WithStack(repository.ErrRefreshTokenExists)
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = time.Now()
	token.UpdatedAt = token.CreatedAt
	r.store.tokens[token.UserID] = *token

	return nil
}

func (r *memTokenRepo) Update(_ context.Context, token *entity.RefreshToken) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.tokens[token.UserID]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	existing.TokenHash = token.TokenHash
	existing.ExpiresAt = token.ExpiresAt
	existing.UpdatedAt = time.Now()
	r.store.tokens[token.UserID] = existing

	return nil
}

// mockPublisher records published auth events.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishAuthEvent(ctx context.Context, event *service.AuthEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func eventOfType(eventType service.AuthEventType) any {
	return mock.MatchedBy(func(event *service.AuthEvent) bool {
		return event.Type == eventType
	})
}
