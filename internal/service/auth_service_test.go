package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
)

type memoryUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]model.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{nextID: 1, users: map[int64]model.User{}}
}

func (s *memoryUserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrEmailInUse
		}
	}

	u.ID = s.nextID
	s.nextID++
	s.users[u.ID] = *u
	return nil
}

func (s *memoryUserStore) FindByID(_ context.Context, id int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *memoryUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memoryUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *memoryUserStore) UpdateProfile(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return model.ErrUserNotFound
	}
	s.users[u.ID] = u
	return nil
}

func (s *memoryUserStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memoryUserStore) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func newTestService(t *testing.T, ttl time.Duration) (*AuthService, *memoryUserStore) {
	t.Helper()

	store := newMemoryUserStore()
	svc, err := NewAuthService("test-secret", ttl, store)
	require.NoError(t, err)
	return svc, store
}

func TestRegisterAndLoginRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "A", "a@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "A", user.Name)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, int64(3600), result.ExpiresIn)
	require.NotEmpty(t, result.Token)

	identity, err := svc.Verify(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(user.ID, 10), identity.ID)
	assert.Equal(t, user.Email, identity.Email)
	assert.Equal(t, user.Name, identity.Name)
	assert.Equal(t, user.Role, identity.Role)
}

func TestRegisterRequiresAllFields(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	cases := [][3]string{
		{"", "a@x.com", "secret123"},
		{"A", "", "secret123"},
		{"A", "a@x.com", ""},
	}
	for _, c := range cases {
		_, err := svc.Register(ctx, c[0], c[1], c[2])
		require.Error(t, err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "a@x.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "B", "A@X.COM", "other456")
	assert.ErrorIs(t, err, model.ErrEmailInUse)

	users, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestLoginInvalidCredentialsUndifferentiated(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "a@x.com", "secret123")
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, "nobody@x.com", "secret123")
	_, wrongPwErr := svc.Login(ctx, "a@x.com", "wrong")

	assert.ErrorIs(t, unknownErr, model.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongPwErr, model.ErrInvalidCredentials)
}

func TestVerifyTokenRejectsTampered(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "a@x.com", "secret123")
	require.NoError(t, err)
	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	parts := strings.Split(result.Token, ".")
	require.Len(t, parts, 3)
	// Claims altered, signature left alone: must not verify.
	tampered := parts[0] + ".eyJzdWIiOiI5OTkiLCJyb2xlIjoiUk9MRV9BRE1JTiJ9." + parts[2]

	_, err = svc.Verify(ctx, tampered)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = svc.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc, _ := newTestService(t, time.Millisecond)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "a@x.com", "secret123")
	require.NoError(t, err)
	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond) // exp has one-second resolution

	_, err = svc.Verify(ctx, result.Token)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestVerifyTokenRejectsForeignSignature(t *testing.T) {
	svc, store := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "A", "a@x.com", "secret123")
	require.NoError(t, err)
	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	other, err := NewAuthService("another-secret", time.Hour, store)
	require.NoError(t, err)

	_, err = other.Verify(ctx, result.Token)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestUpdateProfilePartial(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "A", "a@x.com", "secret123")
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, user.ID, model.UpdateProfileRequest{Name: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Name)
	assert.Equal(t, "a@x.com", updated.Email)

	_, err = svc.UpdateProfile(ctx, 9999, model.UpdateProfileRequest{Name: "C"})
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestPasswordHashNeverSerialized(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "A", "a@x.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, user.PasswordHash)

	data, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(data), user.PasswordHash)
	assert.NotContains(t, string(data), "password")
}
