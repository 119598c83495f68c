package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/users"
	pkgAuth "github.com/threshingfloor/roastery-backend/pkg/auth"
	"github.com/threshingfloor/roastery-backend/pkg/auth/session"
	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/db/dbtest"
	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
	"github.com/threshingfloor/roastery-backend/pkg/security"
)

const adminEmail = "admin@coffeeshop.com"

var (
	testJWT = config.JWTConfig{
		Secret:                 "secret",
		Issuer:                 "roastery",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 60,
	}
	testPassword = config.PasswordConfig{ArgonMemoryKB: 8 * 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
)

type harness struct {
	svc      Service
	sessions *session.Manager
	kv       *memoryKV
	carts    *recordingCarts
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	kv := newMemoryKV()
	sessions, err := session.NewManager(kv, testJWT)
	require.NoError(t, err)

	h := &harness{sessions: sessions, kv: kv, carts: &recordingCarts{}, clock: time.Now().UTC()}
	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(client.DB()),
		SessionManager: sessions,
		Policy:         access.NewPolicy(adminEmail),
		Carts:          h.carts,
		JWTConfig:      testJWT,
		PasswordConfig: testPassword,
		Clock:          func() time.Time { return h.clock },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestRegisterThenLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Register(ctx, RegisterRequest{Email: " Jane@Example.com ", Password: "pour-over-42", DisplayName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", resp.User.Email)
	assert.False(t, resp.User.IsAdmin)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	ok, err := h.sessions.HasSession(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	login, err := h.svc.Login(ctx, LoginRequest{Email: "JANE@example.com", Password: "pour-over-42"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
	require.NotNil(t, login.User.LastLoginAt)
}

func TestRegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, RegisterRequest{Email: "jane@example.com", Password: "short", DisplayName: "Jane"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Register(ctx, RegisterRequest{Email: "jane@example.com", Password: "pour-over-42", DisplayName: "Jane"})
	require.NoError(t, err)
	_, err = h.svc.Register(ctx, RegisterRequest{Email: "JANE@example.com", Password: "pour-over-42", DisplayName: "Jane"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Register(ctx, RegisterRequest{Email: "jane@example.com", Password: "pour-over-42", DisplayName: "Jane"})
	require.NoError(t, err)

	_, wrongPassword := h.svc.Login(ctx, LoginRequest{Email: "jane@example.com", Password: "french-press"})
	_, unknownUser := h.svc.Login(ctx, LoginRequest{Email: "joe@example.com", Password: "pour-over-42"})
	for _, err := range []error{wrongPassword, unknownUser} {
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
		assert.Equal(t, invalidCredentialsMessage, typed.Message())
	}
}

func TestAdminIsDerivedFromEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.svc.Register(ctx, RegisterRequest{Email: "Admin@CoffeeShop.com", Password: "espresso-shot", DisplayName: "Owner"})
	require.NoError(t, err)
	assert.True(t, resp.User.IsAdmin)

	id, err := h.svc.Identify(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin)
	assert.Equal(t, "Owner", id.Name)

	_, err = h.svc.Identify(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLogoutRevokesSessionAndClearsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resp, err := h.svc.Register(ctx, RegisterRequest{Email: "jane@example.com", Password: "pour-over-42", DisplayName: "Jane"})
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)

	id, err := h.svc.Identify(ctx, claims.UserID)
	require.NoError(t, err)
	require.NoError(t, h.svc.Logout(ctx, *id, claims.ID))

	ok, err := h.sessions.HasSession(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []uuid.UUID{claims.UserID}, h.carts.cleared)
}

func TestRefreshRotatesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resp, err := h.svc.Register(ctx, RegisterRequest{Email: "jane@example.com", Password: "pour-over-42", DisplayName: "Jane"})
	require.NoError(t, err)

	h.clock = h.clock.Add(30 * time.Minute)
	refreshed, err := h.svc.Refresh(ctx, RefreshRequest{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, refreshed.AccessToken)
	require.NoError(t, err)
	ok, err := h.sessions.HasSession(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.svc.Refresh(ctx, RefreshRequest{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = h.svc.Refresh(ctx, RefreshRequest{AccessToken: "garbage", RefreshToken: refreshed.RefreshToken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

type recordingCarts struct {
	cleared []uuid.UUID
}

func (r *recordingCarts) Clear(_ context.Context, userID uuid.UUID) error {
	r.cleared = append(r.cleared, userID)
	return nil
}

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}}
}

func (m *memoryKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryKV) AccessSessionKey(accessID string) string {
	return "session:" + accessID
}

func TestLoginUpgradesHashWhenCostsChange(t *testing.T) {
	client := dbtest.Open(t)
	repo := users.NewRepository(client.DB())
	ctx := context.Background()

	build := func(pw config.PasswordConfig) Service {
		sessions, err := session.NewManager(newMemoryKV(), testJWT)
		require.NoError(t, err)
		svc, err := NewService(ServiceParams{
			UserRepo:       repo,
			SessionManager: sessions,
			Policy:         access.NewPolicy(adminEmail),
			JWTConfig:      testJWT,
			PasswordConfig: pw,
		})
		require.NoError(t, err)
		return svc
	}

	_, err := build(testPassword).Register(ctx, RegisterRequest{Email: "jane@example.com", Password: "pour-over-42"})
	require.NoError(t, err)

	stronger := testPassword
	stronger.ArgonTime = 2
	_, err = build(stronger).Login(ctx, LoginRequest{Email: "jane@example.com", Password: "pour-over-42"})
	require.NoError(t, err)

	user, err := repo.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.False(t, security.NeedsRehash(user.PasswordHash, stronger))
	assert.Contains(t, user.PasswordHash, "t=2")
}
