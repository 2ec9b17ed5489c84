package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]string
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]string)}
}

func (m *memSessions) Create(_ context.Context, sessionID, userID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = userID
	return nil
}

func (m *memSessions) Owner(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID], nil
}

func (m *memSessions) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

type memUsers struct {
	byEmail map[string]*domain.User
}

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrConflict
	}
	m.byEmail[user.Email] = user
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type memProfiles struct {
	created []*domain.Profile
}

func (m *memProfiles) Create(_ context.Context, p *domain.Profile) error {
	m.created = append(m.created, p)
	return nil
}

func (m *memProfiles) GetByUserID(context.Context, string) (*domain.Profile, error) {
	return nil, repository.ErrNotFound
}

func (m *memProfiles) IncrementOrdersToday(context.Context, string, int, time.Time) error {
	return nil
}

func newTestProvider() (*JWTProvider, *memSessions) {
	sessions := newMemSessions()
	p := NewJWTProvider(config.AuthConfig{
		JWTSecret:  "test-secret",
		Issuer:     "test",
		SessionTTL: time.Hour,
	}, sessions)
	return p, sessions
}

func TestJWTProvider_IssueAndResolve(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	token, err := p.IssueSession(ctx, domain.Identity{ID: "driver-1", Email: "d@hospital.com"})
	require.NoError(t, err)

	identity, err := p.CurrentIdentity(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{ID: "driver-1", Email: "d@hospital.com"}, identity)
}

func TestJWTProvider_AuthenticateCarriesExpiry(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()
	issued := time.Now().Truncate(time.Second)
	p.now = func() time.Time { return issued }

	token, err := p.IssueSession(ctx, domain.Identity{ID: "driver-1", Email: "d@hospital.com"})
	require.NoError(t, err)

	session, err := p.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.True(t, session.ExpiresAt.Equal(issued.Add(time.Hour)), "expires at %v", session.ExpiresAt)
}

func TestJWTProvider_SignOutRevokes(t *testing.T) {
	p, sessions := newTestProvider()
	ctx := context.Background()

	token, err := p.IssueSession(ctx, domain.Identity{ID: "driver-1", Email: "d@hospital.com"})
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, token))
	assert.Empty(t, sessions.sessions)

	_, err = p.CurrentIdentity(ctx, token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestJWTProvider_RejectsForeignAndExpiredTokens(t *testing.T) {
	p, _ := newTestProvider()
	ctx := context.Background()

	_, err := p.CurrentIdentity(ctx, "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = p.CurrentIdentity(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	other, _ := newTestProvider()
	other.secret = []byte("another-secret")
	foreign, err := other.IssueSession(ctx, domain.Identity{ID: "driver-1"})
	require.NoError(t, err)
	_, err = p.CurrentIdentity(ctx, foreign)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	token, err := p.IssueSession(ctx, domain.Identity{ID: "driver-1"})
	require.NoError(t, err)
	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.CurrentIdentity(ctx, token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func newTestAccounts() (*AccountService, *memUsers, *memProfiles, *JWTProvider) {
	users := &memUsers{byEmail: make(map[string]*domain.User)}
	profiles := &memProfiles{}
	p, _ := newTestProvider()
	return NewAccountService(users, profiles, p, zap.NewNop()), users, profiles, p
}

func TestAccountService_SignUpCreatesActiveProfile(t *testing.T) {
	svc, users, profiles, p := newTestAccounts()
	ctx := context.Background()

	token, err := svc.SignUp(ctx, SignUpRequest{
		Name:            "Alex Driver",
		Email:           "Alex@Hospital.com",
		Password:        "secret",
		ConfirmPassword: "secret",
	})
	require.NoError(t, err)

	user, ok := users.byEmail["alex@hospital.com"]
	require.True(t, ok)
	assert.NotEqual(t, "secret", user.PasswordHash)

	require.Len(t, profiles.created, 1)
	assert.Equal(t, user.ID, profiles.created[0].UserID)
	assert.Equal(t, domain.ProfileStatusActive, profiles.created[0].Status)
	assert.Zero(t, profiles.created[0].OrdersToday)

	identity, err := p.CurrentIdentity(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.ID)
}

func TestAccountService_SignUpValidation(t *testing.T) {
	svc, users, _, _ := newTestAccounts()
	ctx := context.Background()

	cases := []SignUpRequest{
		{Name: "", Email: "a@b.com", Password: "x", ConfirmPassword: "x"},
		{Name: "A", Email: "a@b.com", Password: "x", ConfirmPassword: "y"},
		{Name: "A", Email: "nope", Password: "x", ConfirmPassword: "x"},
	}
	for _, req := range cases {
		_, err := svc.SignUp(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Empty(t, users.byEmail)
}

func TestAccountService_SignUpDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestAccounts()
	ctx := context.Background()
	req := SignUpRequest{Name: "A", Email: "a@b.com", Password: "x", ConfirmPassword: "x"}

	_, err := svc.SignUp(ctx, req)
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, req)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAccountService_SignIn(t *testing.T) {
	svc, _, _, _ := newTestAccounts()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpRequest{Name: "A", Email: "a@b.com", Password: "pw", ConfirmPassword: "pw"})
	require.NoError(t, err)

	token, err := svc.SignIn(ctx, "A@B.com ", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.SignIn(ctx, "a@b.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "missing@b.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
