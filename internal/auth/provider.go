package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/redis"
)

// Provider resolves session tokens to identities.
type Provider interface {
	// CurrentIdentity returns the identity behind token or ErrNotAuthenticated.
	CurrentIdentity(ctx context.Context, token string) (domain.Identity, error)

	// SignOut revokes the session behind token.
	SignOut(ctx context.Context, token string) error
}

// Session is a validated sign-in session.
type Session struct {
	ID        string
	Identity  domain.Identity
	ExpiresAt time.Time
}

// Claims are the JWT claims carried by a session token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTProvider issues HS256 session tokens and checks them against the
// Redis session registry so that signing out revokes them.
type JWTProvider struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	sessions redis.SessionStoreInterface
	now      func() time.Time
}

// NewJWTProvider creates a new JWTProvider.
func NewJWTProvider(cfg config.AuthConfig, sessions redis.SessionStoreInterface) *JWTProvider {
	return &JWTProvider{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		ttl:      cfg.SessionTTL,
		sessions: sessions,
		now:      time.Now,
	}
}

// IssueSession creates a session for identity and returns its signed token.
func (p *JWTProvider) IssueSession(ctx context.Context, identity domain.Identity) (string, error) {
	now := p.now()
	sessionID := uuid.New().String()

	claims := &Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   identity.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if err := p.sessions.Create(ctx, sessionID, identity.ID, p.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return token, nil
}

// Authenticate validates token and returns its live session.
func (p *JWTProvider) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	claims, err := p.parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	owner, err := p.sessions.Owner(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if owner == "" || owner != claims.Subject {
		return nil, ErrNotAuthenticated
	}

	session := &Session{
		ID:       claims.ID,
		Identity: domain.Identity{ID: claims.Subject, Email: claims.Email},
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// CurrentIdentity returns the identity behind token.
func (p *JWTProvider) CurrentIdentity(ctx context.Context, token string) (domain.Identity, error) {
	session, err := p.Authenticate(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}
	return session.Identity, nil
}

// SignOut revokes the session behind token.
func (p *JWTProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.parse(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	return p.sessions.Delete(ctx, claims.ID)
}

func (p *JWTProvider) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer), jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("invalid claims")
	}
	return claims, nil
}

var _ Provider = (*JWTProvider)(nil)
