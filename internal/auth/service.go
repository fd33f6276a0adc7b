package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/agentacademy/academy/internal/shared"
)

const revokedKeyPrefix = "auth:revoked:"

// Service verifies and revokes access tokens.
type Service struct {
	secret []byte
	issuer string
	redis  *redis.Client
	now    func() time.Time
}

// NewService constructs a new Service. A nil redis client disables
// revocation checks.
func NewService(secret, issuer string, client *redis.Client) *Service {
	return &Service{
		secret: []byte(secret),
		issuer: issuer,
		redis:  client,
		now:    time.Now,
	}
}

// Issue signs a token for the principal. Used by tooling and tests; members
// receive tokens from the account backend.
func (s *Service) Issue(p shared.Principal, ttl time.Duration) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("auth: subject required")
	}
	now := s.now()
	claims := &Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses token and returns its claims. Every failure wraps
// shared.ErrInvalidToken.
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, shared.ErrInvalidToken
	}
	revoked, err := s.revoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: revocation lookup: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: revoked", shared.ErrInvalidToken)
	}
	return claims, nil
}

// Revoke denies further use of the token until it expires.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	if s.redis == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, revokedKeyPrefix+claims.ID, 1, ttl).Err()
}

func (s *Service) revoked(ctx context.Context, id string) (bool, error) {
	if s.redis == nil || id == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, revokedKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
