package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"civicpulse/internal/cache"
	"civicpulse/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	TokenIssuer   = "civicpulse-api"
	TokenAudience = "civicpulse-client"

	tokenLeeway      = 30 * time.Second
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenRevoked = errors.New("token revoked")
)

// TokenClaims are the claims carried by access and refresh tokens.
type TokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *TokenClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrTokenInvalid
	}
	return uint(id), nil
}

// TokenService signs, verifies and revokes HS256 session tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	rdb           *redis.Client
	now           func() time.Time
}

// NewTokenService returns a TokenService. rdb may be nil, in which case
// revocation is not enforced.
func NewTokenService(accessSecret, refreshSecret string, rdb *redis.Client) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		rdb:           rdb,
		now:           time.Now,
	}
}

func (s *TokenService) IssueAccessToken(userID uint) (string, error) {
	return s.issue(userID, tokenTypeAccess, AccessTokenTTL, s.accessSecret)
}

func (s *TokenService) IssueRefreshToken(userID uint) (string, error) {
	return s.issue(userID, tokenTypeRefresh, RefreshTokenTTL, s.refreshSecret)
}

func (s *TokenService) issue(userID uint, typ string, ttl time.Duration, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("%s token secret not configured", typ)
	}
	now := s.now()
	claims := TokenClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateJTI(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// generateJTI creates a unique JWT ID to prevent replay attacks
func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8])
}

func (s *TokenService) VerifyAccess(ctx context.Context, token string) (*TokenClaims, error) {
	return s.verify(ctx, token, tokenTypeAccess, s.accessSecret)
}

func (s *TokenService) VerifyRefresh(ctx context.Context, token string) (*TokenClaims, error) {
	return s.verify(ctx, token, tokenTypeRefresh, s.refreshSecret)
}

func (s *TokenService) verify(ctx context.Context, raw, typ string, secret []byte) (*TokenClaims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if claims.Type != typ {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	if s.isRevoked(ctx, claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blacklists the token id until the token would have expired anyway.
func (s *TokenService) Revoke(ctx context.Context, claims *TokenClaims) error {
	if s.rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now()) + tokenLeeway
	}
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, cache.RevokedTokenKey(claims.ID), "1", ttl).Err()
}

// isRevoked fails open when the blacklist cannot be read.
func (s *TokenService) isRevoked(ctx context.Context, jti string) bool {
	if s.rdb == nil || jti == "" {
		return false
	}
	n, err := s.rdb.Exists(ctx, cache.RevokedTokenKey(jti)).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "token blacklist lookup failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}
