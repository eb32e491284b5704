package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/repository"
	"civicpulse/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxRegisterRetries = 3
)

var nonUsernameChars = regexp.MustCompile(`[^a-z0-9]`)

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is the outcome of a successful authentication.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	users  repository.UserRepository
	tokens *TokenService
}

func NewAuthService(users repository.UserRepository, tokens *TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Tokens exposes the token service for the auth gate.
func (s *AuthService) Tokens() *TokenService {
	return s.tokens
}

// BaseUsername lowercases name and strips everything outside [a-z0-9].
func BaseUsername(name string) string {
	return nonUsernameChars.ReplaceAllString(strings.ToLower(name), "")
}

// uniqueUsername returns base, or base1, base2, ... whichever is free first.
func (s *AuthService) uniqueUsername(ctx context.Context, name string) (string, error) {
	base := BaseUsername(name)
	if base == "" {
		return "", models.NewValidationError("Name must contain at least one letter or digit")
	}
	candidate := base
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(n)
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("User already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	var user *models.User
	for attempt := 0; ; attempt++ {
		username, err := s.uniqueUsername(ctx, in.Name)
		if err != nil {
			return nil, err
		}
		user = &models.User{
			Name:     in.Name,
			Username: username,
			Email:    in.Email,
			Password: string(hashed),
		}
		err = s.users.Create(ctx, user)
		if err == nil {
			break
		}
		if !models.IsCode(err, models.CodeConflict) {
			return nil, err
		}
		// Either the email or the derived username was taken concurrently.
		if again, lookupErr := s.users.GetByEmail(ctx, in.Email); lookupErr == nil && again != nil {
			return nil, models.NewValidationError("User already exists")
		}
		if attempt+1 >= maxRegisterRetries {
			return nil, err
		}
		middleware.Logger.InfoContext(ctx, "username taken during registration, retrying",
			slog.String("username", username))
	}

	return s.newSession(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if err := s.users.TouchLastActive(ctx, user.ID); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to record last activity", slog.String("error", err.Error()))
	}
	return s.newSession(user)
}

// Verify resolves the user behind an access token. When the access token is
// missing or unusable it falls back to the refresh token and mints a fresh
// access token.
func (s *AuthService) Verify(ctx context.Context, accessToken, refreshToken string) (*models.User, string, error) {
	if accessToken != "" {
		claims, err := s.tokens.VerifyAccess(ctx, accessToken)
		if err == nil {
			user, err := s.userFromClaims(ctx, claims)
			if err != nil {
				return nil, "", err
			}
			return user, accessToken, nil
		}
		if refreshToken == "" {
			return nil, "", tokenError(err)
		}
	}
	if refreshToken == "" {
		return nil, "", models.NewUnauthorizedError("No token found")
	}
	session, err := s.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, "", err
	}
	return session.User, session.AccessToken, nil
}

// Refresh mints a new access token from a valid refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, models.NewUnauthorizedError("No refresh token found")
	}
	claims, err := s.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, models.NewInvalidTokenError("Invalid refresh token")
	}
	user, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return nil, err
	}
	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{User: user, AccessToken: access, RefreshToken: refreshToken}, nil
}

// Logout revokes whichever of the two tokens are still valid.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var errs []error
	if claims, err := s.tokens.VerifyRefresh(ctx, refreshToken); err == nil {
		errs = append(errs, s.tokens.Revoke(ctx, claims))
	}
	if claims, err := s.tokens.VerifyAccess(ctx, accessToken); err == nil {
		errs = append(errs, s.tokens.Revoke(ctx, claims))
	}
	if err := errors.Join(errs...); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Authenticate validates an access token and loads its user. Used by the
// HTTP auth gate and the notification stream.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, tokenError(err)
	}
	return s.userFromClaims(ctx, claims)
}

func (s *AuthService) userFromClaims(ctx context.Context, claims *TokenClaims) (*models.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, models.NewInvalidTokenError("Invalid token")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("User not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return models.NewTokenExpiredError()
	case errors.Is(err, ErrTokenRevoked):
		return models.NewInvalidTokenError("Token has been revoked")
	default:
		return models.NewInvalidTokenError("Invalid token")
	}
}
