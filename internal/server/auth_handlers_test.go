package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionBody struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", refreshCookieName)
	return nil
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Jane Doe",
		"email":    "Jane@Example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reg := decode[envelope[sessionBody]](t, resp)
	assert.True(t, reg.Success)
	assert.Equal(t, "janedoe", reg.Data.Username)
	assert.Equal(t, "jane@example.com", reg.Data.Email)
	assert.NotEmpty(t, reg.Data.Token)

	cookie := refreshCookie(t, resp)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, 7*24*3600, cookie.MaxAge)
	assert.False(t, cookie.Secure)

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[envelope[sessionBody]](t, resp)
	assert.Equal(t, reg.Data.ID, login.Data.ID)
	assert.NotEmpty(t, login.Data.Token)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"email": "a@example.com", "password": "secret123"}},
		{"bad email", map[string]string{"name": "Ann", "email": "nope", "password": "secret123"}},
		{"short password", map[string]string{"name": "Ann", "email": "a@example.com", "password": "123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, models.CodeValidation, decode[models.ErrorResponse](t, resp).Code)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Sam Lee", "email": "sam@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "sam@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", decode[models.ErrorResponse](t, resp).Error)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.user(t, "Alice Park", "alice")

	t.Run("missing bearer", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/users/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, models.CodeUnauthorized, decode[models.ErrorResponse](t, resp).Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := signedAccessToken(t, u.ID, time.Now().Add(-time.Hour))
		resp := env.do(t, http.MethodGet, "/api/v1/users/profile", expired, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, models.CodeTokenExpired, decode[models.ErrorResponse](t, resp).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/users/profile", "not.a.jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, models.CodeInvalidToken, decode[models.ErrorResponse](t, resp).Code)
	})

	t.Run("valid token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/users/profile", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestVerifyAndRefresh(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Riley Quinn", "email": "riley@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reg := decode[envelope[sessionBody]](t, resp)
	cookie := refreshCookie(t, resp)

	t.Run("verify with bearer", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/auth/verify", reg.Data.Token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Success bool        `json:"success"`
			User    sessionBody `json:"user"`
		}](t, resp)
		assert.True(t, body.Success)
		assert.Equal(t, reg.Data.ID, body.User.ID)
		assert.Equal(t, reg.Data.Token, body.User.Token)
	})

	t.Run("verify falls back to cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify", nil)
		req.AddCookie(cookie)
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("verify without anything", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/auth/verify", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.AddCookie(cookie)
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, decode[envelope[sessionBody]](t, resp).Data.Token)
	})

	t.Run("refresh with bad cookie clears it", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "bogus"})
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "", refreshCookie(t, resp).Value)
	})
}

func TestLogout_RevokesTokens(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Morgan Fox", "email": "morgan@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := decode[envelope[sessionBody]](t, resp).Data.Token
	cookie := refreshCookie(t, resp)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(cookie)
	out, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = out.Body.Close() }()
	require.Equal(t, http.StatusOK, out.StatusCode)
	assert.Equal(t, "", refreshCookie(t, out).Value)

	resp = env.do(t, http.MethodGet, "/api/v1/users/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(cookie)
	again, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = again.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, again.StatusCode)
}
