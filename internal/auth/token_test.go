package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-booking/internal/auth"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/admin/blackouts", nil)
	r.Header.Set("Authorization", "Bearer some-token")

	token, err := auth.ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "some-token", token)
}

func TestExtractTokenMissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/admin/blackouts", nil)

	_, err := auth.ExtractTokenFromRequest(r)
	assert.Error(t, err)
}

func TestExtractTokenBadFormat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/admin/blackouts", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, err := auth.ExtractTokenFromRequest(r)
	assert.Error(t, err)
}

func TestExtractSubjectFromJWT(t *testing.T) {
	token := signedTestToken(t, jwt.MapClaims{"sub": "admin-1"})

	sub, err := auth.ExtractSubjectFromJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", sub)
}

func TestExtractSubjectMissingClaim(t *testing.T) {
	token := signedTestToken(t, jwt.MapClaims{"aud": "booking"})

	_, err := auth.ExtractSubjectFromJWT(token)
	assert.Error(t, err)
}

func TestSubjectFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/admin/blackouts", nil)
	r.Header.Set("Authorization", "Bearer "+signedTestToken(t, jwt.MapClaims{"sub": "ops@example.com"}))

	sub, err := auth.SubjectFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", sub)
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	middleware, err := auth.Middleware(config.AuthConfig{Enabled: false}, logger.NewLogger("auth-test"))
	require.NoError(t, err)

	called := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/blackouts", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, auth.Subject(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
