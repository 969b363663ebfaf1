package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-dashboard/internal/config"
	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/pkg/types"
)

const testSecret = "test-secret-0123456789"

func newTestManager(t *testing.T, ttl time.Duration) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(config.AuthConfig{JWTSecret: testSecret, TokenTTL: ttl, Issuer: "test"})
	require.NoError(t, err)
	return m
}

func testUser() *models.AuthUser {
	return &models.AuthUser{ID: "3f1e2d4c-5b6a-4789-8abc-def012345678", Username: "u1", Role: types.RoleUser}
}

func TestNewJWTManager_RequiresSecret(t *testing.T) {
	_, err := NewJWTManager(config.AuthConfig{})
	assert.Error(t, err)
}

func TestJWT_RoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, expires, err := m.GenerateToken(testUser())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, types.Viewer{UserID: testUser().ID, Role: types.RoleUser}, claims.Viewer())
	assert.Equal(t, "u1", claims.Username)
}

func TestJWT_Expired(t *testing.T) {
	m := newTestManager(t, time.Hour)
	m.timeout = -time.Minute

	token, _, err := m.GenerateToken(testUser())
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_WrongSecret(t *testing.T) {
	m := newTestManager(t, time.Hour)
	other, err := NewJWTManager(config.AuthConfig{JWTSecret: "a-different-secret-value"})
	require.NoError(t, err)

	token, _, err := other.GenerateToken(testUser())
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	m := newTestManager(t, time.Hour)
	claims := &Claims{UserID: testUser().ID, Role: types.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_RejectsUnknownRole(t *testing.T) {
	m := newTestManager(t, time.Hour)
	user := testUser()
	user.Role = "superuser"

	token, _, err := m.GenerateToken(user)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFromRequest(t *testing.T) {
	m := newTestManager(t, time.Hour)
	token, _, err := m.GenerateToken(testUser())
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/api/posts", nil)
	_, err = m.FromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Basic abc")
	_, err = m.FromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "bearer "+token)
	claims, err := m.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, testUser().ID, claims.UserID)
}

func TestPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse battery"))
	assert.False(t, CheckPassword(hash, "wrong password"))
	assert.False(t, CheckPassword("not-a-hash", "correct horse battery"))
}

func TestAuthorizer(t *testing.T) {
	a, err := NewAuthorizer()
	require.NoError(t, err)

	tests := []struct {
		role, path, method string
		want               bool
	}{
		{types.RoleUser, "/api/posts", "GET", true},
		{types.RoleUser, "/api/posts/abc/commenters", "GET", true},
		{types.RoleUser, "/api/posts", "DELETE", false},
		{types.RoleUser, "/api/dashboard/stats", "GET", true},
		{types.RoleUser, "/api/scrape", "POST", true},
		{types.RoleUser, "/api/admin/access", "GET", false},
		{types.RoleUser, "/api/admin/access/bulk/users", "POST", false},
		{types.RoleAdmin, "/api/admin/access", "DELETE", true},
		{types.RoleAdmin, "/api/posts", "GET", true},
		{"", "/api/posts", "GET", false},
	}

	for _, tt := range tests {
		t.Run(tt.role+" "+tt.method+" "+tt.path, func(t *testing.T) {
			got, err := a.Allowed(tt.role, tt.path, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
