package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ordercore/api/ctxutil"
	"ordercore/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIssuedToken(t *testing.T) {
	a := NewAuthenticator(config.AuthConfig{JWTSecret: "s3cret", Issuer: "auth.test"}, false)

	token, err := a.Issue("admin-7", ctxutil.RoleAdmin, time.Minute)
	require.NoError(t, err)
	sub, role, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-7", sub)
	assert.Equal(t, ctxutil.RoleAdmin, role)

	token, err = a.Issue("u1", "", time.Minute)
	require.NoError(t, err)
	_, role, err = a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, ctxutil.RoleCustomer, role, "unknown roles fall back to customer")
}

func TestParseRejects(t *testing.T) {
	a := NewAuthenticator(config.AuthConfig{JWTSecret: "s3cret", Issuer: "auth.test"}, false)

	expired, err := a.Issue("u1", ctxutil.RoleCustomer, -time.Minute)
	require.NoError(t, err)
	_, _, err = a.Parse(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other := NewAuthenticator(config.AuthConfig{JWTSecret: "other", Issuer: "auth.test"}, false)
	forged, err := other.Issue("u1", ctxutil.RoleAdmin, time.Minute)
	require.NoError(t, err)
	_, _, err = a.Parse(forged)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	foreign := NewAuthenticator(config.AuthConfig{JWTSecret: "s3cret", Issuer: "elsewhere"}, false)
	token, err := foreign.Issue("u1", ctxutil.RoleCustomer, time.Minute)
	require.NoError(t, err)
	_, _, err = a.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "auth.test"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, _, err = a.Parse(noExp)
	assert.Error(t, err)

	unconfigured := NewAuthenticator(config.AuthConfig{}, false)
	_, _, err = unconfigured.Parse(token)
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewAuthenticator(config.AuthConfig{JWTSecret: "s3cret"}, true)

	r := gin.New()
	r.GET("/admin", a.RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.UserID(c))
	})

	cases := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"customer dev header", map[string]string{DevUserHeader: "u1"}, http.StatusForbidden},
		{"admin dev header", map[string]string{DevAdminHeader: "ops"}, http.StatusOK},
		{"malformed bearer", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized},
		{"bearer wins over dev header", map[string]string{"Authorization": "Bearer nope", DevAdminHeader: "ops"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "ops", w.Body.String())
			}
		})
	}
}

func TestDevHeadersDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewAuthenticator(config.AuthConfig{JWTSecret: "s3cret"}, false)
	r := gin.New()
	r.GET("/me", a.RequireUser(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(DevUserHeader, "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
