package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-signing-key")

func signToken(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	e := echo.New()
	raw := signToken(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"lab_tech"},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	c := e.NewContext(req, httptest.NewRecorder())

	var gotID string
	var gotRoles []string
	handler := JWTMiddleware(JWTConfig{Secret: testSecret})(func(c echo.Context) error {
		gotID = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "user-42" {
		t.Errorf("user id = %q, want user-42", gotID)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "lab_tech" {
		t.Errorf("roles = %v, want [lab_tech]", gotRoles)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	e := echo.New()
	valid := signToken(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    "other-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	expired := signToken(t, testSecret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := signToken(t, []byte("another-key"), Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"},
	})

	tests := []struct {
		name   string
		cfg    JWTConfig
		header string
	}{
		{"missing header", JWTConfig{Secret: testSecret}, ""},
		{"not a bearer token", JWTConfig{Secret: testSecret}, "Basic abc"},
		{"garbage token", JWTConfig{Secret: testSecret}, "Bearer not.a.jwt"},
		{"expired token", JWTConfig{Secret: testSecret}, "Bearer " + expired},
		{"wrong signing key", JWTConfig{Secret: testSecret}, "Bearer " + wrongKey},
		{"wrong issuer", JWTConfig{Secret: testSecret, Issuer: "labflow"}, "Bearer " + valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			handler := JWTMiddleware(tt.cfg)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			err := handler(c)

			var he *echo.HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if he.Code != http.StatusUnauthorized {
				t.Errorf("code = %d, want 401", he.Code)
			}
		})
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := DevAuthMiddleware()(func(c echo.Context) error {
		if got := UserIDFromContext(c.Request().Context()); got != "dev-user" {
			t.Errorf("user id = %q, want dev-user", got)
		}
		roles := RolesFromContext(c.Request().Context())
		if len(roles) != 1 || roles[0] != "admin" {
			t.Errorf("roles = %v, want [admin]", roles)
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := UserIDFromContext(req.Context()); got != "" {
		t.Errorf("user id = %q, want empty", got)
	}
	if got := RolesFromContext(req.Context()); got != nil {
		t.Errorf("roles = %v, want nil", got)
	}
}
