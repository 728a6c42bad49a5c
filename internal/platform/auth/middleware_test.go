package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, method jwt.SigningMethod, claims Claims, key interface{}) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dr-lopez",
			Issuer:    "clinic-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Roles: []string{RoleDentist},
	}
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (error, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	var seen echo.Context
	err := JWTMiddleware(cfg)(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})(c)
	return err, seen
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err, _ := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err, _ := runJWT(t, JWTConfig{SigningKey: testSigningKey}, tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidHMACToken(t *testing.T) {
	tok := createTestToken(t, jwt.SigningMethodHS256, validClaims(), testSigningKey)
	err, c := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "clinic-idp"}, "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "dr-lopez" {
		t.Errorf("expected subject dr-lopez, got %q", UserIDFromContext(ctx))
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != RoleDentist {
		t.Errorf("expected [dentist], got %v", roles)
	}
}

func TestJWTMiddleware_ValidRSAToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tok := createTestToken(t, jwt.SigningMethodRS256, validClaims(), key)
	err, _ = runJWT(t, JWTConfig{PublicKey: &key.PublicKey}, "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_RejectsHMACWhenOnlyRSAConfigured(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	tok := createTestToken(t, jwt.SigningMethodHS256, validClaims(), testSigningKey)
	err, _ := runJWT(t, JWTConfig{PublicKey: &key.PublicKey}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	tok := createTestToken(t, jwt.SigningMethodHS256, claims, testSigningKey)
	err, _ := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongIssuer(t *testing.T) {
	tok := createTestToken(t, jwt.SigningMethodHS256, validClaims(), testSigningKey)
	err, _ := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "someone-else"}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tok := createTestToken(t, jwt.SigningMethodHS256, validClaims(), []byte("other-key"))
	err, _ := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := DevAuthMiddleware()(func(c echo.Context) error {
		ctx := c.Request().Context()
		if UserIDFromContext(ctx) != "dev-user" {
			t.Errorf("expected dev-user, got %q", UserIDFromContext(ctx))
		}
		if !HasRole(RolesFromContext(ctx), RoleDentist) {
			t.Error("expected dev identity to act as admin")
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDevAuthMiddleware_RoleOverride(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-Role", RoleReceptionist)
	c := e.NewContext(req, httptest.NewRecorder())

	DevAuthMiddleware()(func(c echo.Context) error {
		if HasRole(RolesFromContext(c.Request().Context()), RoleDentist) {
			t.Error("expected receptionist override to drop admin")
		}
		return nil
	})(c)
}
