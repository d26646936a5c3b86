package mw_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/kidora-labs/notification/internal/transport/mw"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func invoke(t *testing.T, authHeader string, middlewares ...echo.MiddlewareFunc) (error, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	captured := map[string]any{}
	handler := func(c echo.Context) error {
		captured[mw.CtxUserID] = c.Get(mw.CtxUserID)
		captured[mw.CtxRole] = c.Get(mw.CtxRole)
		return c.NoContent(http.StatusOK)
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler(c), captured
}

func TestJWTAuth_ValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":  "p1",
		"role": "parent",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	err, captured := invoke(t, "Bearer "+token, mw.JWTAuth(testSecret))
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if captured[mw.CtxUserID] != "p1" || captured[mw.CtxRole] != "parent" {
		t.Fatalf("claims not propagated: %v", captured)
	}
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	err, _ := invoke(t, "", mw.JWTAuth(testSecret))
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTAuth_WrongSecret(t *testing.T) {
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "p1", "role": "parent", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))

	err, _ := invoke(t, "Bearer "+token, mw.JWTAuth(testSecret))
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "p1", "role": "parent", "exp": time.Now().Add(-time.Hour).Unix(),
	})

	err, _ := invoke(t, "Bearer "+token, mw.JWTAuth(testSecret))
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestJWTAuth_MissingRole(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "p1", "exp": time.Now().Add(time.Hour).Unix(),
	})

	err, _ := invoke(t, "Bearer "+token, mw.JWTAuth(testSecret))
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestRequireRole(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "u1", "role": "child", "exp": time.Now().Add(time.Hour).Unix(),
	})

	err, _ := invoke(t, "Bearer "+token, mw.JWTAuth(testSecret), mw.RequireRole("admin"))
	assertHTTPStatus(t, err, http.StatusForbidden)

	err, _ = invoke(t, "Bearer "+token, mw.JWTAuth(testSecret), mw.RequireRole("admin", "child"))
	if err != nil {
		t.Fatalf("allowed role rejected: %v", err)
	}
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if httpErr.Code != want {
		t.Fatalf("expected status %d, got %d", want, httpErr.Code)
	}
}
