package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gdg-garage/airbadge/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func signedToken(t *testing.T, secret string, userID uint, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tokenString
}

func serve(handler *AuthHandler, req *http.Request) (*httptest.ResponseRecorder, uint, bool) {
	var seen uint
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, ok = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	handler.SessionMiddleware(next).ServeHTTP(rr, req)
	return rr, seen, ok
}

func authCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestSessionMiddleware_SlidingSession(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	handler := NewAuthHandler(cfg, nil, nil)

	t.Run("TokenRenewed", func(t *testing.T) {
		// 11h left is under TokenDuration/2
		tokenString := signedToken(t, cfg.JWTSecret, 1, 11*time.Hour)
		req, _ := http.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tokenString})

		rr, userID, ok := serve(handler, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, ok)
		assert.Equal(t, uint(1), userID)
		c := authCookie(rr)
		if assert.NotNil(t, c, "expected new auth_token cookie to be set") {
			assert.NotEqual(t, tokenString, c.Value)
		}
	})

	t.Run("TokenNotRenewed", func(t *testing.T) {
		tokenString := signedToken(t, cfg.JWTSecret, 1, 13*time.Hour)
		req, _ := http.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tokenString})

		rr, _, ok := serve(handler, req)

		assert.True(t, ok)
		assert.Nil(t, authCookie(rr))
	})
}

func TestSessionMiddleware_Identity(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	handler := NewAuthHandler(cfg, nil, nil)

	t.Run("Bearer", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, cfg.JWTSecret, 5, time.Hour))

		rr, userID, ok := serve(handler, req)

		assert.True(t, ok)
		assert.Equal(t, uint(5), userID)
		assert.Nil(t, authCookie(rr))
	})

	t.Run("Anonymous", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		rr, _, ok := serve(handler, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, ok)
	})

	t.Run("Expired", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: signedToken(t, cfg.JWTSecret, 5, -time.Hour)})

		_, _, ok := serve(handler, req)
		assert.False(t, ok)
	})
}
