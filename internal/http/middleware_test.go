package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeblocks/internal/app"
	"codeblocks/pkg/auth"
)

func testConfig() app.Config {
	return app.Config{
		JWTSecret: "test-secret",
		CORSAllow: []string{"http://localhost:3000"},
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	mw := NewMiddleware(testConfig())
	h := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/codeblocks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	mw := NewMiddleware(testConfig())
	h := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/codeblocks", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewarePassesUserID(t *testing.T) {
	cfg := testConfig()
	mw := NewMiddleware(cfg)

	var gotUID string
	h := mw.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID = auth.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tok, err := auth.New(cfg.JWTSecret).Sign("user-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/codeblocks", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotUID)
}
