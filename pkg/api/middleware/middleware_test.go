package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	authproviders "github.com/cbodonnell/gameflow/pkg/auth/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware_StoresClaims(t *testing.T) {
	var uid string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		uid = claims.UID
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewAuthMiddleware(authproviders.NewStaticAuthProvider("secret", "operator"))(next)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "operator", uid)
}

func TestClaimsFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	claims, ok := ClaimsFromContext(req.Context())
	assert.False(t, ok)
	assert.Nil(t, claims)
}
