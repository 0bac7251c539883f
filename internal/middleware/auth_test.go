package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth_MissingHeaderRejected(t *testing.T) {
	h := APIKeyAuth(map[string]string{"acme": "secret"})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/v1/acme/scans", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_ValidKeyPassesAndSetsTenant(t *testing.T) {
	var seenTenant string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTenant = GetTenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := APIKeyAuth(map[string]string{"acme": "secret"})(inner)

	req := httptest.NewRequest(http.MethodGet, "/v1/acme/scans", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", seenTenant)
}

func TestAPIKeyAuth_InvalidKeyRejected(t *testing.T) {
	h := APIKeyAuth(map[string]string{"acme": "secret"})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/v1/acme/scans", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuth_OpsPathsSkipAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireValidTenant_RejectsMalformedTenant(t *testing.T) {
	h := RequireValidTenant(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/bad-tenant/scans", nil)
	ctx := context.WithValue(req.Context(), TenantKey, "bad tenant")
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireValidTenant_PassesValidTenant(t *testing.T) {
	h := RequireValidTenant(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/acme/scans", nil)
	ctx := context.WithValue(req.Context(), TenantKey, "acme")
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
