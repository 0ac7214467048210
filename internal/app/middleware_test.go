package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/careledger/ndis-ledger/pkg/tenant"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func newTestRouter() *mux.Router {
	r := mux.NewRouter()
	SetupMiddleware(r)
	r.HandleFunc("/whoami", func(w http.ResponseWriter, req *http.Request) {
		tenantId, tenantErr := tenant.CurrentId(req.Context())
		userId, userErr := tenant.CurrentUserId(req.Context())
		fmt.Fprintf(w, "%d/%v %d/%v", tenantId, tenantErr == nil, userId, userErr == nil)
	})
	return r
}

func TestSetupMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		tenant string
		user   string
		status int
		body   string
	}{
		{"tenant and user", "3", "8", http.StatusOK, "3/true 8/true"},
		{"tenant only", "3", "", http.StatusOK, "3/true 0/false"},
		{"no headers", "", "", http.StatusOK, "0/false 0/false"},
		{"malformed tenant", "abc", "", http.StatusBadRequest, ""},
		{"negative user", "3", "-1", http.StatusBadRequest, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			// given
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if c.tenant != "" {
				req.Header.Set("X-Tenant-Id", c.tenant)
			}
			if c.user != "" {
				req.Header.Set("X-User-Id", c.user)
			}
			rec := httptest.NewRecorder()

			// when
			newTestRouter().ServeHTTP(rec, req)

			// then
			assert.Equal(t, c.status, rec.Code)
			if c.body != "" {
				assert.Equal(t, c.body, rec.Body.String())
			}
		})
	}
}
