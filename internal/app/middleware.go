package app

import (
	"net/http"
	"strconv"

	"github.com/careledger/ndis-ledger/pkg/tenant"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	tenantIdHeader = "X-Tenant-Id"
	userIdHeader   = "X-User-Id"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router) {

	// Propagate X-Tenant-Id and X-User-Id headers into context for downstream services
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()

			if value := req.Header.Get(tenantIdHeader); value != "" {
				tenantId, err := strconv.Atoi(value)
				if err != nil || tenantId <= 0 {
					log.Debugf("invalid tenant header: %q", value)
					http.Error(w, "invalid tenant id", http.StatusBadRequest)
					return
				}
				ctx = tenant.WithTenant(ctx, tenantId)
			}

			if value := req.Header.Get(userIdHeader); value != "" {
				userId, err := strconv.Atoi(value)
				if err != nil || userId <= 0 {
					log.Debugf("invalid user header: %q", value)
					http.Error(w, "invalid user id", http.StatusBadRequest)
					return
				}
				ctx = tenant.WithUser(ctx, userId)
			}

			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
}
