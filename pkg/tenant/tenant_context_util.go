package tenant

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const (
	TenantIdKey contextKey = "tenantId"
	UserIdKey   contextKey = "userId"
)

var ErrNoTenant = errors.New("tenant not found in context")
var ErrNoUser = errors.New("acting user not found in context")

// CurrentId retrieves the tenant id from the context. Returns ErrNoTenant if not present.
func CurrentId(ctx context.Context) (int, error) {
	id, ok := ctx.Value(TenantIdKey).(int)
	if !ok {
		log.Trace("tenant not found in context")
		return 0, ErrNoTenant
	}
	return id, nil
}

// CurrentUserId retrieves the acting user id from the context. Returns ErrNoUser if not present.
func CurrentUserId(ctx context.Context) (int, error) {
	id, ok := ctx.Value(UserIdKey).(int)
	if !ok {
		log.Trace("acting user not found in context")
		return 0, ErrNoUser
	}
	return id, nil
}

func WithTenant(ctx context.Context, tenantId int) context.Context {
	return context.WithValue(ctx, TenantIdKey, tenantId)
}

func WithUser(ctx context.Context, userId int) context.Context {
	return context.WithValue(ctx, UserIdKey, userId)
}
