package tenant

import (
	"time"
	_ "time/tzdata"
)

// Tenant is an isolated customer organisation. Every ledger row is partitioned by its Id.
type Tenant struct {
	Id   int
	Name string
	// Timezone is the IANA zone shifts are classified in. Empty means the configured default.
	Timezone string
	// AdminUserId is the identity transactions are attributed to when a shift has no assignee.
	AdminUserId *int
}

// Location returns the tenant's timezone, falling back to def when unset or unknown.
func (t Tenant) Location(def *time.Location) *time.Location {
	if t.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return def
	}
	return loc
}
