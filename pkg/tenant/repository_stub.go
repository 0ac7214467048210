package tenant

import (
	"context"
	"sort"
)

type RepositoryStub struct {
	tenants map[int]Tenant
}

func NewRepositoryStub(tenants ...Tenant) *RepositoryStub {
	s := &RepositoryStub{tenants: map[int]Tenant{}}
	for _, t := range tenants {
		s.tenants[t.Id] = t
	}
	return s
}

func (s *RepositoryStub) Add(t Tenant) {
	s.tenants[t.Id] = t
}

func (s *RepositoryStub) GetTenant(ctx context.Context, tenantId int) (Tenant, error) {
	if t, ok := s.tenants[tenantId]; ok {
		return t, nil
	}
	return Tenant{}, ErrTenantNotFound
}

func (s *RepositoryStub) ListTenantIds(ctx context.Context) ([]int, error) {
	ids := make([]int, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
