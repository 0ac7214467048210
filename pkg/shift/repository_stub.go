package shift

import (
	"context"
	"sort"
	"sync"
)

// RepositoryStub keeps shifts in memory. Charged shifts are reported by the ChargedShifts func,
// which lets service tests plug the ledger stub in as the source of truth.
type RepositoryStub struct {
	mu            sync.RWMutex
	shifts        map[int]Shift
	ChargedShifts func(shiftId int) bool
	// ListErr, keyed by tenant id, fails ListCompletedShiftsWithoutTransaction for that tenant.
	ListErr map[int]error
}

func NewRepositoryStub(shifts ...Shift) *RepositoryStub {
	s := &RepositoryStub{shifts: map[int]Shift{}}
	for _, sh := range shifts {
		s.shifts[sh.Id] = sh
	}
	return s
}

func (s *RepositoryStub) Add(sh Shift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[sh.Id] = sh
}

func (s *RepositoryStub) GetCompletedShift(ctx context.Context, tenantId int, shiftId int) (Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shifts[shiftId]
	if !ok || sh.TenantId != tenantId || sh.Status != StatusCompleted {
		return Shift{}, ErrShiftNotFound
	}
	return sh, nil
}

func (s *RepositoryStub) ListCompletedShiftsWithoutTransaction(ctx context.Context, tenantId int) ([]Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ListErr[tenantId]; err != nil {
		return nil, err
	}
	var result []Shift
	for _, sh := range s.shifts {
		if sh.TenantId != tenantId || sh.Status != StatusCompleted {
			continue
		}
		if s.ChargedShifts != nil && s.ChargedShifts(sh.Id) {
			continue
		}
		result = append(result, sh)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}
