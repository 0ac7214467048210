package utils

import "time"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (s SystemClock) Now() time.Time {
	return time.Now()
}

// MockClock returns FixedNow, advanced by Step on every call when Step is set.
type MockClock struct {
	FixedNow time.Time
	Step     time.Duration
}

func (m *MockClock) Now() time.Time {
	now := m.FixedNow
	m.FixedNow = m.FixedNow.Add(m.Step)
	return now
}

func (m *MockClock) SetNow(now time.Time) {
	m.FixedNow = now
}
