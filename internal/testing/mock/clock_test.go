package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() returned time outside expected range")
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	assert.True(t, clock.Now().Equal(start))

	clock.Advance(90 * time.Minute)
	assert.True(t, clock.Now().Equal(start.Add(90*time.Minute)))

	later := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(later)
	assert.True(t, clock.Now().Equal(later))
}

func TestNewMockClock_ZeroUsesNow(t *testing.T) {
	clock := NewMockClock(time.Time{})
	assert.WithinDuration(t, time.Now(), clock.Now(), time.Second)
}
