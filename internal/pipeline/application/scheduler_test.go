package application

import (
	"testing"
	"time"
)

func TestSchedulerShouldRunOncePerDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	s := NewScheduler(nil, "02:30", loc, nil)

	at := time.Date(2024, 3, 10, 2, 30, 0, 0, loc)
	if !s.shouldRun(at) {
		t.Fatalf("expected run at the scheduled minute")
	}
	if s.shouldRun(at.Add(time.Minute)) {
		t.Fatalf("expected no run outside the scheduled minute")
	}
	s.lastRun = time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	if s.shouldRun(at.Add(20 * time.Second)) {
		t.Fatalf("expected a single run per day")
	}
	if !s.shouldRun(at.AddDate(0, 0, 1)) {
		t.Fatalf("expected a run on the next day")
	}
}

func TestSchedulerInvalidDailyAt(t *testing.T) {
	s := NewScheduler(nil, "25:99", time.UTC, nil)
	if s.shouldRun(time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)) {
		t.Fatalf("invalid schedule must never run")
	}
}
