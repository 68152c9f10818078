package markethours

import (
	"testing"
	"time"
)

func mustManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager()
	if err != nil {
		t.Fatalf("failed to build manager: %v", err)
	}
	return m
}

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}
	return loc
}

func TestCheckWithinHours(t *testing.T) {
	m := mustManager(t)
	loc := eastern(t)

	// A Wednesday at 10:15 ET.
	now := time.Date(2025, 6, 4, 10, 15, 0, 0, loc)

	first := m.Check(now)
	if first.Status != StatusStarted {
		t.Errorf("first in-hours check should report startup, got %s", first.Status)
	}
	if !first.Allowed() {
		t.Error("startup status should allow processing")
	}

	second := m.Check(now.Add(5 * time.Minute))
	if second.Status != StatusOpen {
		t.Errorf("second check should report open market, got %s", second.Status)
	}
	if !second.Allowed() {
		t.Error("open status should allow processing")
	}
}

func TestCheckBeforeOpenAndAfterClose(t *testing.T) {
	m := mustManager(t)
	loc := eastern(t)

	early := m.Check(time.Date(2025, 6, 4, 9, 0, 0, 0, loc))
	if early.Status != StatusClosed || early.Allowed() {
		t.Errorf("9:00 ET should be closed, got %s", early.Status)
	}

	late := m.Check(time.Date(2025, 6, 4, 16, 30, 0, 0, loc))
	if late.Status != StatusClosed || late.Allowed() {
		t.Errorf("16:30 ET should be closed, got %s", late.Status)
	}
}

func TestCheckBoundaryMinutes(t *testing.T) {
	m := mustManager(t)
	loc := eastern(t)

	open := m.Check(time.Date(2025, 6, 4, 9, 30, 0, 0, loc))
	if !open.Allowed() {
		t.Error("9:30 ET exactly should be within hours")
	}

	m.ForceReset()
	close := m.Check(time.Date(2025, 6, 4, 16, 0, 59, 0, loc))
	if !close.Allowed() {
		t.Error("16:00 ET should still be within hours")
	}

	m.ForceReset()
	after := m.Check(time.Date(2025, 6, 4, 16, 1, 0, 0, loc))
	if after.Allowed() {
		t.Error("16:01 ET should be outside hours")
	}
}

func TestCheckWeekend(t *testing.T) {
	m := mustManager(t)
	loc := eastern(t)

	// Saturday midday.
	sat := m.Check(time.Date(2025, 6, 7, 12, 0, 0, 0, loc))
	if sat.Status != StatusClosed {
		t.Errorf("Saturday should be closed, got %s", sat.Status)
	}

	sun := m.Check(time.Date(2025, 6, 8, 12, 0, 0, 0, loc))
	if sun.Status != StatusClosed {
		t.Errorf("Sunday should be closed, got %s", sun.Status)
	}
}

func TestStartupFlagResetsNextDay(t *testing.T) {
	m := mustManager(t)
	loc := eastern(t)

	day1 := time.Date(2025, 6, 4, 10, 0, 0, 0, loc)
	if got := m.Check(day1); got.Status != StatusStarted {
		t.Fatalf("day 1 first check should be startup, got %s", got.Status)
	}
	if got := m.Check(day1.Add(time.Hour)); got.Status != StatusOpen {
		t.Fatalf("day 1 second check should be open, got %s", got.Status)
	}

	day2 := day1.AddDate(0, 0, 1)
	if got := m.Check(day2); got.Status != StatusStarted {
		t.Errorf("new day should report startup again, got %s", got.Status)
	}
}

func TestStartupFlagResetsAfterFivePM(t *testing.T) {
	m := mustManager(t)
	loc := eastern(t)

	morning := time.Date(2025, 6, 4, 10, 0, 0, 0, loc)
	m.Check(morning)

	// An evening check lands outside hours but clears the daily flag.
	evening := time.Date(2025, 6, 4, 17, 30, 0, 0, loc)
	if got := m.Check(evening); got.Status != StatusClosed {
		t.Fatalf("evening should be closed, got %s", got.Status)
	}

	// Same-date re-open is hypothetical, but the flag must be down.
	reopened := time.Date(2025, 6, 4, 15, 0, 0, 0, loc)
	if got := m.Check(reopened); got.Status != StatusStarted {
		t.Errorf("flag should have reset after 17:00, got %s", got.Status)
	}
}

func TestAllow(t *testing.T) {
	m := mustManager(t)
	loc := eastern(t)

	if !m.Allow(time.Date(2025, 6, 4, 11, 0, 0, 0, loc)) {
		t.Error("weekday 11:00 ET should allow")
	}
	if m.Allow(time.Date(2025, 6, 4, 3, 0, 0, 0, loc)) {
		t.Error("weekday 3:00 ET should not allow")
	}
}
