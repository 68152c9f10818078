// Package markethours gates alert processing on US equity trading hours.
// The webhook path consults it as a boolean predicate before any model call.
package markethours

import (
	"fmt"
	"sync"
	"time"
)

// Status values reported by the gate.
type Status string

const (
	StatusStarted Status = "TRADING_BOT_STARTED"
	StatusOpen    Status = "WITHIN_MARKET_HOURS"
	StatusClosed  Status = "OUTSIDE_MARKET_HOURS"
)

// Result carries the gate decision plus display text for notifications.
type Result struct {
	Status      Status `json:"status"`
	CurrentTime string `json:"current_time"`
	Message     string `json:"message"`
}

// Allowed reports whether trade processing may proceed.
func (r Result) Allowed() bool {
	return r.Status == StatusStarted || r.Status == StatusOpen
}

// Manager tracks the 9:30-16:00 ET weekday window and a once-per-day startup
// flag that distinguishes the first in-hours alert of the day.
type Manager struct {
	mu            sync.Mutex
	loc           *time.Location
	startedToday  bool
	lastResetDate string
}

// Trading window boundaries, minutes since midnight Eastern.
const (
	openMinutes  = 9*60 + 30
	closeMinutes = 16 * 60
	resetMinutes = 17 * 60 // daily flag reset after the close
)

// NewManager creates a gate over the US/Eastern market calendar.
func NewManager() (*Manager, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone: %w", err)
	}
	return &Manager{loc: loc}, nil
}

// Check evaluates market hours at the given instant and manages the daily
// startup flag.
func (m *Manager) Check(now time.Time) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	et := now.In(m.loc)
	m.resetDailyFlagIfNeeded(et)

	current := et.Format("2006-01-02 15:04:05 MST")

	if !withinMarketHours(et) {
		return Result{
			Status:      StatusClosed,
			CurrentTime: current,
			Message:     "Markets closed. Bot only processes trades during market hours (9:30 AM - 4:00 PM ET).",
		}
	}

	if !m.startedToday {
		m.startedToday = true
		return Result{
			Status:      StatusStarted,
			CurrentTime: current,
			Message:     "Trading bot started. Bot only processes trades during market hours (9:30 AM - 4:00 PM ET).",
		}
	}
	return Result{
		Status:      StatusOpen,
		CurrentTime: current,
		Message:     "Within market hours. Proceeding with trade analysis.",
	}
}

// Allow is the predicate form of Check.
func (m *Manager) Allow(now time.Time) bool {
	return m.Check(now).Allowed()
}

// ForceReset clears the daily flag, useful for tests and manual overrides.
func (m *Manager) ForceReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedToday = false
	m.lastResetDate = ""
}

func (m *Manager) resetDailyFlagIfNeeded(et time.Time) {
	date := et.Format("2006-01-02")
	if m.lastResetDate != date {
		m.startedToday = false
		m.lastResetDate = date
	} else if minutesOfDay(et) >= resetMinutes {
		m.startedToday = false
	}
}

func withinMarketHours(et time.Time) bool {
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}
	mins := minutesOfDay(et)
	return mins >= openMinutes && mins <= closeMinutes
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
