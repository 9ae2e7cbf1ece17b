package discovery

import (
	"time"

	"skirmish/internal/config"
)

// Schedule is the tournament lane's active window: a set of weekdays
// (0=Monday per the tournament calendar) and a daily HH:MM range that
// may wrap past midnight. A disabled schedule is always in window.
type Schedule struct {
	enabled bool
	days    [7]bool
	start   int // Minutes from midnight
	end     int
}

// NewSchedule builds the window from validated config. Config validation
// already rejected bad clock strings, so parse errors here disable the
// schedule rather than failing.
func NewSchedule(cfg config.TournamentDiscoveryConfig) Schedule {
	s := Schedule{enabled: cfg.ScheduleEnabled}
	if !s.enabled {
		return s
	}
	for _, d := range cfg.ScheduleDays {
		if d >= 0 && d < 7 {
			s.days[d] = true
		}
	}
	var err error
	if s.start, err = config.ParseClock(cfg.ScheduleStart); err != nil {
		return Schedule{}
	}
	if s.end, err = config.ParseClock(cfg.ScheduleEnd); err != nil {
		return Schedule{}
	}
	return s
}

// mondayIndexed converts Go's Sunday-first weekday to the 0=Monday
// convention the schedule mask uses.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// InWindow reports whether t falls inside the schedule. A window whose
// end is at or before its start wraps past midnight and belongs to the
// day it started on.
func (s Schedule) InWindow(t time.Time) bool {
	if !s.enabled {
		return true
	}

	day := mondayIndexed(t.Weekday())
	minute := t.Hour()*60 + t.Minute()

	if s.start < s.end {
		return s.days[day] && minute >= s.start && minute < s.end
	}

	// Wrapped window: the late half counts on the start day, the early
	// half on the morning after it.
	if s.days[day] && minute >= s.start {
		return true
	}
	prev := (day + 6) % 7
	return s.days[prev] && minute < s.end
}
