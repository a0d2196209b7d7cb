//file: internal/match/finder_hours.go
package match

import (
	"strconv"
	"strings"
	"time"

	"desk-rule-matcher/internal/store"
)

// compileBusinessHours evaluates whether the entity's creation instant
// falls within the weekly window of a named business-hour schedule.
// The condition value identifies the schedule; a schedule that no
// longer exists makes both during and not_during match nothing, so
// rules keep functioning after a referenced schedule is deleted.
func (c *Compiler) compileBusinessHours(cond *Condition, scope Scope) (Predicate, error) {
	if cond.Verb == VerbAnyTime {
		// Unconditionally true
		return predicateFn(func(*Entity) (bool, error) { return true, nil }), nil
	}

	scheduleID := cond.Value
	wantDuring := cond.Verb == VerbDuring

	return predicateFn(func(e *Entity) (bool, error) {
		schedule, err := c.store.Schedule(scope.TenantID, scheduleID)
		if err != nil {
			return false, err
		}
		if schedule == nil {
			return false, nil
		}

		during, ok := scheduleCovers(schedule, createdInstant(e))
		if !ok {
			// Unresolvable schedule configuration fails closed
			return false, nil
		}
		// during and not_during partition the universe exactly for a
		// resolvable schedule
		return during == wantDuring, nil
	}), nil
}

func createdInstant(e *Entity) time.Time {
	if e.Type == store.EntityUser {
		return e.User.CreatedAt
	}
	return e.Ticket.CreatedAt
}

// scheduleCovers reports whether ts falls inside the schedule's active
// window, honoring the schedule time zone, per-day enablement and
// holiday exclusions. ok is false when the schedule configuration is
// unusable (bad zone or window format).
func scheduleCovers(s *store.BusinessSchedule, ts time.Time) (covered, ok bool) {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return false, false
	}
	local := ts.In(loc)

	// A holiday forces "not during" for the whole calendar date
	date := local.Format("2006-01-02")
	for _, holiday := range s.Holidays {
		if holiday == date {
			return false, true
		}
	}

	day := s.Days[int(local.Weekday())]
	if !day.Enabled {
		return false, true
	}

	start, sok := minutesOfDay(day.Start)
	end, eok := minutesOfDay(day.End)
	if !sok || !eok {
		return false, false
	}

	minute := local.Hour()*60 + local.Minute()
	return minute >= start && minute < end, true
}

// minutesOfDay parses "15:04" into minutes since midnight
func minutesOfDay(value string) (int, bool) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 24 || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
