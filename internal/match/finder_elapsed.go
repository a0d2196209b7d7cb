//file: internal/match/finder_elapsed.go
package match

import (
	"strconv"
	"strings"
	"time"

	"desk-rule-matcher/internal/store"
)

// stateHoursPrefix marks fields of the form status.hours.<state>
const stateHoursPrefix = "status.hours."

func isStateHoursField(field string) bool {
	return strings.HasPrefix(field, stateHoursPrefix) &&
		len(field) > len(stateHoursPrefix)
}

// compileElapsed computes elapsed wall-clock hours for
// status.hours.<state> fields and named timestamp fields.
//
// For a state field the state must be currently active; the entry
// instant is the most recent recorded transition into that state,
// falling back to the creation instant when the ticket has occupied
// the state since creation. The pseudo-state "created" and the named
// timestamp fields measure from their instant regardless of current
// state. Elapsed hours are floor((now - instant) in hours) and the
// comparison is integral; no business-hours exclusion applies.
func (c *Compiler) compileElapsed(cond *Condition, scope Scope) (Predicate, error) {
	threshold, err := strconv.ParseInt(strings.TrimSpace(cond.Value), 10, 64)
	if err != nil {
		return matchNone, &ConfigurationError{Field: "value", Message: "time conditions require a whole number of hours"}
	}

	var test func(elapsed int64) bool
	switch cond.Verb {
	case VerbIs:
		test = func(elapsed int64) bool { return elapsed == threshold }
	case VerbLessThan:
		test = func(elapsed int64) bool { return elapsed < threshold }
	case VerbGreaterThan:
		test = func(elapsed int64) bool { return elapsed > threshold }
	default:
		return c.unsupported(cond)
	}

	field := cond.Field

	return predicateFn(func(e *Entity) (bool, error) {
		instant, ok, err := c.entryInstant(e, field, scope)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}

		elapsed := int64(c.now().Sub(instant).Hours())
		if elapsed < 0 {
			return false, nil
		}
		return test(elapsed), nil
	}), nil
}

// entryInstant resolves the instant a time-based field measures from.
// ok is false when the field does not currently apply to the entity.
func (c *Compiler) entryInstant(e *Entity, field string, scope Scope) (time.Time, bool, error) {
	if e.Type == store.EntityUser {
		if field == "created" {
			return e.User.CreatedAt, true, nil
		}
		return time.Time{}, false, nil
	}

	t := e.Ticket

	if isStateHoursField(field) {
		state := field[len(stateHoursPrefix):]
		if state == "created" {
			// Pseudo-state: measures from creation, ignores current state
			return t.CreatedAt, true, nil
		}
		if !strings.EqualFold(t.Status, state) {
			// The queried state must be currently active
			return time.Time{}, false, nil
		}

		transitions, err := c.store.TransitionsFor(scope.TenantID, t.ID)
		if err != nil {
			return time.Time{}, false, err
		}
		entered := t.CreatedAt
		for _, tr := range transitions {
			if strings.EqualFold(tr.ToStatus, state) && tr.At.After(entered) {
				entered = tr.At
			}
		}
		return entered, true, nil
	}

	// Named timestamp fields ignore current state; a nil timestamp
	// means the event never happened and the condition is false.
	switch field {
	case "created":
		return t.CreatedAt, true, nil
	case "assigned_at":
		return derefInstant(t.AssignedAt)
	case "last_assigned_at":
		return derefInstant(t.LastAssignedAt)
	case "last_requester_updated_at":
		return derefInstant(t.LastRequesterUpdatedAt)
	case "updated_at_by_agent_or_requester":
		return derefInstant(t.UpdatedByAgentOrRequesterAt)
	}
	return time.Time{}, false, nil
}

func derefInstant(ts *time.Time) (time.Time, bool, error) {
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}
