//file: internal/match/finder_core.go
package match

import (
	"fmt"
	"strconv"
	"strings"

	"desk-rule-matcher/internal/store"
)

// compileCore resolves built-in scalar/enum attributes and dotted
// relation paths (requester.email, agent.available_for_desk). The path
// is split into relation hops plus a terminal attribute; a hop that
// cannot be resolved (e.g. agent.* on an unassigned ticket) fails the
// condition rather than erroring.
func (c *Compiler) compileCore(cond *Condition, scope Scope) (Predicate, error) {
	if cond.Field == "subject_or_description" {
		return c.compileSubjectOrDescription(cond)
	}

	switch cond.Verb {
	case VerbIs, VerbIsNot, VerbContains, VerbDoesNotContain,
		VerbStartsWith, VerbEndsWith, VerbLessThan, VerbGreaterThan:
	default:
		return c.unsupported(cond)
	}

	fp := cond.fieldPathOf()
	verb := cond.Verb
	target := cond.Value

	return predicateFn(func(e *Entity) (bool, error) {
		value, ok, err := c.resolveCoreValue(e, fp, scope)
		if err != nil {
			return false, err
		}
		if !ok {
			// Broken relation hop: the condition is false, not an error
			return false, nil
		}
		return compareCore(value, verb, target), nil
	}), nil
}

// compileSubjectOrDescription handles the derived field meaning
// "subject OR the ticket's description text": contains matches either,
// does_not_contain requires neither to match.
func (c *Compiler) compileSubjectOrDescription(cond *Condition) (Predicate, error) {
	target := cond.Value

	switch cond.Verb {
	case VerbContains:
		return predicateFn(func(e *Entity) (bool, error) {
			return containsFold(e.Ticket.Subject, target) || containsFold(e.Ticket.Description, target), nil
		}), nil
	case VerbDoesNotContain:
		return predicateFn(func(e *Entity) (bool, error) {
			return !containsFold(e.Ticket.Subject, target) && !containsFold(e.Ticket.Description, target), nil
		}), nil
	}
	return c.unsupported(cond)
}

// resolveCoreValue walks the relation hops of a field path and returns
// the terminal attribute value. ok is false when a hop or attribute
// cannot be resolved.
func (c *Compiler) resolveCoreValue(e *Entity, fp *fieldPath, scope Scope) (interface{}, bool, error) {
	if e.Type == store.EntityUser {
		if len(fp.hops) != 0 {
			return nil, false, nil
		}
		value, ok := userAttr(e.User, fp.attr)
		return value, ok, nil
	}

	if len(fp.hops) == 0 {
		value, ok := ticketAttr(e.Ticket, fp.attr)
		return value, ok, nil
	}

	// Single relation hop from ticket to a user record
	var userID string
	switch fp.hops[0] {
	case "requester":
		userID = e.Ticket.RequesterID
	case "agent":
		userID = e.Ticket.AgentID
	default:
		return nil, false, nil
	}
	if len(fp.hops) > 1 || userID == "" {
		return nil, false, nil
	}

	user, err := c.store.User(scope.TenantID, userID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, nil
	}
	value, ok := userAttr(user, fp.attr)
	return value, ok, nil
}

func ticketAttr(t *store.Ticket, attr string) (interface{}, bool) {
	switch attr {
	case "subject":
		return t.Subject, true
	case "description":
		return t.Description, true
	case "status":
		return t.Status, true
	case "priority":
		return t.Priority, true
	case "source":
		return t.Source, true
	case "agent":
		return t.AgentID, true
	case "group":
		return t.GroupID, true
	case "requester":
		return t.RequesterID, true
	}
	return nil, false
}

func userAttr(u *store.User, attr string) (interface{}, bool) {
	switch attr {
	case "name":
		return u.Name, true
	case "email":
		return u.Email, true
	case "language":
		return u.Language, true
	case "time_zone":
		return u.TimeZone, true
	case "available_for_desk":
		return u.AvailableForDesk, true
	}
	return nil, false
}

// compareCore applies a verb to a resolved attribute and the condition
// value. String comparisons are case-insensitive; numeric comparisons
// cast both sides explicitly and fail closed on unparseable input.
func compareCore(value interface{}, verb Verb, target string) bool {
	switch verb {
	case VerbIs:
		return coreEquals(value, target)
	case VerbIsNot:
		return !coreEquals(value, target)
	case VerbContains:
		return containsFold(toString(value), target)
	case VerbDoesNotContain:
		return !containsFold(toString(value), target)
	case VerbStartsWith:
		return strings.HasPrefix(strings.ToLower(toString(value)), strings.ToLower(target))
	case VerbEndsWith:
		return strings.HasSuffix(strings.ToLower(toString(value)), strings.ToLower(target))
	case VerbLessThan:
		a, aok := toFloat64(value)
		b, bok := toFloat64(target)
		return aok && bok && a < b
	case VerbGreaterThan:
		a, aok := toFloat64(value)
		b, bok := toFloat64(target)
		return aok && bok && a > b
	}
	return false
}

func coreEquals(value interface{}, target string) bool {
	switch v := value.(type) {
	case bool:
		b, err := strconv.ParseBool(target)
		return err == nil && v == b
	case int:
		n, err := strconv.Atoi(target)
		return err == nil && v == n
	default:
		return strings.EqualFold(toString(value), target)
	}
}

// Type coercion helpers

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
