//file: internal/match/finder_field.go
package match

import (
	"strconv"
	"strings"

	"desk-rule-matcher/internal/store"
)

// compileTicketField matches tenant-defined custom fields. The verb
// set depends on the field's declared type, so the declaration is
// resolved first; a deleted field yields the fail-closed predicate so
// existing rules keep functioning.
func (c *Compiler) compileTicketField(cond *Condition, scope Scope) (Predicate, error) {
	field, err := c.store.TicketField(scope.TenantID, cond.Field)
	if err != nil {
		return matchNone, err
	}
	if field == nil {
		c.log.Debug("condition references a missing custom field",
			"tenant", scope.TenantID,
			"field", cond.Field)
		return matchNone, nil
	}

	switch field.Type {
	case store.FieldText, store.FieldTextarea:
		return c.compileTextField(cond, scope)
	case store.FieldDropdown:
		return c.compileDropdownField(cond, scope)
	case store.FieldMultiSelect:
		return c.compileMultiSelectField(cond, scope)
	case store.FieldNumber:
		return c.compileNumberField(cond, scope)
	}
	return c.unsupported(cond)
}

// fieldResponseOf loads the stored value for one entity; a nil result
// means the entity never answered the field.
func (c *Compiler) fieldResponseOf(cond *Condition, scope Scope, e *Entity) (*store.FieldResponse, error) {
	return c.store.FieldResponse(scope.TenantID, cond.Field, e.ID())
}

func (c *Compiler) compileTextField(cond *Condition, scope Scope) (Predicate, error) {
	target := cond.Value

	var test func(value string) bool
	switch cond.Verb {
	case VerbIs:
		test = func(value string) bool { return strings.EqualFold(value, target) }
	case VerbContains:
		test = func(value string) bool { return containsFold(value, target) }
	default:
		return c.unsupported(cond)
	}

	return predicateFn(func(e *Entity) (bool, error) {
		resp, err := c.fieldResponseOf(cond, scope, e)
		if err != nil {
			return false, err
		}
		return resp != nil && test(resp.Value), nil
	}), nil
}

func (c *Compiler) compileDropdownField(cond *Condition, scope Scope) (Predicate, error) {
	target := cond.Value

	var want bool
	switch cond.Verb {
	case VerbIs:
		want = true
	case VerbIsNot:
		want = false
	default:
		return c.unsupported(cond)
	}

	return predicateFn(func(e *Entity) (bool, error) {
		resp, err := c.fieldResponseOf(cond, scope, e)
		if err != nil {
			return false, err
		}
		if resp == nil {
			return false, nil
		}
		selected := false
		for _, id := range resp.OptionIDs {
			if id == target {
				selected = true
				break
			}
		}
		return selected == want, nil
	}), nil
}

func (c *Compiler) compileMultiSelectField(cond *Condition, scope Scope) (Predicate, error) {
	var terms []string
	switch cond.Verb {
	case VerbIs:
		terms = []string{cond.Value}
	case VerbContainsAnyOf, VerbContainsAllOf, VerbContainsNoneOf:
		terms = splitTerms(cond.Value)
	default:
		return c.unsupported(cond)
	}
	if len(terms) == 0 {
		return matchNone, &ConfigurationError{Field: "value", Message: "multi-select conditions require at least one option id"}
	}

	verb := cond.Verb

	return predicateFn(func(e *Entity) (bool, error) {
		resp, err := c.fieldResponseOf(cond, scope, e)
		if err != nil {
			return false, err
		}

		selected := make(map[string]struct{})
		if resp != nil {
			for _, id := range resp.OptionIDs {
				selected[id] = struct{}{}
			}
		}

		overlap := 0
		for _, term := range terms {
			if _, ok := selected[term]; ok {
				overlap++
			}
		}

		switch verb {
		case VerbIs, VerbContainsAnyOf:
			return overlap > 0, nil
		case VerbContainsAllOf:
			return overlap == len(terms), nil
		case VerbContainsNoneOf:
			return overlap == 0, nil
		}
		return false, nil
	}), nil
}

// compileNumberField compares the stored value cast to a number; the
// raw value is persisted as text.
func (c *Compiler) compileNumberField(cond *Condition, scope Scope) (Predicate, error) {
	target, err := strconv.ParseFloat(strings.TrimSpace(cond.Value), 64)
	if err != nil {
		return matchNone, &ConfigurationError{Field: "value", Message: "number conditions require a numeric value"}
	}

	var test func(value float64) bool
	switch cond.Verb {
	case VerbIs:
		test = func(value float64) bool { return value == target }
	case VerbLessThan:
		test = func(value float64) bool { return value < target }
	case VerbGreaterThan:
		test = func(value float64) bool { return value > target }
	default:
		return c.unsupported(cond)
	}

	return predicateFn(func(e *Entity) (bool, error) {
		resp, err := c.fieldResponseOf(cond, scope, e)
		if err != nil {
			return false, err
		}
		if resp == nil {
			return false, nil
		}
		value, err2 := strconv.ParseFloat(strings.TrimSpace(resp.Value), 64)
		if err2 != nil {
			// Unparseable stored value fails closed
			return false, nil
		}
		return test(value), nil
	}), nil
}
