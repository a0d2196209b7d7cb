//file: internal/match/evaluator.go
package match

import "errors"

// Set-level boolean composition. Conditions in one group frequently
// touch different relations (a tag condition next to a comment text
// condition); combining raw query fragments across such joins risks
// row duplication or wrong OR semantics, so each condition is resolved
// to an entity-id set first and AND/OR become intersection/union.

func intersect(a, b IDSet) IDSet {
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(IDSet, len(small))
	for id := range small {
		if _, ok := large[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func union(a, b IDSet) IDSet {
	out := make(IDSet, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

// compileSafe compiles a condition for bulk matching. A configuration
// defect (unsupported verb, malformed value) degrades to the
// fail-closed predicate so a misconfigured condition can never become
// "matches everything"; storage errors propagate.
func (m *Matcher) compileSafe(cond *Condition, scope Scope) (Predicate, error) {
	pred, err := m.compiler.Compile(cond, scope)
	if err == nil {
		return pred, nil
	}

	var verbErr *UnsupportedVerbError
	var cfgErr *ConfigurationError
	if errors.As(err, &verbErr) || errors.As(err, &cfgErr) {
		m.log.Warn("condition failed to compile, matching nothing",
			"kind", cond.Kind,
			"field", cond.Field,
			"verb", cond.Verb,
			"error", err)
		return matchNone, nil
	}
	return Predicate{}, err
}

// conditionSet resolves one condition to its matching-id set over the
// scoped universe.
func (m *Matcher) conditionSet(cond *Condition, scope Scope, entities []Entity) (IDSet, error) {
	pred, err := m.compileSafe(cond, scope)
	if err != nil {
		return nil, err
	}

	set := make(IDSet)
	for i := range entities {
		ok, err := pred.Matches(&entities[i])
		if err != nil {
			return nil, err
		}
		if ok {
			set[entities[i].ID()] = struct{}{}
		}
	}
	return set, nil
}

// groupSet folds a group's condition sets left to right using each
// condition's join operator. The first condition seeds the
// accumulator; its own join operator is ignored.
func (m *Matcher) groupSet(group *ConditionGroup, scope Scope, entities []Entity) (IDSet, error) {
	var acc IDSet
	for i := range group.Conditions {
		cond := &group.Conditions[i]
		set, err := m.conditionSet(cond, scope, entities)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = set
			continue
		}
		if cond.JoinType == JoinOr {
			acc = union(acc, set)
		} else {
			acc = intersect(acc, set)
		}
	}
	return acc, nil
}

// evaluateGroups folds group sets left to right with each group's
// inter-group operator. Empty groups are the join identity: they leave
// the accumulator untouched, whether combined with AND or OR. A rule
// whose groups are all empty matches the whole universe.
func (m *Matcher) evaluateGroups(rule *Rule, scope Scope, entities []Entity) (IDSet, error) {
	var acc IDSet
	seeded := false

	for gi := range rule.Groups {
		group := &rule.Groups[gi]
		if len(group.Conditions) == 0 {
			continue
		}

		set, err := m.groupSet(group, scope, entities)
		if err != nil {
			return nil, err
		}
		if !seeded {
			acc = set
			seeded = true
			continue
		}
		if group.JoinWith == JoinOr {
			acc = union(acc, set)
		} else {
			acc = intersect(acc, set)
		}
	}

	if !seeded {
		// Vacuous match: the full tenant-scoped universe
		acc = make(IDSet, len(entities))
		for i := range entities {
			acc[entities[i].ID()] = struct{}{}
		}
	}
	return acc, nil
}

// Per-entity evaluation uses the same compiled predicates as the bulk
// path, with left-to-right short-circuiting that preserves the exact
// fold semantics.

func (m *Matcher) groupMatches(group *ConditionGroup, scope Scope, e *Entity) (bool, error) {
	acc := false
	for i := range group.Conditions {
		cond := &group.Conditions[i]

		if i > 0 {
			// A false accumulator stays false through AND; a true one
			// stays true through OR.
			if cond.JoinType == JoinOr {
				if acc {
					continue
				}
			} else if !acc {
				continue
			}
		}

		pred, err := m.compileSafe(cond, scope)
		if err != nil {
			return false, err
		}
		acc, err = pred.Matches(e)
		if err != nil {
			return false, err
		}
	}
	return acc, nil
}

func (m *Matcher) entityMatches(rule *Rule, scope Scope, e *Entity) (bool, error) {
	acc := false
	seeded := false

	for gi := range rule.Groups {
		group := &rule.Groups[gi]
		if len(group.Conditions) == 0 {
			continue
		}

		if seeded {
			if group.JoinWith == JoinOr {
				if acc {
					continue
				}
			} else if !acc {
				continue
			}
		}

		result, err := m.groupMatches(group, scope, e)
		if err != nil {
			return false, err
		}
		acc = result
		seeded = true
	}

	if !seeded {
		return true, nil
	}
	return acc, nil
}
