//file: internal/match/finder_tags.go
package match

// compileTags matches against an entity's tag set. Because tags are a
// one-to-many relation, membership is computed over the entity's
// resolved tag set, so each qualifying entity is produced exactly once
// no matter how many of its tags satisfy the condition.
func (c *Compiler) compileTags(cond *Condition, scope Scope) (Predicate, error) {
	if len(cond.TagIDs) == 0 {
		return matchNone, &ConfigurationError{Field: "tagIds", Message: "tag conditions require at least one tag id"}
	}

	wanted := make(map[string]struct{}, len(cond.TagIDs))
	for _, id := range cond.TagIDs {
		wanted[id] = struct{}{}
	}

	var test func(overlap int) bool
	switch cond.Verb {
	case VerbContainsAnyOf:
		test = func(overlap int) bool { return overlap > 0 }
	case VerbContainsAllOf:
		// Superset check: every wanted tag present, regardless of order
		test = func(overlap int) bool { return overlap == len(wanted) }
	case VerbContainsNoneOf:
		// Exact complement of contains_any_of
		test = func(overlap int) bool { return overlap == 0 }
	default:
		return c.unsupported(cond)
	}

	return predicateFn(func(e *Entity) (bool, error) {
		tags, err := c.store.TagsFor(scope.TenantID, scope.EntityType, e.ID())
		if err != nil {
			return false, err
		}

		overlap := 0
		seen := make(map[string]struct{}, len(tags))
		for _, tag := range tags {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			if _, ok := wanted[tag]; ok {
				overlap++
			}
		}
		return test(overlap), nil
	}), nil
}
