//file: internal/match/compiler.go
package match

import (
	"time"

	"desk-rule-matcher/internal/logger"
	"desk-rule-matcher/internal/store"
)

// Predicate is the compiled, evaluable form of a condition. Matches
// reports whether one entity satisfies it; a storage failure is the
// only error it returns.
type Predicate struct {
	matches func(e *Entity) (bool, error)
}

// Matches evaluates the predicate against one entity
func (p Predicate) Matches(e *Entity) (bool, error) {
	return p.matches(e)
}

// matchNone is the fail-closed predicate: a condition that cannot be
// interpreted contributes an empty matching set, never the universe.
var matchNone = Predicate{matches: func(*Entity) (bool, error) { return false, nil }}

// predicateFn wraps a plain match function
func predicateFn(fn func(e *Entity) (bool, error)) Predicate {
	return Predicate{matches: fn}
}

// Compiler validates a condition's (kind, field, verb) combination and
// dispatches it to the finder for its kind. Dispatch is a closed
// table: every kind maps to exactly one finder and there is no
// "matches everything" fallback.
type Compiler struct {
	store store.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewCompiler creates a compiler over a store
func NewCompiler(st store.Store, log *logger.Logger) *Compiler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Compiler{
		store: st,
		log:   log,
		now:   time.Now,
	}
}

// Compile turns one condition into a predicate scoped to a tenant and
// entity universe.
//
// An unrecognized (kind, field, verb) combination yields the
// fail-closed matchNone predicate together with an
// UnsupportedVerbError: bulk matching callers keep the predicate and
// drop the error, validation callers surface the error and reject the
// rule. Both behaviors share this single code path.
func (c *Compiler) Compile(cond *Condition, scope Scope) (Predicate, error) {
	verbs, ok := legalVerbs(cond, scope.EntityType)
	if !ok || !verbAllowed(verbs, cond.Verb) {
		return c.unsupported(cond)
	}

	switch cond.Kind {
	case KindTags:
		return c.compileTags(cond, scope)

	case KindTicketField:
		return c.compileTicketField(cond, scope)

	case KindTimeBased:
		if isWindowVerb(cond.Verb) {
			return c.compileBusinessHours(cond, scope)
		}
		return c.compileElapsed(cond, scope)

	case KindCore:
		if scopeName, ok := commentScopeOf(cond.Field); ok {
			return c.compileComment(cond, scope, scopeName)
		}
		return c.compileCore(cond, scope)
	}

	// Unknown kinds are rejected by legalVerbs above; this is
	// unreachable but stays fail-closed.
	return matchNone, &UnsupportedVerbError{Kind: cond.Kind, Field: cond.Field, Verb: cond.Verb}
}

// unsupported is the shared fail-closed return for finders hitting a
// verb outside their table.
func (c *Compiler) unsupported(cond *Condition) (Predicate, error) {
	c.log.Debug("unsupported condition verb",
		"kind", cond.Kind,
		"field", cond.Field,
		"verb", cond.Verb)
	return matchNone, &UnsupportedVerbError{Kind: cond.Kind, Field: cond.Field, Verb: cond.Verb}
}
