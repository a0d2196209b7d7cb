//file: internal/match/finder_comment.go
package match

import (
	"strings"

	"desk-rule-matcher/internal/store"
)

// CommentScope selects which of a ticket's comments participate in a
// comment text condition.
type CommentScope string

const (
	ScopeDescription CommentScope = "description" // only the original description
	ScopeLatest      CommentScope = "latest"      // most recent comment chronologically
	ScopeAny         CommentScope = "any"         // all comments
)

// commentScopeOf recognizes comment text fields. Accepted forms are
// "comments.<scope>" and "ticket.comments.<scope>".
func commentScopeOf(field string) (CommentScope, bool) {
	trimmed := strings.TrimPrefix(field, "ticket.")
	if !strings.HasPrefix(trimmed, "comments.") {
		return "", false
	}

	switch CommentScope(strings.TrimPrefix(trimmed, "comments.")) {
	case ScopeDescription:
		return ScopeDescription, true
	case ScopeLatest:
		return ScopeLatest, true
	case ScopeAny:
		return ScopeAny, true
	}
	return "", true // comment field with an unknown scope: recognized but never legal
}

// compileComment matches free text across a ticket's comments.
//
// For the "any" scope, contains_all_of is satisfied by the union of
// text across all scoped comments: each term must appear somewhere,
// not necessarily in a single comment. contains_none_of requires that
// zero scoped comments contain any of the terms.
func (c *Compiler) compileComment(cond *Condition, scope Scope, commentScope CommentScope) (Predicate, error) {
	var terms []string
	switch cond.Verb {
	case VerbContains, VerbDoesNotContain:
		terms = []string{cond.Value}
	case VerbContainsAnyOf, VerbContainsAllOf, VerbContainsNoneOf:
		terms = splitTerms(cond.Value)
	default:
		return c.unsupported(cond)
	}
	if len(terms) == 0 {
		return matchNone, &ConfigurationError{Field: "value", Message: "comment conditions require at least one term"}
	}

	verb := cond.Verb

	return predicateFn(func(e *Entity) (bool, error) {
		comments, err := c.store.CommentsFor(scope.TenantID, e.ID())
		if err != nil {
			return false, err
		}
		scoped := scopeComments(comments, commentScope)
		return matchCommentTerms(scoped, verb, terms), nil
	}), nil
}

// scopeComments narrows a chronological comment list to the scope
func scopeComments(comments []store.Comment, scope CommentScope) []store.Comment {
	switch scope {
	case ScopeDescription:
		scoped := make([]store.Comment, 0, 1)
		for _, c := range comments {
			if c.Description {
				scoped = append(scoped, c)
			}
		}
		return scoped
	case ScopeLatest:
		if len(comments) == 0 {
			return nil
		}
		latest := comments[0]
		for _, c := range comments[1:] {
			if c.CreatedAt.After(latest.CreatedAt) {
				latest = c
			}
		}
		return []store.Comment{latest}
	}
	return comments
}

func matchCommentTerms(comments []store.Comment, verb Verb, terms []string) bool {
	anyTermInAnyComment := func() bool {
		for _, c := range comments {
			for _, term := range terms {
				if containsFold(c.Body, term) {
					return true
				}
			}
		}
		return false
	}

	switch verb {
	case VerbContains, VerbContainsAnyOf:
		return anyTermInAnyComment()
	case VerbDoesNotContain, VerbContainsNoneOf:
		// Anti-match across the whole scoped set
		return !anyTermInAnyComment()
	case VerbContainsAllOf:
		// Union semantics: each term may appear in a different comment
		for _, term := range terms {
			found := false
			for _, c := range comments {
				if containsFold(c.Body, term) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	return false
}
