package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-rule-matcher/internal/store"
)

func fieldRule(fieldID string, verb Verb, value string) *Rule {
	return ticketRule("acme", group("", Condition{
		Kind: KindTicketField, Field: fieldID, Verb: verb, Value: value,
	}))
}

func TestTextFieldVerbs(t *testing.T) {
	st, m := newTestMatcher()
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open"})
	st.AddTicket(store.Ticket{ID: "t2", TenantID: "acme", Status: "open"})
	st.AddTicketField(store.TicketField{ID: "f-env", TenantID: "acme", Label: "Environment", Type: store.FieldText})
	st.AddFieldResponse(store.FieldResponse{FieldID: "f-env", TenantID: "acme", EntityID: "t1", Value: "Production EU"})

	set, err := m.MatchingIDs(fieldRule("f-env", VerbIs, "production eu"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))

	set, err = m.MatchingIDs(fieldRule("f-env", VerbContains, "prod"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))

	// t2 never answered the field and can only fail the condition
	matched, err := m.Matches(fieldRule("f-env", VerbContains, "prod"), "t2")
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestDropdownFieldVerbs(t *testing.T) {
	st, m := newTestMatcher()
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open"})
	st.AddTicket(store.Ticket{ID: "t2", TenantID: "acme", Status: "open"})
	st.AddTicketField(store.TicketField{ID: "f-sev", TenantID: "acme", Label: "Severity", Type: store.FieldDropdown})
	st.AddFieldResponse(store.FieldResponse{FieldID: "f-sev", TenantID: "acme", EntityID: "t1", OptionIDs: []string{"opt-high"}})
	st.AddFieldResponse(store.FieldResponse{FieldID: "f-sev", TenantID: "acme", EntityID: "t2", OptionIDs: []string{"opt-low"}})

	set, err := m.MatchingIDs(fieldRule("f-sev", VerbIs, "opt-high"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))

	set, err = m.MatchingIDs(fieldRule("f-sev", VerbIsNot, "opt-high"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t2"}, ids(set))
}

func TestMultiSelectFieldVerbs(t *testing.T) {
	st, m := newTestMatcher()
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open"})
	st.AddTicket(store.Ticket{ID: "t2", TenantID: "acme", Status: "open"})
	st.AddTicketField(store.TicketField{ID: "f-areas", TenantID: "acme", Label: "Affected areas", Type: store.FieldMultiSelect})
	st.AddFieldResponse(store.FieldResponse{FieldID: "f-areas", TenantID: "acme", EntityID: "t1", OptionIDs: []string{"billing", "login"}})
	st.AddFieldResponse(store.FieldResponse{FieldID: "f-areas", TenantID: "acme", EntityID: "t2", OptionIDs: []string{"search"}})

	tests := []struct {
		name  string
		verb  Verb
		value string
		want  []string
	}{
		{"is means membership", VerbIs, "billing", []string{"t1"}},
		{"any_of", VerbContainsAnyOf, "billing||search", []string{"t1", "t2"}},
		{"all_of", VerbContainsAllOf, "billing||login", []string{"t1"}},
		{"all_of partial", VerbContainsAllOf, "billing||search", nil},
		{"none_of", VerbContainsNoneOf, "billing||login", []string{"t2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := m.MatchingIDs(fieldRule("f-areas", tt.verb, tt.value))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(set))
		})
	}
}

func TestNumberFieldVerbs(t *testing.T) {
	st, m := newTestMatcher()
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open"})
	st.AddTicket(store.Ticket{ID: "t2", TenantID: "acme", Status: "open"})
	st.AddTicketField(store.TicketField{ID: "f-seats", TenantID: "acme", Label: "Seats", Type: store.FieldNumber})
	st.AddFieldResponse(store.FieldResponse{FieldID: "f-seats", TenantID: "acme", EntityID: "t1", Value: "250"})
	st.AddFieldResponse(store.FieldResponse{FieldID: "f-seats", TenantID: "acme", EntityID: "t2", Value: "not a number"})

	set, err := m.MatchingIDs(fieldRule("f-seats", VerbGreaterThan, "100"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))

	set, err = m.MatchingIDs(fieldRule("f-seats", VerbLessThan, "100"))
	require.NoError(t, err)
	assert.Empty(t, set, "unparseable stored value fails closed")

	set, err = m.MatchingIDs(fieldRule("f-seats", VerbIs, "250"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1"}, ids(set))
}

func TestDeletedFieldMatchesNothing(t *testing.T) {
	st, m := newTestMatcher()
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open"})

	// The referenced field declaration no longer exists; the rule must
	// keep evaluating and the condition contributes the empty set.
	set, err := m.MatchingIDs(fieldRule("f-gone", VerbIs, "anything"))
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestFieldVerbIllegalForDeclaredType(t *testing.T) {
	st, m := newTestMatcher()
	st.AddTicket(store.Ticket{ID: "t1", TenantID: "acme", Status: "open"})
	st.AddTicketField(store.TicketField{ID: "f-sev", TenantID: "acme", Type: store.FieldDropdown})
	st.AddFieldResponse(store.FieldResponse{FieldID: "f-sev", TenantID: "acme", EntityID: "t1", OptionIDs: []string{"opt-high"}})

	// contains is not in the dropdown verb table
	set, err := m.MatchingIDs(fieldRule("f-sev", VerbContains, "high"))
	require.NoError(t, err)
	assert.Empty(t, set)
}
