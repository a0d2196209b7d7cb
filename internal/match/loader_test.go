package match

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"desk-rule-matcher/internal/logger"
)

func writeRuleFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()

	writeRuleFile(t, dir, "escalation.json", `[
		{
			"id": "r1",
			"tenantId": "acme",
			"name": "Escalate refunds",
			"entityType": "ticket",
			"event": "created",
			"priority": 1,
			"enabled": true,
			"groups": [
				{
					"conditions": [
						{"kind": "core", "field": "subject", "verb": "contains", "value": "refund"},
						{"kind": "tags", "verb": "contains_any_of", "tagIds": ["vip"], "joinType": "or"}
					]
				}
			]
		}
	]`)

	sub := filepath.Join(dir, "tenant-globex")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeRuleFile(t, sub, "users.json", `[
		{
			"id": "r2",
			"tenantId": "globex",
			"entityType": "user",
			"enabled": true,
			"groups": [
				{"conditions": [{"kind": "core", "field": "language", "verb": "is", "value": "de"}]}
			]
		}
	]`)

	// Non-JSON files are ignored
	writeRuleFile(t, dir, "README.md", "not rules")

	loader := NewRulesLoader(logger.NewNop())
	rules, err := loader.LoadFromDirectory(dir)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	byID := map[string]Rule{}
	for _, r := range rules {
		byID[r.ID] = r
	}
	assert.Equal(t, "acme", byID["r1"].TenantID)
	assert.Equal(t, JoinOr, byID["r1"].Groups[0].Conditions[1].JoinType)
	assert.Equal(t, "globex", byID["r2"].TenantID)
}

func TestLoadFromDirectoryRejectsInvalidRule(t *testing.T) {
	dir := t.TempDir()

	// status does not support contains; the whole load must fail
	writeRuleFile(t, dir, "bad.json", `[
		{
			"id": "r1",
			"tenantId": "acme",
			"entityType": "ticket",
			"enabled": true,
			"groups": [
				{"conditions": [{"kind": "core", "field": "status", "verb": "contains", "value": "open"}]}
			]
		}
	]`)

	loader := NewRulesLoader(logger.NewNop())
	_, err := loader.LoadFromDirectory(dir)
	assert.Error(t, err)
}

func TestLoadFromDirectoryMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "broken.json", `[{"id": `)

	loader := NewRulesLoader(logger.NewNop())
	_, err := loader.LoadFromDirectory(dir)
	assert.Error(t, err)
}

func TestLoadFromDirectoryEmpty(t *testing.T) {
	loader := NewRulesLoader(logger.NewNop())
	rules, err := loader.LoadFromDirectory(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, rules)
}
