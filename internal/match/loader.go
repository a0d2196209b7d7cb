//file: internal/match/loader.go
package match

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"desk-rule-matcher/internal/logger"
)

// RulesLoader handles loading rule definitions from the filesystem.
// Rule files are JSON arrays of rules, typically exported by the rule
// configuration editor.
type RulesLoader struct {
	logger *logger.Logger
}

// NewRulesLoader creates a new rules loader
func NewRulesLoader(log *logger.Logger) *RulesLoader {
	return &RulesLoader{
		logger: log,
	}
}

// LoadFromDirectory loads and validates all rules from a directory and
// its subdirectories. A rule that fails validation aborts the load; a
// partially loaded rule set must never run.
func (l *RulesLoader) LoadFromDirectory(path string) ([]Rule, error) {
	var rules []Rule

	err := filepath.Walk(path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		l.logger.Debug("loading rule file", "path", path)

		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Error("failed to read rule file",
				"path", path,
				"error", err)
			return err
		}

		var ruleSet []Rule
		if err := json.Unmarshal(data, &ruleSet); err != nil {
			l.logger.Error("failed to parse rule file",
				"path", path,
				"error", err)
			return err
		}

		for i := range ruleSet {
			if err := ValidateRule(&ruleSet[i]); err != nil {
				l.logger.Error("invalid rule",
					"path", path,
					"rule", ruleSet[i].ID,
					"error", err)
				return fmt.Errorf("invalid rule %q in %s: %w", ruleSet[i].ID, path, err)
			}
		}

		l.logger.Debug("successfully loaded rules",
			"path", path,
			"count", len(ruleSet))

		rules = append(rules, ruleSet...)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	l.logger.Info("rules loaded successfully",
		"totalRules", len(rules))

	return rules, nil
}
