package alert

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of alerts.rules_path: a flat list of rules
// under the single top-level key "rules".
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads and validates every rule from path. A single invalid
// rule fails the whole load: a gateway should never start enforcing half
// a rule set.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %q: %w", path, err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rules file %q: %w", path, err)
	}

	for _, r := range rf.Rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return rf.Rules, nil
}
