package suite

import (
	"fmt"

	"datakite-hq/kestrel/pkg/engine"
)

// Suite is one named set of expectations, typically loaded from a YAML
// document.
type Suite struct {
	// Name identifies the suite in reports and history records.
	Name string `yaml:"name" json:"name"`

	// Description is optional free-form documentation.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Expectations are evaluated in declaration order.
	Expectations []engine.ExpectationRequest `yaml:"expectations" json:"expectations"`
}

// Validate statically checks the suite: a non-empty name, at least one
// expectation, and registry-valid kwargs for each. Column existence is
// checked at run time against the bound dataset.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("suite name is required")
	}
	if len(s.Expectations) == 0 {
		return fmt.Errorf("suite %q: at least one expectation is required", s.Name)
	}
	for i, exp := range s.Expectations {
		if err := engine.ValidateRequest(exp); err != nil {
			return fmt.Errorf("suite %q: expectation %d: %w", s.Name, i, err)
		}
	}
	return nil
}
