package conformance

// Document is one conformance fixture: an expectation type exercised over
// one or more datasets.
type Document struct {
	// ExpectationType is the expectation under test.
	ExpectationType string `json:"expectation_type"`

	// Datasets each carry column data and the cases evaluated over it.
	Datasets []Dataset `json:"datasets"`
}

// Dataset is column data plus the cases run against it.
type Dataset struct {
	// Data maps column names to cell values. JSON null is a missing cell.
	Data map[string][]any `json:"data"`

	// Schemas optionally maps a backend name to declared native column
	// types (column → type name), overriding type inference for that
	// backend. Evaluation semantics are unaffected.
	Schemas map[string]map[string]string `json:"schemas,omitempty"`

	// Tests are the cases evaluated over this data.
	Tests []Case `json:"tests"`
}

// Case is one expectation invocation with its expected result.
type Case struct {
	// Title names the case in test output.
	Title string `json:"title"`

	// In holds the expectation kwargs.
	In map[string]any `json:"in"`

	// Out holds the expected result fields. With ExactMatchOut false only
	// the listed fields are compared.
	Out map[string]any `json:"out"`

	// ExactMatchOut requires the full result to match Out.
	ExactMatchOut bool `json:"exact_match_out,omitempty"`

	// OnlyFor restricts the case to the named backends.
	OnlyFor []string `json:"only_for,omitempty"`

	// SuppressTestFor excludes the named backends.
	SuppressTestFor []string `json:"suppress_test_for,omitempty"`
}

// Trial is one expanded (case, dataset, backend) combination.
type Trial struct {
	ExpectationType string
	Backend         string
	Dataset         Dataset
	Case            Case
}

// Expand produces the trials of a document over the given backends,
// honoring per-case only_for and suppress_test_for lists.
func Expand(doc *Document, backends []string) []Trial {
	var trials []Trial
	for _, ds := range doc.Datasets {
		for _, c := range ds.Tests {
			for _, b := range backends {
				if !eligible(c, b) {
					continue
				}
				trials = append(trials, Trial{
					ExpectationType: doc.ExpectationType,
					Backend:         b,
					Dataset:         ds,
					Case:            c,
				})
			}
		}
	}
	return trials
}

func eligible(c Case, backend string) bool {
	for _, suppressed := range c.SuppressTestFor {
		if suppressed == backend {
			return false
		}
	}
	if len(c.OnlyFor) == 0 {
		return true
	}
	for _, allowed := range c.OnlyFor {
		if allowed == backend {
			return true
		}
	}
	return false
}
