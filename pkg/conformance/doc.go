// Package conformance runs backend-portability fixtures: JSON documents
// that pair datasets with expectation cases and their expected results.
// Each case expands into one trial per eligible backend, and every backend
// must produce the same verdict on the same logical rows. Documents are
// validated against a JSON Schema before use.
package conformance
