// Package suite loads, validates, and runs expectation suites: YAML
// documents that bundle named sets of expectations. The loader enforces
// size and encoding limits before parsing, the linter statically checks
// every expectation against the registry, the runner evaluates a suite
// against one backend-bound evaluator, and the watcher reloads suites
// from disk on change with debouncing.
package suite
