// Package metric defines the metric registry: the mapping from a metric
// identifier to the computation contract every backend adapter must
// fulfill, including the required argument schema, the domain (column,
// column pair, or whole table), the missing-value row policy, and the
// return shape (per-row boolean series, scalar, or count).
//
// The registry validates metric requests before any backend call is made,
// so malformed arguments surface as configuration errors rather than
// backend failures.
package metric
