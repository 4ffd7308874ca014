// Package backend defines the contract between the expectation evaluation
// engine and the physical execution engines that compute metrics.
//
// A Dataset is an opaque, read-only handle to a backend-resident table. An
// Adapter wraps one Dataset and translates abstract metric requests into
// native computations (in-memory loops, SQL queries, partitioned jobs),
// returning fully materialized outcomes. The engine never branches on
// backend identity; it holds a single Adapter chosen when the dataset
// handle is constructed.
//
// Values are represented by the null-aware Value type so that row-filter
// policy logic is total and no backend-specific null sentinel leaks into
// shared code.
package backend
