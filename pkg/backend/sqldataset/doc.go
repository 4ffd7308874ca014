// Package sqldataset provides the SQL backend adapter. A dataset handle
// wraps one table (or view) reachable through database/sql, together with
// an explicit row-index column that carries the logical load position of
// each row; SQL result sets have no inherent order, so the column is
// required at handle construction.
//
// Metrics are translated into dialect-specific SQL and executed natively:
// window functions for monotonicity, aggregate queries for statistics,
// regex operators where the dialect has them. Requests a dialect cannot
// express fail with *backend.UnsupportedError instead of being
// approximated.
package sqldataset
