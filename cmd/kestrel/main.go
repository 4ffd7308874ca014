// Kestrel is a data-quality engine: it evaluates declarative expectation
// suites against tabular datasets on several backends.
//
// Usage:
//
//	# Validate a CSV file against a suite
//	kestrel validate --suite orders.yaml --csv orders.csv
//
//	# Validate a SQLite table
//	kestrel validate --suite orders.yaml --backend sqlite \
//	    --dsn orders.db --table orders --row-index row_idx
//
//	# Statically check suite documents
//	kestrel lint --dir suites/
//
//	# Inspect past runs
//	kestrel history list --db history.db
//	kestrel history show --db history.db --run <run-id>
package main

func main() {
	Execute()
}
