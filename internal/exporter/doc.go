// Package exporter persists indicator tables produced by the aggregation
// pipeline. The CSV store writes one file per logical table name, skips
// names that already exist, and writes atomically via a temp file rename.
package exporter
