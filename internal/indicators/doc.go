// Package indicators computes mobility indicators from call detail records
// for epidemiological analysis. It consolidates event enrichment, home
// location assignment, flow and distance aggregation, and imported-incidence
// estimation into one package sharing a single ordered event sequence.
//
// # Architecture
//
// The package is organized around three main pieces:
//
// 1. Enrich: joins raw events to regions and derives lag/lead context
// 2. Aggregator: computes indicator rows per period filter and frequency
// 3. Runner: persists indicators idempotently with per-indicator isolation
//
// # Usage
//
// Basic aggregation:
//
//	enriched := indicators.Enrich(events, cells)
//	agg := indicators.NewAggregator(enriched, distances, incidence, logger)
//	counts := agg.Transactions(period, indicators.FrequencyDay)
//
// Running and persisting a full frequency set:
//
//	runner := indicators.NewRunner(agg, store, 4, logger)
//	statuses := runner.RunAllFrequencies(ctx, period, weeksPeriod)
//
// # Null Convention
//
// Numeric columns follow SQL null semantics: NaN marks a missing value and
// propagates through sums, means, and standard deviations by exclusion, not
// as zero. Table formatting renders NaN as an empty cell.
//
// # Determinism
//
// All aggregations order events by subscriber, timestamp, and ingestion
// position before windowed computation, so repeated runs over the same
// input produce identical tables.
package indicators
