// Package ingest reads the input files of the aggregation pipeline: raw
// call detail records in configurable CSV layouts (optionally gzipped), the
// cell-to-region mapping, pairwise region distances, incidence rates from
// CSV or Excel, and the cached home location file. It also standardizes raw
// files into a canonical layout and supports seeded subscriber sampling for
// test runs on a subset of SIMs.
package ingest
