// Package report implements the query boundary of the reconciler.
//
// A report request supplies the geometry-side elements (produced by the
// external geometry-parsing collaborator); the feature fetches the merged
// row view for the requested scope, runs the reconciliation engine, and
// returns the full match report together with the provenance of the rows it
// was computed from (source backend, revision metadata, degraded-durable
// detail).
//
// A trimmed summary of every report (counts and rates only) is persisted
// for historical tracking, fire-and-forget.
package report
