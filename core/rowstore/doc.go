// Package rowstore provides the hybrid row store: the best-effort,
// partial-failure-tolerant source of schedule rows that feeds the
// reconciliation engine.
//
// # Architecture
//
// The store combines two backends per (project, model version) scope:
//
//  1. A bounded in-process cache of Revisions: deduplicated row lists with
//     lookup indexes by global ID and legacy element ID, plus upload
//     provenance (source files, source modes, update time).
//  2. An optional durable relational collaborator (Postgres via GORM),
//     reached through batched idempotent upserts and batched IN selects.
//
// Upsert always merges into the cache; write-through to the durable store is
// batched and per-batch failures are recorded in the receipt without
// aborting anything. FetchMerged consults the durable store first (in
// filtered mode), covers the unresolved remainder from the cache, and
// reports which backends actually contributed via the Source field.
//
// # Failure Semantics
//
// Durable-store errors (connectivity, timeout, missing relation) are
// captured as metadata (DurableError, Persistence, Source) and never
// returned to the caller. A read or write always completes with at least
// the in-memory view.
//
// # Capacity
//
// When the number of retained revisions exceeds the configured cap, the
// revisions with the oldest update time are evicted first. The cache is
// memory-only and does not survive a process restart.
//
// # Normalization
//
// The package also owns the row normalizer: NormalizeRows converts raw
// export rows plus a discovered ColumnMap into typed ExternalRows with
// identity fields coerced to canonical form.
package rowstore
