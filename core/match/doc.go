// Package match implements the cross-model identity reconciliation engine.
//
// It reconciles two independently produced descriptions of the same building
// model: elements extracted from a 3D geometry file (IFC) and rows extracted
// from an authoring-tool schedule export. The two sides carry inconsistent,
// partially missing identifiers across tool versions and export settings, so
// the engine computes a best-effort, auditable one-to-one mapping with
// explicit confidence and explicit non-matches.
//
// # Algorithm
//
// BuildMatchReport deduplicates the rows by identity key, builds three
// indexes (global ID excluding synthetic placeholders, legacy element ID,
// type GUID), and for each element:
//
//  1. Gathers a candidate bucket as the union of index lookups for the
//     element's keys, excluding rows already claimed by earlier elements.
//  2. Scores each candidate with fixed weights: 1.00 global ID, 0.85
//     element ID, 0.55 type GUID, plus 0.15/0.10 for category/name
//     substring overlap.
//  3. Picks the top candidate when its score clears the match threshold and
//     it has no exact-score rival; otherwise reports the element as
//     ambiguous or unmatched with a specific diagnostic reason.
//
// The consumed-row exclusion is load-bearing: without it, two elements with
// overlapping candidate sets could both claim the same row and silently
// double-count a match.
//
// # Purity
//
// The engine performs no I/O and holds no state between calls; each call
// builds its own indexes from its own inputs and may run concurrently with
// any other call.
package match
