// Package rows implements the upload boundary of the reconciler: ingest of
// authoring-tool schedule exports into the hybrid row store.
//
// The feature accepts either a raw xlsx workbook (parsed with excelize, with
// identity columns discovered from the header row) or pre-parsed rows plus a
// column mapping from an external spreadsheet-parsing collaborator. Rows are
// normalized, given synthetic global IDs when the export carried none, and
// upserted into the row store. Uploaded workbooks are archived to object
// storage fire-and-forget for provenance.
//
// It also serves merged row lookups (point and bulk) from the store.
package rows
