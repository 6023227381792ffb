package rowstore

import (
	"sort"
	"time"
)

// Scope identifies the row collection a request operates on.
type Scope struct {
	// ProjectID is the owning project.
	ProjectID string `json:"projectId"`
	// ModelVersion is the model revision label. Empty means "unversioned";
	// fetches with an empty version select the most recently updated
	// revision for the project.
	ModelVersion string `json:"modelVersion,omitempty"`
}

func (s Scope) key() string {
	return s.ProjectID + "::" + s.ModelVersion
}

// Revision is the row set and indexes held for one (project, model version)
// pair. It is owned exclusively by the Store; readers get copies or
// point-in-time row slices, never the live struct.
type Revision struct {
	Scope Scope

	// Rows is the deduplicated row list in first-seen order.
	Rows []ExternalRow

	// SourceFiles and SourceModes record upload provenance for audit.
	SourceFiles map[string]struct{}
	SourceModes map[string]struct{}

	// UpdatedAt is advanced on every merge and drives eviction order.
	UpdatedAt time.Time

	indexByGlobalID  map[string][]int
	indexByElementID map[int64][]int
}

func newRevision(scope Scope) *Revision {
	return &Revision{
		Scope:       scope,
		SourceFiles: make(map[string]struct{}),
		SourceModes: make(map[string]struct{}),
	}
}

// merge folds rows into the revision, deduplicating by identity key (later
// rows win), records provenance, and rebuilds the lookup indexes.
func (rev *Revision) merge(rows []ExternalRow, meta UpsertMeta, now time.Time) {
	rev.Rows = DedupeRows(append(rev.Rows, rows...))
	if meta.SourceFile != "" {
		rev.SourceFiles[meta.SourceFile] = struct{}{}
	}
	if meta.SourceMode != "" {
		rev.SourceModes[meta.SourceMode] = struct{}{}
	}
	rev.UpdatedAt = now
	rev.rebuildIndexes()
}

func (rev *Revision) rebuildIndexes() {
	rev.indexByGlobalID = make(map[string][]int, len(rev.Rows))
	rev.indexByElementID = make(map[int64][]int, len(rev.Rows))
	for i, r := range rev.Rows {
		if r.GlobalID != "" {
			rev.indexByGlobalID[r.GlobalID] = append(rev.indexByGlobalID[r.GlobalID], i)
		}
		if r.LegacyElementID != nil {
			rev.indexByElementID[*r.LegacyElementID] = append(rev.indexByElementID[*r.LegacyElementID], i)
		}
	}
}

func (rev *Revision) lookupGlobalID(id string) []ExternalRow {
	return rev.rowsAt(rev.indexByGlobalID[id])
}

func (rev *Revision) lookupElementID(id int64) []ExternalRow {
	return rev.rowsAt(rev.indexByElementID[id])
}

func (rev *Revision) rowsAt(positions []int) []ExternalRow {
	if len(positions) == 0 {
		return nil
	}
	rows := make([]ExternalRow, 0, len(positions))
	for _, i := range positions {
		rows = append(rows, rev.Rows[i])
	}
	return rows
}

// RevisionMeta is the read-side snapshot of a revision's provenance.
type RevisionMeta struct {
	ProjectID    string    `json:"projectId"`
	ModelVersion string    `json:"modelVersion,omitempty"`
	RowCount     int       `json:"rowCount"`
	SourceFiles  []string  `json:"sourceFiles"`
	SourceModes  []string  `json:"sourceModes"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// meta snapshots provenance with deterministic ordering.
func (rev *Revision) meta() *RevisionMeta {
	m := &RevisionMeta{
		ProjectID:    rev.Scope.ProjectID,
		ModelVersion: rev.Scope.ModelVersion,
		RowCount:     len(rev.Rows),
		SourceFiles:  setToSorted(rev.SourceFiles),
		SourceModes:  setToSorted(rev.SourceModes),
		UpdatedAt:    rev.UpdatedAt,
	}
	return m
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
