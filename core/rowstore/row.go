package rowstore

import (
	"strconv"
	"strings"
)

// SyntheticGlobalIDPrefix marks generated stand-in global IDs produced when a
// schedule export carried no true GlobalId column. Synthetic values keep rows
// addressable but must never participate in cross-model identity matching.
const SyntheticGlobalIDPrefix = "synthetic-"

// ExternalRow is one normalized line of an authoring-tool schedule export.
// Identity fields are canonical: empty string / nil pointer mean "absent".
// Columns that don't map to a known identity field are carried verbatim in
// Extra.
type ExternalRow struct {
	// GlobalID is the cross-tool stable identifier (IfcGUID). May be a
	// synthetic placeholder, see SyntheticGlobalIDPrefix.
	GlobalID string `json:"globalId,omitempty"`

	// LegacyElementID is the numeric authoring-tool element ID.
	LegacyElementID *int64 `json:"legacyElementId,omitempty"`

	// UniqueRowID is the tool-specific stable row identifier (UniqueId).
	// Used only for deduplication, never for cross-model matching.
	UniqueRowID string `json:"uniqueRowId,omitempty"`

	// TypeGUID identifies the element's type (not its instance).
	TypeGUID string `json:"typeGuid,omitempty"`

	// Category is the authoring-tool category label (e.g. "Walls").
	Category string `json:"category,omitempty"`

	// ElementName is the display name of the element.
	ElementName string `json:"elementName,omitempty"`

	// Extra holds passthrough columns that were not mapped to an identity
	// field, keyed by their original header.
	Extra map[string]string `json:"extra,omitempty"`
}

// IdentityKey returns the deduplication key for this row:
// globalId|legacyElementId|uniqueRowId. Two rows sharing the key are the
// same row; on merge the later one wins.
func (r ExternalRow) IdentityKey() string {
	eid := ""
	if r.LegacyElementID != nil {
		eid = strconv.FormatInt(*r.LegacyElementID, 10)
	}
	return r.GlobalID + "|" + eid + "|" + r.UniqueRowID
}

// HasSyntheticGlobalID reports whether GlobalID is a generated placeholder.
func (r ExternalRow) HasSyntheticGlobalID() bool {
	return strings.HasPrefix(r.GlobalID, SyntheticGlobalIDPrefix)
}

// MatchableGlobalID returns the global ID usable as a match key, or "" when
// the row has none (absent or synthetic).
func (r ExternalRow) MatchableGlobalID() string {
	if r.GlobalID == "" || r.HasSyntheticGlobalID() {
		return ""
	}
	return r.GlobalID
}

// DedupeRows collapses rows sharing an identity key. The first occurrence
// keeps its position; the last occurrence supplies the values.
func DedupeRows(rows []ExternalRow) []ExternalRow {
	seen := make(map[string]int, len(rows))
	out := make([]ExternalRow, 0, len(rows))
	for _, r := range rows {
		key := r.IdentityKey()
		if i, ok := seen[key]; ok {
			out[i] = r
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out
}
