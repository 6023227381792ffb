package match

import (
	"strings"

	"bim-reconciler/core/rowstore"
	"bim-reconciler/core/utils"
)

// Property is one (name, value) pair from the geometry side's property set.
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// typeGUIDPropertyMarker selects the property that supplies the derived
// type GUID, matched case-insensitively as a substring of the property name.
const typeGUIDPropertyMarker = "type ifcguid"

// ModelElement is one element extracted from the 3D geometry file. It is
// owned by the caller and immutable for the duration of a report run.
type ModelElement struct {
	// ElementID is the opaque numeric handle unique within the geometry
	// source (the IFC express ID).
	ElementID int64 `json:"elementId"`

	// Kind is the type discriminator (wall, door, duct, ...).
	Kind string `json:"kind,omitempty"`

	// GlobalID is the stable cross-tool identifier, when present.
	GlobalID string `json:"globalId,omitempty"`

	// LegacyTag is the older numeric identifier scheme, carried as the raw
	// string from the source; it only matters when it parses to an integer.
	LegacyTag string `json:"legacyTag,omitempty"`

	// Name is the element display name, when present.
	Name string `json:"name,omitempty"`

	// Properties is the ordered property list from the geometry source.
	Properties []Property `json:"properties,omitempty"`
}

// TypeGUID derives the type-level GUID from the element's properties.
// Returns "" when no property name contains the type GUID marker.
func (e ModelElement) TypeGUID() string {
	for _, p := range e.Properties {
		if strings.Contains(strings.ToLower(p.Name), typeGUIDPropertyMarker) {
			return strings.TrimSpace(p.Value)
		}
	}
	return ""
}

// ParsedTag returns the legacy tag as an integer when it is numeric.
func (e ModelElement) ParsedTag() (int64, bool) {
	return utils.ToInt64(strings.TrimSpace(e.LegacyTag))
}

// MatchedBy names the identifier scheme that decided a match.
type MatchedBy string

const (
	MatchedByGlobalID  MatchedBy = "globalId"
	MatchedByElementID MatchedBy = "elementId"
	MatchedByTypeGUID  MatchedBy = "typeGuid"
	MatchedByMixed     MatchedBy = "mixed"
)

// Diagnostic reasons for unmatched and ambiguous elements.
const (
	ReasonMissingGlobalIDAndTag = "missing_globalid_and_tag"
	ReasonMissingGlobalID       = "missing_globalid"
	ReasonMissingTag            = "missing_tag"
	ReasonNoCandidate           = "no_candidate"
	ReasonAmbiguousOrConflict   = "ambiguous_or_conflict"
	ReasonDuplicateElementID    = "duplicate_element_id"
	ReasonAmbiguousScoreBand    = "ambiguous_score_band"
)

// MatchResult records the chosen row for a matched element.
type MatchResult struct {
	ElementID int64                `json:"elementId"`
	Row       rowstore.ExternalRow `json:"row"`
	Score     float64              `json:"score"`
	MatchedBy MatchedBy            `json:"matchedBy"`
	Reasons   []string             `json:"reasons"`
}

// CandidateRef is the audit view of one scored candidate, kept on ambiguous
// diagnostics so a reviewer can see what the element almost matched.
type CandidateRef struct {
	IdentityKey string   `json:"identityKey"`
	Score       float64  `json:"score"`
	Reasons     []string `json:"reasons"`
}

// Diagnostic explains one unmatched or ambiguous element.
type Diagnostic struct {
	ElementID  int64          `json:"elementId"`
	Kind       string         `json:"kind,omitempty"`
	GlobalID   string         `json:"globalId,omitempty"`
	LegacyTag  string         `json:"legacyTag,omitempty"`
	Reason     string         `json:"reason"`
	Candidates []CandidateRef `json:"candidates,omitempty"`
}

// CategoryCount aggregates element/row/match counts for one category key.
type CategoryCount struct {
	Category     string `json:"category"`
	ElementCount int    `json:"elementCount"`
	RowCount     int    `json:"rowCount"`
	MatchedCount int    `json:"matchedCount"`
}

// MatchReport is the immutable output snapshot of one reconciliation run.
type MatchReport struct {
	TotalElements     int                    `json:"totalElements"`
	TotalRows         int                    `json:"totalRows"`
	TotalMatched      int                    `json:"totalMatched"`
	MatchRate         float64                `json:"matchRate"`
	MatchedByKey      map[string]int         `json:"matchedByKey"`
	Matches           []MatchResult          `json:"matches"`
	Ambiguous         []Diagnostic           `json:"ambiguous"`
	MissingInExternal []Diagnostic           `json:"missingInExternal"`
	MissingInModel    []rowstore.ExternalRow `json:"missingInModel"`
	ByCategory        []CategoryCount        `json:"byCategory"`
	Diagnostics       []Diagnostic           `json:"diagnostics"`
}

// Summary is the trimmed report shape persisted for historical tracking:
// counts and rates only, no row payloads.
type Summary struct {
	TotalElements          int            `json:"totalElements"`
	TotalRows              int            `json:"totalRows"`
	TotalMatched           int            `json:"totalMatched"`
	MatchRate              float64        `json:"matchRate"`
	AmbiguousCount         int            `json:"ambiguousCount"`
	MissingInExternalCount int            `json:"missingInExternalCount"`
	MissingInModelCount    int            `json:"missingInModelCount"`
	MatchedByKey           map[string]int `json:"matchedByKey"`
}

// Summary trims the report down to its audit numbers.
func (r *MatchReport) Summary() Summary {
	return Summary{
		TotalElements:          r.TotalElements,
		TotalRows:              r.TotalRows,
		TotalMatched:           r.TotalMatched,
		MatchRate:              r.MatchRate,
		AmbiguousCount:         len(r.Ambiguous),
		MissingInExternalCount: len(r.MissingInExternal),
		MissingInModelCount:    len(r.MissingInModel),
		MatchedByKey:           r.MatchedByKey,
	}
}

// Options carries the scoring thresholds. The defaults were tuned against a
// single export pairing; treat them as starting points, not ground truth.
type Options struct {
	// MatchThreshold is the minimum top score for a confident match.
	MatchThreshold float64 `mapstructure:"match_threshold" default:"0.85"`
	// AmbiguousThreshold is the minimum top score for an element to be
	// reported as ambiguous rather than unmatched.
	AmbiguousThreshold float64 `mapstructure:"ambiguous_threshold" default:"0.65"`
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{MatchThreshold: 0.85, AmbiguousThreshold: 0.65}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MatchThreshold <= 0 {
		o.MatchThreshold = d.MatchThreshold
	}
	if o.AmbiguousThreshold <= 0 {
		o.AmbiguousThreshold = d.AmbiguousThreshold
	}
	return o
}
