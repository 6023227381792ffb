package match

import (
	"math"
	"sort"
	"strings"

	"bim-reconciler/core/rowstore"
)

// Score weights per identifier scheme. A global-ID match always outranks an
// element-ID match, which always outranks a type-GUID match; the soft hints
// only break near-ties.
const (
	weightGlobalID  = 1.00
	weightElementID = 0.85
	weightTypeGUID  = 0.55
	weightCategory  = 0.15
	weightName      = 0.10
)

const maxAuditCandidates = 5

// rowIndexes are the three lookup maps over the deduplicated row set, each
// mapping a key to the positions of rows sharing it.
type rowIndexes struct {
	byGlobalID  map[string][]int
	byElementID map[int64][]int
	byTypeGUID  map[string][]int
	// orphans are rows carrying none of the three match keys; they can only
	// ever match through the soft category/name hints.
	orphans []int
}

func buildIndexes(rows []rowstore.ExternalRow) rowIndexes {
	idx := rowIndexes{
		byGlobalID:  make(map[string][]int),
		byElementID: make(map[int64][]int),
		byTypeGUID:  make(map[string][]int),
	}
	for i, r := range rows {
		keyed := false
		if gid := r.MatchableGlobalID(); gid != "" {
			idx.byGlobalID[gid] = append(idx.byGlobalID[gid], i)
			keyed = true
		}
		if r.LegacyElementID != nil {
			idx.byElementID[*r.LegacyElementID] = append(idx.byElementID[*r.LegacyElementID], i)
			keyed = true
		}
		if r.TypeGUID != "" {
			idx.byTypeGUID[r.TypeGUID] = append(idx.byTypeGUID[r.TypeGUID], i)
			keyed = true
		}
		if !keyed {
			idx.orphans = append(idx.orphans, i)
		}
	}
	return idx
}

type candidate struct {
	pos       int
	row       rowstore.ExternalRow
	score     float64
	reasons   []string
	matchedBy MatchedBy
}

func (c candidate) ref() CandidateRef {
	return CandidateRef{
		IdentityKey: c.row.IdentityKey(),
		Score:       c.score,
		Reasons:     c.reasons,
	}
}

// BuildMatchReport reconciles geometry elements against schedule rows and
// returns the full audit report. It is a pure computation: deterministic for
// fixed inputs and thresholds, no I/O, no shared state across calls.
func BuildMatchReport(elements []ModelElement, externalRows []rowstore.ExternalRow, opts Options) *MatchReport {
	opts = opts.withDefaults()

	rows := rowstore.DedupeRows(externalRows)
	idx := buildIndexes(rows)
	consumed := make([]bool, len(rows))

	report := &MatchReport{
		TotalElements:     len(elements),
		TotalRows:         len(rows),
		MatchedByKey:      make(map[string]int),
		Matches:           []MatchResult{},
		Ambiguous:         []Diagnostic{},
		MissingInExternal: []Diagnostic{},
		MissingInModel:    []rowstore.ExternalRow{},
		ByCategory:        []CategoryCount{},
		Diagnostics:       []Diagnostic{},
	}

	categories := newCategoryAgg()

	for _, el := range elements {
		categories.countElement(el.Kind)

		gid := strings.TrimSpace(el.GlobalID)
		tag, hasTag := el.ParsedTag()
		hasGlobal := gid != ""

		// Elements with no usable identifier never enter the scoring path.
		if !hasGlobal && !hasTag {
			report.addUnmatched(diagFor(el, ReasonMissingGlobalIDAndTag, nil))
			continue
		}

		cands := gatherCandidates(el, gid, hasGlobal, tag, hasTag, rows, idx, consumed)
		if len(cands) == 0 {
			report.addUnmatched(diagFor(el, ReasonNoCandidate, nil))
			continue
		}

		top := cands[0]
		switch {
		case len(cands) > 1 && cands[1].score == top.score:
			// Exact tie at the top: refuse to pick and surface both sides.
			report.addAmbiguous(diagFor(el, ReasonDuplicateElementID, auditRefs(cands)))

		case top.score < opts.AmbiguousThreshold:
			reason := ReasonAmbiguousOrConflict
			if !hasGlobal {
				reason = ReasonMissingGlobalID
			} else if !hasTag {
				reason = ReasonMissingTag
			}
			report.addUnmatched(diagFor(el, reason, nil))

		case top.score < opts.MatchThreshold:
			report.addAmbiguous(diagFor(el, ReasonAmbiguousScoreBand, auditRefs(cands)))

		default:
			consumed[top.pos] = true
			report.Matches = append(report.Matches, MatchResult{
				ElementID: el.ElementID,
				Row:       top.row,
				Score:     top.score,
				MatchedBy: top.matchedBy,
				Reasons:   top.reasons,
			})
			report.MatchedByKey[string(top.matchedBy)]++
			report.TotalMatched++
			categories.countMatched(el.Kind)
		}
	}

	for i, r := range rows {
		categories.countRow(r.Category)
		if !consumed[i] {
			report.MissingInModel = append(report.MissingInModel, r)
		}
	}
	report.ByCategory = categories.sorted()

	if report.TotalElements > 0 {
		report.MatchRate = round4(float64(report.TotalMatched) / float64(report.TotalElements))
	}

	return report
}

// gatherCandidates unions the index lookups for the element's keys, skipping
// rows already consumed by earlier elements (this is what enforces the 1:1
// assignment). When no keyed row matches, rows without any match key are
// scored as a fallback so soft-hint-only pairings still surface, typically
// as ambiguity given their low score ceiling.
func gatherCandidates(el ModelElement, gid string, hasGlobal bool, tag int64, hasTag bool,
	rows []rowstore.ExternalRow, idx rowIndexes, consumed []bool) []candidate {

	typeGUID := el.TypeGUID()

	var positions []int
	seen := make(map[int]bool)
	add := func(ps []int) {
		for _, p := range ps {
			if consumed[p] || seen[p] {
				continue
			}
			seen[p] = true
			positions = append(positions, p)
		}
	}

	if hasGlobal {
		add(idx.byGlobalID[gid])
	}
	if hasTag {
		add(idx.byElementID[tag])
	}
	if typeGUID != "" {
		add(idx.byTypeGUID[typeGUID])
	}
	if len(positions) == 0 && (el.Kind != "" || el.Name != "") {
		add(idx.orphans)
	}

	cands := make([]candidate, 0, len(positions))
	for _, p := range positions {
		c := scoreCandidate(el, gid, hasGlobal, tag, hasTag, typeGUID, p, rows[p])
		if c.score <= 0 {
			continue
		}
		cands = append(cands, c)
	}

	// Stable sort keeps insertion order on ties, which keeps the report
	// deterministic for fixed inputs.
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})
	return cands
}

func scoreCandidate(el ModelElement, gid string, hasGlobal bool, tag int64, hasTag bool,
	typeGUID string, pos int, row rowstore.ExternalRow) candidate {

	score := 0.0
	var reasons []string
	var byGlobal, byElement, byType bool

	if hasGlobal && row.MatchableGlobalID() == gid {
		score += weightGlobalID
		reasons = append(reasons, "globalid")
		byGlobal = true
	}
	if hasTag && row.LegacyElementID != nil && *row.LegacyElementID == tag {
		score += weightElementID
		reasons = append(reasons, "element_id")
		byElement = true
	}
	if typeGUID != "" && row.TypeGUID != "" && row.TypeGUID == typeGUID {
		score += weightTypeGUID
		reasons = append(reasons, "type_guid")
		byType = true
	}
	if foldedOverlap(el.Kind, row.Category) {
		score += weightCategory
		reasons = append(reasons, "category")
	}
	if foldedOverlap(el.Name, row.ElementName) {
		score += weightName
		reasons = append(reasons, "name")
	}

	matchedBy := MatchedByMixed
	switch {
	case byGlobal:
		matchedBy = MatchedByGlobalID
	case byElement:
		matchedBy = MatchedByElementID
	case byType:
		matchedBy = MatchedByTypeGUID
	}

	return candidate{
		pos:       pos,
		row:       row,
		score:     round4(score),
		reasons:   reasons,
		matchedBy: matchedBy,
	}
}

// foldedOverlap reports whether a and b, case-folded, are non-empty and one
// contains the other as a substring.
func foldedOverlap(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

func auditRefs(cands []candidate) []CandidateRef {
	n := len(cands)
	if n > maxAuditCandidates {
		n = maxAuditCandidates
	}
	refs := make([]CandidateRef, 0, n)
	for _, c := range cands[:n] {
		refs = append(refs, c.ref())
	}
	return refs
}

func diagFor(el ModelElement, reason string, candidates []CandidateRef) Diagnostic {
	return Diagnostic{
		ElementID:  el.ElementID,
		Kind:       el.Kind,
		GlobalID:   el.GlobalID,
		LegacyTag:  el.LegacyTag,
		Reason:     reason,
		Candidates: candidates,
	}
}

func (r *MatchReport) addUnmatched(d Diagnostic) {
	r.MissingInExternal = append(r.MissingInExternal, d)
	r.Diagnostics = append(r.Diagnostics, d)
}

func (r *MatchReport) addAmbiguous(d Diagnostic) {
	r.Ambiguous = append(r.Ambiguous, d)
	r.Diagnostics = append(r.Diagnostics, d)
}

// categoryAgg accumulates per-category counts keyed by element kind, with
// row categories merging into the same key space.
type categoryAgg struct {
	counts map[string]*CategoryCount
}

func newCategoryAgg() *categoryAgg {
	return &categoryAgg{counts: make(map[string]*CategoryCount)}
}

func (a *categoryAgg) bucket(key string) *CategoryCount {
	c, ok := a.counts[key]
	if !ok {
		c = &CategoryCount{Category: key}
		a.counts[key] = c
	}
	return c
}

func (a *categoryAgg) countElement(kind string) { a.bucket(kind).ElementCount++ }
func (a *categoryAgg) countMatched(kind string) { a.bucket(kind).MatchedCount++ }
func (a *categoryAgg) countRow(category string) { a.bucket(category).RowCount++ }

func (a *categoryAgg) sorted() []CategoryCount {
	out := make([]CategoryCount, 0, len(a.counts))
	for _, c := range a.counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
