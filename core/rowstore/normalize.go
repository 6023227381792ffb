package rowstore

import (
	"strings"

	"bim-reconciler/core/utils"
)

// ColumnMap names the raw columns that supply each identity field. An empty
// entry means the source export had no such column. Discovery of the mapping
// from a header row lives with the ingest feature; the normalizer only
// applies it.
type ColumnMap struct {
	GlobalID  string `json:"globalId,omitempty"`
	ElementID string `json:"elementId,omitempty"`
	UniqueID  string `json:"uniqueId,omitempty"`
	TypeGUID  string `json:"typeGuid,omitempty"`
	Category  string `json:"category,omitempty"`
	Name      string `json:"name,omitempty"`
}

// NormalizeRows converts raw export rows into typed ExternalRows using the
// discovered column mapping. Identity fields are coerced to canonical form
// (trimmed string, parsed integer, or absent); unmapped columns are carried
// through in Extra. Rows that end up entirely empty are dropped.
func NormalizeRows(raw []map[string]any, cols ColumnMap) []ExternalRow {
	identity := map[string]bool{}
	for _, c := range []string{cols.GlobalID, cols.ElementID, cols.UniqueID, cols.TypeGUID, cols.Category, cols.Name} {
		if c != "" {
			identity[c] = true
		}
	}

	rows := make([]ExternalRow, 0, len(raw))
	for _, rec := range raw {
		row := ExternalRow{}
		if cols.GlobalID != "" {
			row.GlobalID = strings.TrimSpace(utils.ToString(rec[cols.GlobalID]))
		}
		if cols.ElementID != "" {
			if v, ok := utils.ToInt64(rec[cols.ElementID]); ok {
				row.LegacyElementID = &v
			}
		}
		if cols.UniqueID != "" {
			row.UniqueRowID = strings.TrimSpace(utils.ToString(rec[cols.UniqueID]))
		}
		if cols.TypeGUID != "" {
			row.TypeGUID = strings.TrimSpace(utils.ToString(rec[cols.TypeGUID]))
		}
		if cols.Category != "" {
			row.Category = strings.TrimSpace(utils.ToString(rec[cols.Category]))
		}
		if cols.Name != "" {
			row.ElementName = strings.TrimSpace(utils.ToString(rec[cols.Name]))
		}

		for k, v := range rec {
			if identity[k] {
				continue
			}
			s := utils.ToString(v)
			if s == "" {
				continue
			}
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[k] = s
		}

		if row.GlobalID == "" && row.LegacyElementID == nil && row.UniqueRowID == "" &&
			row.TypeGUID == "" && row.Category == "" && row.ElementName == "" && len(row.Extra) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
