package rows

import (
	"fmt"
	"io"
	"strings"

	"bim-reconciler/core/rowstore"

	"github.com/xuri/excelize/v2"
)

// DiscoverColumns maps a header row onto the identity columns the normalizer
// understands. Headers follow Revit schedule export conventions, which drift
// across tool versions; matching is case-insensitive and tolerant of the
// common variants.
func DiscoverColumns(headers []string) rowstore.ColumnMap {
	var cols rowstore.ColumnMap
	for _, h := range headers {
		folded := strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.TypeGUID == "" && (strings.Contains(folded, "type ifcguid") || strings.Contains(folded, "type guid")):
			cols.TypeGUID = h
		case cols.GlobalID == "" && !strings.Contains(folded, "type") &&
			(strings.Contains(folded, "ifcguid") || folded == "globalid" || folded == "global id"):
			cols.GlobalID = h
		case cols.UniqueID == "" && (folded == "uniqueid" || folded == "unique id"):
			cols.UniqueID = h
		case cols.ElementID == "" && (folded == "id" || folded == "elementid" || strings.Contains(folded, "element id")):
			cols.ElementID = h
		case cols.Category == "" && folded == "category":
			cols.Category = h
		case cols.Name == "" && (folded == "name" || folded == "element name"):
			cols.Name = h
		}
	}
	return cols
}

// ParseWorkbook reads the first sheet of an xlsx workbook into raw rows keyed
// by header, and discovers the identity column mapping from the header row.
func ParseWorkbook(r io.Reader) ([]map[string]any, rowstore.ColumnMap, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, rowstore.ColumnMap{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, rowstore.ColumnMap{}, fmt.Errorf("workbook has no sheets")
	}

	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, rowstore.ColumnMap{}, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(cells) == 0 {
		return nil, rowstore.ColumnMap{}, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	headers := cells[0]
	cols := DiscoverColumns(headers)

	raw := make([]map[string]any, 0, len(cells)-1)
	for _, line := range cells[1:] {
		rec := make(map[string]any, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			var val string
			if i < len(line) {
				val = strings.TrimSpace(line[i])
			}
			if val != "" {
				empty = false
			}
			rec[h] = val
		}
		if empty {
			continue
		}
		raw = append(raw, rec)
	}

	return raw, cols, nil
}
