package rows

import (
	"bytes"
	"testing"

	"bim-reconciler/core/rowstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, headers []string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &headers))
	for i, row := range rows {
		cell, err := excelize.JoinCellName("A", i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDiscoverColumns(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		expected rowstore.ColumnMap
	}{
		{
			name:    "RevitScheduleExport",
			headers: []string{"Id", "IfcGUID", "Type IfcGUID", "UniqueId", "Category", "Name"},
			expected: rowstore.ColumnMap{
				GlobalID:  "IfcGUID",
				ElementID: "Id",
				UniqueID:  "UniqueId",
				TypeGUID:  "Type IfcGUID",
				Category:  "Category",
				Name:      "Name",
			},
		},
		{
			name:    "HeaderVariants",
			headers: []string{"Element ID", "GlobalId", "Type GUID", "Unique Id", "Element Name"},
			expected: rowstore.ColumnMap{
				GlobalID:  "GlobalId",
				ElementID: "Element ID",
				UniqueID:  "Unique Id",
				TypeGUID:  "Type GUID",
				Name:      "Element Name",
			},
		},
		{
			name:    "NoGlobalIDColumn",
			headers: []string{"Id", "Category", "Fire Rating"},
			expected: rowstore.ColumnMap{
				ElementID: "Id",
				Category:  "Category",
			},
		},
		{
			name:     "Empty",
			headers:  nil,
			expected: rowstore.ColumnMap{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DiscoverColumns(tt.headers))
		})
	}
}

func TestDiscoverColumns_TypeGUIDNotMistakenForGlobalID(t *testing.T) {
	// "Type IfcGUID" contains "ifcguid"; a schedule exporting only the type
	// column must not have it claimed as the instance global ID.
	cols := DiscoverColumns([]string{"Type IfcGUID", "Category"})
	assert.Equal(t, "Type IfcGUID", cols.TypeGUID)
	assert.Equal(t, "", cols.GlobalID)
}

func TestParseWorkbook(t *testing.T) {
	content := buildWorkbook(t,
		[]string{"Id", "IfcGUID", "Category", "Name"},
		[][]any{
			{"101", "G1", "Walls", " Basic Wall "},
			{"102", "G2", "Doors", "Single Door"},
			{"", "", "", ""},
		},
	)

	raw, cols, err := ParseWorkbook(bytes.NewReader(content))

	require.NoError(t, err)
	assert.Equal(t, "IfcGUID", cols.GlobalID)
	assert.Equal(t, "Id", cols.ElementID)

	require.Len(t, raw, 2)
	assert.Equal(t, "101", raw[0]["Id"])
	assert.Equal(t, "G1", raw[0]["IfcGUID"])
	// Cell values arrive trimmed.
	assert.Equal(t, "Basic Wall", raw[0]["Name"])
	assert.Equal(t, "Doors", raw[1]["Category"])
}

func TestParseWorkbook_NotAWorkbook(t *testing.T) {
	_, _, err := ParseWorkbook(bytes.NewReader([]byte("not an xlsx file")))
	assert.Error(t, err)
}

func TestParseWorkbook_HeaderOnly(t *testing.T) {
	content := buildWorkbook(t, []string{"Id", "Category"}, nil)

	raw, cols, err := ParseWorkbook(bytes.NewReader(content))

	require.NoError(t, err)
	assert.Empty(t, raw)
	assert.Equal(t, "Id", cols.ElementID)
}
