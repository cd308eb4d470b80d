package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/listing-dedupe/internal/model"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "listings.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

const listingsCSV = `Listing ID,Title,Street,House Number,Postcode,City,Rent,Bedrooms,Lat,Lng,Owner,Status,Notes
p1,Bright flat in Mitte,Torstraße,12,10119,Berlin,"1.200,50",2,52.529,13.401,owner-1,Active,ignored
p2,Mitte bright flat,Torstraße,12,10119,Berlin,1200,2,,,owner-1,inactive,
,missing id row,,,,,,,,,,,
p3,Loft,Kastanienallee,5,10435,Berlin,not-a-number,3,,,owner-2,,
`

func TestReadCSV_HeaderMapped(t *testing.T) {
	records, err := ReadCSV(context.Background(), strings.NewReader(listingsCSV), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	p1 := records[0]
	assert.Equal(t, "p1", p1.ID)
	assert.Equal(t, "Torstraße", p1.StreetName)
	assert.Equal(t, "12", p1.StreetNumber)
	assert.Equal(t, "10119", p1.PostalCode)
	require.NotNil(t, p1.MonthlyRent)
	assert.InDelta(t, 1200.50, *p1.MonthlyRent, 0.001)
	require.NotNil(t, p1.Bedrooms)
	assert.Equal(t, 2, *p1.Bedrooms)
	assert.True(t, p1.HasCoordinates())
	assert.Equal(t, model.PropertyStatusActive, p1.Status)

	assert.Equal(t, model.PropertyStatusInactive, records[1].Status)
	assert.False(t, records[1].HasCoordinates())

	assert.Nil(t, records[2].MonthlyRent, "unparseable rent is left unset")
	assert.Equal(t, model.PropertyStatusActive, records[2].Status, "blank status is active")
}

func TestReadCSV_Semicolon(t *testing.T) {
	data := "id;title;monthly_rent\np1;Flat;950\n"
	records, err := ReadCSV(context.Background(), strings.NewReader(data), CSVOptions{Comma: ';'})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 950, *records[0].MonthlyRent, 0.001)
}

func TestReadCSV_NoIDColumn(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("title,city\nFlat,Berlin\n"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id column")
}

func TestReadCSV_Empty(t *testing.T) {
	records, err := ReadCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, strings.NewReader(listingsCSV), CSVOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"", nil},
		{"1200", ptr(1200.0)},
		{"1200.5", ptr(1200.5)},
		{"1200,5", ptr(1200.5)},
		{"1,200.50", ptr(1200.5)},
		{"1 200", ptr(1200.0)},
		{"1.200,50", ptr(1200.5)},
		{"abc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseFloat(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Listings": {
			{"id", "title", "city", "sale_price", "status"},
			{"p1", "Villa", "Potsdam", "450000", "archived"},
			{"p2", "Villa am See", "Potsdam", "455000", ""},
		},
	})

	records, err := ReadXLSX(context.Background(), path, XLSXOptions{SheetName: "Listings"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Villa", records[0].Title)
	assert.InDelta(t, 450000, *records[0].SalePrice, 0.001)
	assert.Equal(t, model.PropertyStatusArchived, records[0].Status)
}

func TestReadXLSX_MissingSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"id"}}})

	_, err := ReadXLSX(context.Background(), path, XLSXOptions{SheetName: "Nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Nope" not found`)

	_, err = ReadXLSX(context.Background(), path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"array", `[{"id":"p1","title":"Flat","status":"Published"},{"id":"p2","title":"Flat 2"}]`, 2},
		{"wrapped", `{"properties":[{"id":"p1","title":"Flat","monthly_rent":900}]}`, 1},
		{"empty", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ReadJSON(strings.NewReader(tt.data))
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
			for _, r := range records {
				assert.Equal(t, model.PropertyStatusActive, r.Status)
			}
		})
	}

	_, err := ReadJSON(strings.NewReader(`[{"id":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: json: decode")
}

func TestFileSource_Dispatch(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "listings.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"p1","title":"Flat"}]`), 0o644))
	csvPath := filepath.Join(dir, "listings.tsv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id\ttitle\np1\tFlat\n"), 0o644))

	records, err := FileSource{Path: jsonPath}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = FileSource{Path: csvPath}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Flat", records[0].Title)

	_, err = FileSource{Path: filepath.Join(dir, "listings.parquet")}.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = FileSource{Path: filepath.Join(dir, "missing.json")}.Load(context.Background())
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
