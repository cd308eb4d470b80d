package source

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/model"
)

type field int

const (
	fieldUnknown field = iota
	fieldID
	fieldTitle
	fieldDescription
	fieldStreetName
	fieldStreetNumber
	fieldCity
	fieldPostalCode
	fieldLatitude
	fieldLongitude
	fieldMonthlyRent
	fieldSalePrice
	fieldBedrooms
	fieldBathrooms
	fieldAreaSqm
	fieldOwnerID
	fieldStatus
)

// headerAliases maps normalized header text onto record fields.
var headerAliases = map[string]field{
	"id":            fieldID,
	"property_id":   fieldID,
	"listing_id":    fieldID,
	"title":         fieldTitle,
	"name":          fieldTitle,
	"description":   fieldDescription,
	"street":        fieldStreetName,
	"street_name":   fieldStreetName,
	"street_number": fieldStreetNumber,
	"house_number":  fieldStreetNumber,
	"number":        fieldStreetNumber,
	"city":          fieldCity,
	"town":          fieldCity,
	"postal_code":   fieldPostalCode,
	"postcode":      fieldPostalCode,
	"zip":           fieldPostalCode,
	"zip_code":      fieldPostalCode,
	"latitude":      fieldLatitude,
	"lat":           fieldLatitude,
	"longitude":     fieldLongitude,
	"lng":           fieldLongitude,
	"lon":           fieldLongitude,
	"monthly_rent":  fieldMonthlyRent,
	"rent":          fieldMonthlyRent,
	"sale_price":    fieldSalePrice,
	"price":         fieldSalePrice,
	"bedrooms":      fieldBedrooms,
	"beds":          fieldBedrooms,
	"bathrooms":     fieldBathrooms,
	"baths":         fieldBathrooms,
	"area_sqm":      fieldAreaSqm,
	"area":          fieldAreaSqm,
	"size_sqm":      fieldAreaSqm,
	"owner_id":      fieldOwnerID,
	"owner":         fieldOwnerID,
	"status":        fieldStatus,
}

// columnMap records which field each column index holds.
type columnMap map[int]field

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
}

// mapHeader resolves a header row. An id column is required.
func mapHeader(header []string) (columnMap, error) {
	cols := make(columnMap, len(header))
	hasID := false
	for i, h := range header {
		f, ok := headerAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		cols[i] = f
		if f == fieldID {
			hasID = true
		}
	}
	if !hasID {
		return nil, eris.New("source: header has no id column")
	}
	return cols, nil
}

// toRecord converts one data row. Unparseable numbers leave the field unset.
func (c columnMap) toRecord(row []string) model.PropertyRecord {
	var p model.PropertyRecord
	for i, raw := range row {
		f, ok := c[i]
		if !ok {
			continue
		}
		v := strings.TrimSpace(raw)
		switch f {
		case fieldID:
			p.ID = v
		case fieldTitle:
			p.Title = v
		case fieldDescription:
			p.Description = v
		case fieldStreetName:
			p.StreetName = v
		case fieldStreetNumber:
			p.StreetNumber = v
		case fieldCity:
			p.City = v
		case fieldPostalCode:
			p.PostalCode = v
		case fieldLatitude:
			p.Latitude = parseFloat(v)
		case fieldLongitude:
			p.Longitude = parseFloat(v)
		case fieldMonthlyRent:
			p.MonthlyRent = parseFloat(v)
		case fieldSalePrice:
			p.SalePrice = parseFloat(v)
		case fieldBedrooms:
			p.Bedrooms = parseInt(v)
		case fieldBathrooms:
			p.Bathrooms = parseInt(v)
		case fieldAreaSqm:
			p.AreaSqm = parseFloat(v)
		case fieldOwnerID:
			p.OwnerID = v
		case fieldStatus:
			p.Status = model.ParsePropertyStatus(v)
		}
	}
	if p.Status == "" {
		p.Status = model.PropertyStatusActive
	}
	return p
}

// parseFloat accepts plain, thousands-grouped and comma-decimal numbers.
func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, " ", "")
	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		// The separator that appears last is the decimal point.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseInt(s string) *int {
	f := parseFloat(s)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// rowsToRecords maps a header and data rows, skipping blank rows and rows
// without an id.
func rowsToRecords(header []string, rows [][]string) ([]model.PropertyRecord, error) {
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}
	out := make([]model.PropertyRecord, 0, len(rows))
	for _, row := range rows {
		p := cols.toRecord(row)
		if p.ID == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
