// Package model defines the property records consumed by the duplicate
// detection engine and the run records it produces.
package model

import "strings"

// PropertyStatus is the lifecycle status of a listing.
type PropertyStatus string

const (
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusInactive PropertyStatus = "inactive"
	PropertyStatusDraft    PropertyStatus = "draft"
	PropertyStatusArchived PropertyStatus = "archived"
)

// ParsePropertyStatus maps free-form status text onto a PropertyStatus.
// Empty input is treated as active, unknown values are kept as-is (lowercased).
func ParsePropertyStatus(s string) PropertyStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "active", "published", "live":
		return PropertyStatusActive
	case "inactive", "disabled", "unpublished":
		return PropertyStatusInactive
	default:
		return PropertyStatus(s)
	}
}

// PropertyRecord is a single listing owned by the external property store.
// Optional numeric fields are nil when the source did not provide them.
type PropertyRecord struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	StreetName   string         `json:"street_name,omitempty"`
	StreetNumber string         `json:"street_number,omitempty"`
	City         string         `json:"city,omitempty"`
	PostalCode   string         `json:"postal_code,omitempty"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	MonthlyRent  *float64       `json:"monthly_rent,omitempty"`
	SalePrice    *float64       `json:"sale_price,omitempty"`
	Bedrooms     *int           `json:"bedrooms,omitempty"`
	Bathrooms    *int           `json:"bathrooms,omitempty"`
	AreaSqm      *float64       `json:"area_sqm,omitempty"`
	OwnerID      string         `json:"owner_id"`
	Status       PropertyStatus `json:"status"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (p *PropertyRecord) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// IsActive reports whether the listing is in the active lifecycle state.
func (p *PropertyRecord) IsActive() bool {
	return p.Status == PropertyStatusActive || p.Status == ""
}

// Address returns a single-line human readable address.
func (p *PropertyRecord) Address() string {
	var parts []string
	street := strings.TrimSpace(strings.TrimSpace(p.StreetName) + " " + strings.TrimSpace(p.StreetNumber))
	if street != "" {
		parts = append(parts, street)
	}
	locality := strings.TrimSpace(strings.TrimSpace(p.PostalCode) + " " + strings.TrimSpace(p.City))
	if locality != "" {
		parts = append(parts, locality)
	}
	return strings.Join(parts, ", ")
}
