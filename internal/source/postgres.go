package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/listing-dedupe/internal/db"
	"github.com/sells-group/listing-dedupe/internal/model"
)

// PostgresSource reads property records from a table whose location column
// is a PostGIS point.
type PostgresSource struct {
	q       db.Querier
	table   string
	ownerID string
}

// NewPostgresSource creates a source over table. A non-empty ownerID limits
// the query to that owner's listings.
func NewPostgresSource(q db.Querier, table, ownerID string) *PostgresSource {
	if table == "" {
		table = "properties"
	}
	return &PostgresSource{q: q, table: table, ownerID: ownerID}
}

func (s *PostgresSource) query() (string, []any) {
	query := fmt.Sprintf(`SELECT id, title, description, street_name, street_number, city, postal_code,
		ST_AsEWKB(location), monthly_rent, sale_price, bedrooms, bathrooms, area_sqm, owner_id, status
		FROM %s`, pgx.Identifier(strings.Split(s.table, ".")).Sanitize())
	var args []any
	if s.ownerID != "" {
		query += ` WHERE owner_id = $1`
		args = append(args, s.ownerID)
	}
	return query + ` ORDER BY id`, args
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) ([]model.PropertyRecord, error) {
	query, args := s.query()
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "source: postgres: query %s", s.table)
	}
	defer rows.Close()

	var out []model.PropertyRecord
	for rows.Next() {
		var (
			p                    model.PropertyRecord
			desc, street, number *string
			city, postal         *string
			owner, status        *string
			location             []byte
		)
		if err := rows.Scan(&p.ID, &p.Title, &desc, &street, &number, &city, &postal,
			&location, &p.MonthlyRent, &p.SalePrice, &p.Bedrooms, &p.Bathrooms, &p.AreaSqm,
			&owner, &status); err != nil {
			return nil, eris.Wrap(err, "source: postgres: scan")
		}
		p.Description = deref(desc)
		p.StreetName = deref(street)
		p.StreetNumber = deref(number)
		p.City = deref(city)
		p.PostalCode = deref(postal)
		p.OwnerID = deref(owner)
		p.Status = model.ParsePropertyStatus(deref(status))

		if len(location) > 0 {
			lat, lng, err := DecodePoint(location)
			if err != nil {
				zap.L().Warn("source: postgres: ignoring undecodable location",
					zap.String("property_id", p.ID), zap.Error(err))
			} else {
				p.Latitude, p.Longitude = &lat, &lng
			}
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "source: postgres: iterate")
}

// DecodePoint decodes an (E)WKB point with X as longitude and Y as latitude.
func DecodePoint(data []byte) (lat, lng float64, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, eris.Wrap(err, "source: decode wkb")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("source: location is %T, want point", g)
	}
	if pt.Empty() {
		return 0, 0, eris.New("source: location is an empty point")
	}
	return pt.Y(), pt.X(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
