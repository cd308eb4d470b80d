package source

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Comma      rune // default ','
	LazyQuotes bool
}

// ReadCSV reads a header-mapped CSV export of property records.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.PropertyRecord, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "source: csv: read header")
	}

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "source: csv: context cancelled")
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "source: csv: read row")
		}
		rows = append(rows, record)
	}
	return rowsToRecords(header, rows)
}
