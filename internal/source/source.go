// Package source loads property records from files and databases.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// Source yields the property records of one portfolio.
type Source interface {
	Load(ctx context.Context) ([]model.PropertyRecord, error)
}

// ErrUnsupportedFormat is returned when a file extension has no loader.
var ErrUnsupportedFormat = eris.New("source: unsupported format")

// FileSource loads records from a local JSON, CSV or XLSX file.
type FileSource struct {
	Path  string
	Sheet string // XLSX only; empty selects the first sheet
	Comma rune   // CSV only; zero means ','
}

// Load dispatches on the file extension.
func (f FileSource) Load(ctx context.Context) ([]model.PropertyRecord, error) {
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".json":
		file, err := os.Open(f.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: open %s", f.Path)
		}
		defer file.Close()
		return ReadJSON(file)
	case ".csv", ".tsv":
		file, err := os.Open(f.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: open %s", f.Path)
		}
		defer file.Close()
		comma := f.Comma
		if comma == 0 && strings.EqualFold(filepath.Ext(f.Path), ".tsv") {
			comma = '\t'
		}
		return ReadCSV(ctx, file, CSVOptions{Comma: comma})
	case ".xlsx":
		return ReadXLSX(ctx, f.Path, XLSXOptions{SheetName: f.Sheet})
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "source: %s", f.Path)
	}
}
