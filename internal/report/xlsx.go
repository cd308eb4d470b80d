package report

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var matchHeader = []string{
	"Rank", "Pair", "Listing A", "Listing B", "Basic Score", "Similarity", "Confidence",
	"Recommendation", "Fallback", "Explanation", "Reasons",
}

// WriteXLSX writes a workbook with a Matches sheet and a Summary sheet.
func WriteXLSX(w io.Writer, r Report) error {
	f := xlsx.NewFile()

	matches, err := f.AddSheet("Matches")
	if err != nil {
		return eris.Wrap(err, "report: xlsx: add matches sheet")
	}
	header := matches.AddRow()
	for _, h := range matchHeader {
		header.AddCell().SetString(h)
	}
	for _, m := range r.Matches {
		row := matches.AddRow()
		row.AddCell().SetInt(m.Rank)
		row.AddCell().SetString(m.PairKey)
		row.AddCell().SetString(m.PropertyAID)
		row.AddCell().SetString(m.PropertyBID)
		row.AddCell().SetFloat(m.BasicScore)
		row.AddCell().SetFloat(m.Similarity)
		row.AddCell().SetFloat(m.Confidence)
		row.AddCell().SetString(m.Recommendation)
		row.AddCell().SetBool(m.UsedFallback)
		row.AddCell().SetString(m.Explanation)
		row.AddCell().SetString(strings.Join(m.Reasons, "; "))
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: xlsx: add summary sheet")
	}
	idRow := summary.AddRow()
	idRow.AddCell().SetString("Run")
	idRow.AddCell().SetString(r.Run.ID)
	for _, kv := range summaryRows(r.Run) {
		row := summary.AddRow()
		row.AddCell().SetString(kv[0].(string))
		row.AddCell().SetValue(kv[1])
	}

	return eris.Wrap(f.Write(w), "report: xlsx: write")
}
