// Package report renders scan runs and their matches for people and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// Format selects the report encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatXLSX:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want table, json or xlsx)", s)
	}
}

// Report is a run summary with its ranked matches.
type Report struct {
	Run     model.Run     `json:"run"`
	Matches []model.Match `json:"matches"`
}

// Write renders r in the given format.
func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r)
	default:
		return WriteTable(w, r)
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	if r.Matches == nil {
		r.Matches = []model.Match{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(r), "report: encode json")
}

// WriteTable writes the matches of r as a terminal table followed by the
// run summary.
func WriteTable(w io.Writer, r Report) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run %s", r.Run.ID)
	t.AppendHeader(table.Row{"#", "Listing A", "Listing B", "Basic", "Similarity", "Confidence", "Recommendation", "Note"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, WidthMax: 60},
	})

	for _, m := range r.Matches {
		note := m.Explanation
		if m.UsedFallback {
			note = "fallback: " + note
		}
		t.AppendRow(table.Row{
			m.Rank, m.PropertyAID, m.PropertyBID,
			fmt.Sprintf("%.1f", m.BasicScore),
			fmt.Sprintf("%.0f", m.Similarity),
			fmt.Sprintf("%.0f", m.Confidence),
			m.Recommendation, note,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "matches", len(r.Matches)})
	t.Render()

	s := summaryTable(w, r.Run)
	s.Render()
	return nil
}

func summaryTable(w io.Writer, run model.Run) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	for _, row := range summaryRows(run) {
		t.AppendRow(table.Row{row[0], row[1]})
	}
	return t
}

// summaryRows lists the run statistics as label/value pairs.
func summaryRows(run model.Run) [][2]any {
	return [][2]any{
		{"Status", string(run.Status)},
		{"Owner", run.OwnerID},
		{"Eligible properties", run.EligibleProperties},
		{"Pairs enumerated", run.PairsEnumerated},
		{"Pairs passed funnel", run.PairsPassedFunnel},
		{"Oracle used", run.OracleUsed},
		{"Oracle calls", run.OracleCalls},
		{"Fallback verdicts", run.FallbackCount},
		{"Matches", run.MatchCount},
		{"Started", run.StartedAt.UTC().Format(time.RFC3339)},
		{"Duration", run.Duration.Round(time.Millisecond).String()},
	}
}

// WriteRunsTable lists runs one per row.
func WriteRunsTable(w io.Writer, runs []model.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Owner", "Status", "Properties", "Pairs", "Funnel", "Oracle Calls", "Matches", "Started At", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID, r.OwnerID, string(r.Status), r.EligibleProperties, r.PairsEnumerated,
			r.PairsPassedFunnel, r.OracleCalls, r.MatchCount,
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	t.Render()
}
