package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/listing-dedupe/internal/model"
)

func sampleReport() Report {
	return Report{
		Run: model.Run{
			ID:                 "run-42",
			OwnerID:            "owner-1",
			Status:             model.RunStatusComplete,
			EligibleProperties: 3,
			PairsEnumerated:    3,
			PairsPassedFunnel:  2,
			OracleUsed:         true,
			OracleCalls:        2,
			FallbackCount:      1,
			MatchCount:         2,
			StartedAt:          time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			Duration:           2300 * time.Millisecond,
		},
		Matches: []model.Match{
			{
				RunID: "run-42", Rank: 1, PairKey: "p1|p2", PropertyAID: "p1", PropertyBID: "p2",
				BasicScore: 93.33, Similarity: 96, Confidence: 92, Recommendation: "merge",
				Explanation: "Same flat listed twice", Reasons: []string{"identical address", "same rent"},
			},
			{
				RunID: "run-42", Rank: 2, PairKey: "p2|p3", PropertyAID: "p2", PropertyBID: "p3",
				BasicScore: 71.5, Similarity: 50, Confidence: 30, Recommendation: "review",
				UsedFallback: true, Explanation: "oracle timeout",
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"xlsx", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Run run-42")
	assert.Contains(t, out, "merge")
	assert.Contains(t, out, "fallback: oracle timeout")
	assert.Contains(t, out, "Pairs passed funnel")
	assert.Contains(t, out, "2.3s")
}

func TestWriteTable_NoMatches(t *testing.T) {
	r := sampleReport()
	r.Matches = nil

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, r))
	assert.Contains(t, buf.String(), "Eligible properties")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleReport()))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-42", got.Run.ID)
	require.Len(t, got.Matches, 2)
	assert.Equal(t, []string{"identical address", "same rent"}, got.Matches[0].Reasons)
	assert.Contains(t, buf.String(), `"similarity_score": 96`)
}

func TestWriteJSON_EmptyMatchesIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Report{Run: model.Run{ID: "r"}}))
	assert.Contains(t, buf.String(), `"matches": []`)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleReport()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	matches, ok := f.Sheet["Matches"]
	require.True(t, ok)
	require.Len(t, matches.Rows, 3)
	assert.Equal(t, "Pair", matches.Rows[0].Cells[1].String())
	assert.Equal(t, "p1|p2", matches.Rows[1].Cells[1].String())
	assert.Equal(t, "merge", matches.Rows[1].Cells[7].String())
	assert.Equal(t, "identical address; same rent", matches.Rows[1].Cells[10].String())

	summary, ok := f.Sheet["Summary"]
	require.True(t, ok)
	assert.Equal(t, "run-42", summary.Rows[0].Cells[1].String())
}

func TestWriteRunsTable(t *testing.T) {
	var buf bytes.Buffer
	r := sampleReport()
	WriteRunsTable(&buf, []model.Run{r.Run})

	out := buf.String()
	assert.Contains(t, out, "run-42")
	assert.Contains(t, out, "2026-03-01 09:30:00")
}
