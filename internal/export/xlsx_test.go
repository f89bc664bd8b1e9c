package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/debtlink/internal/model"
)

func readSheet(t *testing.T, f *xlsx.File, name string) [][]string {
	t.Helper()
	sheet, ok := f.Sheet[name]
	require.True(t, ok, "sheet %s", name)
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows
}

func testReport() *model.CompanyMatchReport {
	m := model.MatchResult{
		InstrumentID: 10, DocumentID: 100, SectionType: model.SectionIndenture,
		Confidence: 0.95, Method: model.MethodIdentifier, Relationship: model.RelationshipGoverns,
		TitleExcerpt: "Indenture",
		Signals:      []model.MatchSignal{{Kind: "cusip", Confidence: 0.95}},
	}
	return &model.CompanyMatchReport{
		CompanyID: 1, CompanyName: "Acme Holdings, Inc.",
		TotalInstruments: 2, Bonds: 1, Loans: 1,
		Buckets: model.BucketCounts{High: 1, Unmatched: 1},
		Matches: []model.MatchResult{m},
		Candidates: []model.MatchResult{m, {
			InstrumentID: 10, DocumentID: 101, Confidence: 0.45,
			Method: model.MethodAmount, Relationship: model.RelationshipSupplements,
		}},
		Unmatched: []model.UnmatchedInstrument{{
			InstrumentID: 12, Name: "Revolver", Category: model.CategoryLoan, Reason: model.ReasonNoCandidates,
		}},
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(path, []*model.CompanyMatchReport{testReport(), nil}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, SheetSummary, f.Sheets[0].Name)

	summary := readSheet(t, f, SheetSummary)
	require.Len(t, summary, 2)
	assert.Equal(t, summaryHeader, summary[0])
	assert.Equal(t, []string{"1", "Acme Holdings, Inc.", "2", "1", "1", "1", "0", "1"}, summary[1])

	matches := readSheet(t, f, SheetMatches)
	require.Len(t, matches, 3, "header plus deduplicated rows")
	assert.Equal(t, []string{"1", "10", "100"}, matches[1][:3])
	assert.Equal(t, "identifier", matches[1][5])
	assert.Equal(t, "cusip=0.95", matches[1][8])
	assert.Equal(t, "101", matches[2][2])
	assert.Equal(t, "supplements", matches[2][6])

	unmatched := readSheet(t, f, SheetUnmatched)
	require.Len(t, unmatched, 2)
	assert.Equal(t, []string{"1", "12", "Revolver", "loan", model.ReasonNoCandidates}, unmatched[1][:5])
}

func TestWriteXLSX_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteXLSX(path, nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Len(t, readSheet(t, f, SheetMatches), 1)
}

func TestWriteXLSX_BadPath(t *testing.T) {
	err := WriteXLSX(filepath.Join(t.TempDir(), "missing", "report.xlsx"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: save")
}

func TestSignalSummary(t *testing.T) {
	assert.Equal(t, "", signalSummary(nil))
	assert.Equal(t, "coupon=0.35; maturity=0.30", signalSummary([]model.MatchSignal{
		{Kind: "coupon", Confidence: 0.35},
		{Kind: "maturity", Confidence: 0.3},
	}))
}
