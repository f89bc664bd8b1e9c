// Package export writes match reports to spreadsheet workbooks.
package export

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/debtlink/internal/model"
)

// Sheet names.
const (
	SheetSummary   = "Summary"
	SheetMatches   = "Matches"
	SheetUnmatched = "Unmatched"
)

var (
	summaryHeader   = []string{"Company ID", "Company", "Instruments", "Bonds", "Loans", "High", "Low", "Unmatched"}
	matchesHeader   = []string{"Company ID", "Instrument ID", "Document ID", "Section", "Confidence", "Method", "Relationship", "Title", "Signals"}
	unmatchedHeader = []string{"Company ID", "Instrument ID", "Instrument", "Category", "Reason", "Best Confidence"}
)

// WriteXLSX writes one workbook covering every report: a summary row per
// company, one row per match (candidates included) and one per unmatched
// instrument.
func WriteXLSX(path string, reports []*model.CompanyMatchReport) error {
	f := xlsx.NewFile()

	summary, err := addSheet(f, SheetSummary, summaryHeader)
	if err != nil {
		return err
	}
	matches, err := addSheet(f, SheetMatches, matchesHeader)
	if err != nil {
		return err
	}
	unmatched, err := addSheet(f, SheetUnmatched, unmatchedHeader)
	if err != nil {
		return err
	}

	for _, rep := range reports {
		if rep == nil {
			continue
		}
		row := summary.AddRow()
		addInt(row, rep.CompanyID)
		addString(row, rep.CompanyName)
		addInt(row, int64(rep.TotalInstruments))
		addInt(row, int64(rep.Bonds))
		addInt(row, int64(rep.Loans))
		addInt(row, int64(rep.Buckets.High))
		addInt(row, int64(rep.Buckets.Low))
		addInt(row, int64(rep.Buckets.Unmatched))

		for _, m := range dedupe(rep) {
			row := matches.AddRow()
			addInt(row, rep.CompanyID)
			addInt(row, m.InstrumentID)
			addInt(row, m.DocumentID)
			addString(row, string(m.SectionType))
			addConfidence(row, m.Confidence)
			addString(row, string(m.Method))
			addString(row, string(m.Relationship))
			addString(row, m.TitleExcerpt)
			addString(row, signalSummary(m.Signals))
		}

		for _, u := range rep.Unmatched {
			row := unmatched.AddRow()
			addInt(row, rep.CompanyID)
			addInt(row, u.InstrumentID)
			addString(row, u.Name)
			addString(row, string(u.Category))
			addString(row, u.Reason)
			addConfidence(row, u.BestConfidence)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		addString(row, h)
	}
	return sheet, nil
}

// dedupe returns matches followed by candidates not already listed.
func dedupe(rep *model.CompanyMatchReport) []model.MatchResult {
	seen := make(map[model.LinkKey]bool, len(rep.Matches)+len(rep.Candidates))
	var out []model.MatchResult
	for _, list := range [][]model.MatchResult{rep.Matches, rep.Candidates} {
		for _, m := range list {
			k := m.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, m)
		}
	}
	return out
}

// signalSummary renders signals as "kind=0.35; kind=0.30".
func signalSummary(signals []model.MatchSignal) string {
	parts := make([]string, len(signals))
	for i, s := range signals {
		parts[i] = s.Kind + "=" + strconv.FormatFloat(s.Confidence, 'f', 2, 64)
	}
	return strings.Join(parts, "; ")
}

func addString(row *xlsx.Row, v string) {
	row.AddCell().SetString(v)
}

func addInt(row *xlsx.Row, v int64) {
	row.AddCell().SetInt64(v)
}

func addConfidence(row *xlsx.Row, v float64) {
	row.AddCell().SetFloatWithFormat(v, "0.00")
}
