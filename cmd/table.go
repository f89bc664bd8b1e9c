package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sells-group/debtlink/internal/batch"
	"github.com/sells-group/debtlink/internal/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func confidence(c float64) string {
	return strconv.FormatFloat(c, 'f', 2, 64)
}

func formatResults(results []model.MatchResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.FormatInt(r.InstrumentID, 10),
			strconv.FormatInt(r.DocumentID, 10),
			string(r.SectionType),
			confidence(r.Confidence),
			string(r.Method),
			string(r.Relationship),
			r.TitleExcerpt,
		})
	}
	return renderTable(
		[]string{"Instrument", "Document", "Section", "Confidence", "Method", "Relationship", "Title"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight},
	)
}

func formatReport(rep *model.CompanyMatchReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d): %d instruments, %d bonds, %d loans\n",
		rep.CompanyName, rep.CompanyID, rep.TotalInstruments, rep.Bonds, rep.Loans)
	fmt.Fprintf(&b, "high %d, low %d, unmatched %d\n",
		rep.Buckets.High, rep.Buckets.Low, rep.Buckets.Unmatched)

	if len(rep.Matches) > 0 {
		b.WriteString("\nMatches\n")
		b.WriteString(formatResults(rep.Matches))
		b.WriteString("\n")
	}
	if len(rep.Candidates) > 0 {
		b.WriteString("\nCandidates\n")
		b.WriteString(formatResults(rep.Candidates))
		b.WriteString("\n")
	}
	if len(rep.Unmatched) > 0 {
		rows := make([][]string, 0, len(rep.Unmatched))
		for _, u := range rep.Unmatched {
			rows = append(rows, []string{
				strconv.FormatInt(u.InstrumentID, 10),
				u.Name,
				string(u.Category),
				u.Reason,
				confidence(u.BestConfidence),
			})
		}
		b.WriteString("\nUnmatched\n")
		b.WriteString(renderTable(
			[]string{"Instrument", "Name", "Category", "Reason", "Best"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
		))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSummary(sum *batch.Summary) string {
	rows := make([][]string, 0, len(sum.Results))
	for _, r := range sum.Results {
		high, low, unmatched := "", "", ""
		if r.Report != nil {
			high = strconv.Itoa(r.Report.Buckets.High)
			low = strconv.Itoa(r.Report.Buckets.Low)
			unmatched = strconv.Itoa(r.Report.Buckets.Unmatched)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.CompanyID, 10),
			string(r.Status),
			high, low, unmatched,
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Attempts),
			r.Error,
		})
	}
	t := renderTable(
		[]string{"Company", "Status", "High", "Low", "Unmatched", "Links", "Attempts", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
	return fmt.Sprintf("%s\nrun %s: %d succeeded, %d failed, %d dead-lettered, %d links created in %s",
		t, sum.RunID, sum.Succeeded, sum.Failed, sum.DeadLettered, sum.Persist.Created, sum.Duration.Round(time.Millisecond))
}
