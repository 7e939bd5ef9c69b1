package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	rankedSheet  = "Ranked Applicants"
)

// ApplicantRow 排名表中的一行
type ApplicantRow struct {
	Rank       int
	Name       string
	Email      string
	CVName     string
	Status     string
	Score      int
	Reason     string
	Highlights []string
	AppliedAt  time.Time
	CVParsed   bool
}

// Report 导出所需的帖子信息与排名
type Report struct {
	PostID      uint64
	PostTitle   string
	CompanyName string
	GeneratedAt time.Time
	Rows        []ApplicantRow
}

var rankedHeaders = []string{"Rank", "Applicant", "Email", "CV", "Status", "Score", "Reason", "Highlights", "Applied At"}

// ApplicantsWorkbook 生成 xlsx：汇总页 + 排名页
func ApplicantsWorkbook(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(rankedSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("create wrap style: %w", err)
	}

	if err := writeSummary(f, r, headerStyle); err != nil {
		return nil, fmt.Errorf("write summary sheet: %w", err)
	}
	if err := writeRanked(f, r.Rows, headerStyle, wrapStyle); err != nil {
		return nil, fmt.Errorf("write ranked sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, r Report, headerStyle int) error {
	_ = f.SetColWidth(summarySheet, "A", "A", 22)
	_ = f.SetColWidth(summarySheet, "B", "B", 50)

	if err := f.SetCellValue(summarySheet, "A1", "Applicant Ranking"); err != nil {
		return err
	}
	if err := f.MergeCell(summarySheet, "A1", "B1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return err
	}

	generated := r.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	var best, total int
	for _, row := range r.Rows {
		total += row.Score
		if row.Score > best {
			best = row.Score
		}
	}
	avg := 0.0
	if len(r.Rows) > 0 {
		avg = float64(total) / float64(len(r.Rows))
	}

	rows := [][2]interface{}{
		{"Post", r.PostTitle},
		{"Post ID", r.PostID},
		{"Company", r.CompanyName},
		{"Generated", generated.Format("2006-01-02 15:04:05")},
		{"Applicants", len(r.Rows)},
		{"Best score", best},
		{"Average score", fmt.Sprintf("%.1f", avg)},
	}
	for i, kv := range rows {
		line := i + 3
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", line), kv[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", line), kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeRanked(f *excelize.File, rows []ApplicantRow, headerStyle, wrapStyle int) error {
	widths := []float64{6, 24, 28, 24, 12, 8, 60, 60, 20}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		_ = f.SetColWidth(rankedSheet, col, col, w)
	}
	for i, h := range rankedHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(rankedSheet, cell, h); err != nil {
			return err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(rankedHeaders), 1)
	if err := f.SetCellStyle(rankedSheet, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		reason := row.Reason
		if !row.CVParsed {
			reason = "CV not parsed yet; " + reason
		}
		values := []interface{}{
			row.Rank, row.Name, row.Email, row.CVName, row.Status, row.Score,
			reason, joinLines(row.Highlights), row.AppliedAt.Format("2006-01-02 15:04"),
		}
		line := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, line)
		if err := f.SetSheetRow(rankedSheet, cell, &values); err != nil {
			return err
		}
		from, _ := excelize.CoordinatesToCellName(7, line)
		to, _ := excelize.CoordinatesToCellName(8, line)
		if err := f.SetCellStyle(rankedSheet, from, to, wrapStyle); err != nil {
			return err
		}
	}
	return f.SetPanes(rankedSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func joinLines(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "\n"
		}
		out += "• " + s
	}
	return out
}
