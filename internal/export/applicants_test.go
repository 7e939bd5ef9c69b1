package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestApplicantsWorkbook(t *testing.T) {
	applied := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	data, err := ApplicantsWorkbook(Report{
		PostID:      7,
		PostTitle:   "Golang Backend Engineer",
		CompanyName: "Acme",
		GeneratedAt: applied,
		Rows: []ApplicantRow{
			{Rank: 1, Name: "Alice", Email: "alice@example.com", CVName: "alice-go", Status: "PENDING", Score: 82, Reason: "Tech: go", Highlights: []string{"Go", "MySQL"}, AppliedAt: applied, CVParsed: true},
			{Rank: 2, Name: "Bob", Email: "bob@example.com", CVName: "bob", Status: "PENDING", Score: 40, AppliedAt: applied},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, rankedSheet}, f.GetSheetList())

	title, err := f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Golang Backend Engineer", title)

	rows, err := f.GetRows(rankedSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, rankedHeaders, rows[0])
	assert.Equal(t, "Alice", rows[1][1])
	assert.Equal(t, "82", rows[1][5])
	assert.Equal(t, "• Go\n• MySQL", rows[1][7])
	assert.Contains(t, rows[2][6], "CV not parsed yet")
}

func TestApplicantsWorkbookEmpty(t *testing.T) {
	data, err := ApplicantsWorkbook(Report{PostTitle: "Empty"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	n, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "0", n)
}
