package ingest_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yelush19/Litay-Panda-miluim/ingest"
	"github.com/yelush19/Litay-Panda-miluim/recon"
)

// =============================================================================
// TEST SETUP - Build exports in memory with excelize
// =============================================================================

// buildSheet writes rows starting at the given 1-based row and returns the
// serialized workbook.
func buildSheet(t *testing.T, startRow int, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		for col, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, startRow+i)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

// =============================================================================
// MECANO ATTENDANCE EXPORT
// =============================================================================

func TestReadMecano(t *testing.T) {
	buf := buildSheet(t, 1, [][]any{
		{"שם עובד", "תאריך", "מחלקה"},
		{"Dana Cohen", "06.07.2025", "R&D"},
		{"Avi Levi", "07.07.2025", "Ops"},
	})

	rows, err := ingest.ReadMecano(buf)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Dana Cohen", rows[0][recon.FieldEmployeeName])
	assert.Equal(t, "06.07.2025", rows[0][recon.FieldDate])
	assert.Equal(t, "Ops", rows[1][recon.FieldDepartment])
}

func TestReadMecano_SkipsEmptyRowsAndBlankHeaders(t *testing.T) {
	buf := buildSheet(t, 1, [][]any{
		{"שם עובד", "תאריך", nil, "מחלקה"},
		{"Dana Cohen", "06.07.2025", "stray", "R&D"},
		{nil, nil, nil, nil},
		{"Avi Levi", "07.07.2025", nil, nil},
	})

	rows, err := ingest.ReadMecano(buf)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	// The unnamed third column never reaches the engine.
	for _, row := range rows {
		for field := range row {
			assert.NotEmpty(t, field)
		}
	}
}

func TestReadMecano_HeaderOnly(t *testing.T) {
	buf := buildSheet(t, 1, [][]any{
		{"שם עובד", "תאריך"},
	})

	rows, err := ingest.ReadMecano(buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// =============================================================================
// BTL INSURER EXPORT
// =============================================================================

func buildBTL(t *testing.T, dataRows [][]any) *bytes.Buffer {
	t.Helper()
	rows := make([][]any, 0, 12+len(dataRows))
	// Rows 1-11: preamble with fixed-position metadata.
	for i := 1; i <= 11; i++ {
		switch i {
		case 3:
			rows = append(rows, []any{"מספר מנה:", "81234"})
		case 10:
			rows = append(rows, []any{"תאריך תשלום:", "20/07/2025"})
		default:
			rows = append(rows, []any{fmt.Sprintf("header noise %d", i)})
		}
	}
	// Row 12: column headers.
	rows = append(rows, []any{
		"זהות", "שם פרטי", "שם משפחה", "תאריך שרות", "תאריך סיום שרות",
		"סוג תביעה", "תגמול",
	})
	rows = append(rows, dataRows...)
	return buildSheet(t, 1, rows)
}

func TestReadBTL_FixedPositionMetadata(t *testing.T) {
	buf := buildBTL(t, [][]any{
		{"123456789", "דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6,000"},
	})

	file, err := ingest.ReadBTL(buf, "btl_july.xlsx")
	require.NoError(t, err)

	assert.Equal(t, "81234", file.BatchNumber)
	assert.Equal(t, "20/07/2025", file.PaymentDate)
	assert.Equal(t, "btl_july.xlsx", file.SourceFile)
	require.Len(t, file.Rows, 1)
	assert.Equal(t, "123456789", file.Rows[0][recon.FieldIdentity])
	assert.Equal(t, "6,000", file.Rows[0][recon.FieldReimbursement])
}

func TestReadBTL_DropsTrailerRows(t *testing.T) {
	// The payer appends totals lines with a blank identity column.
	buf := buildBTL(t, [][]any{
		{"123456789", "דנה", "כהן", "06/07/2025", "12/07/2025", "תביעה מקורית", "6000"},
		{"987654321", "אבי", "לוי", "06/07/2025", "12/07/2025", "תביעה מקורית", "5000"},
		{nil, "סה\"כ", nil, nil, nil, nil, "11000"},
	})

	file, err := ingest.ReadBTL(buf, "btl.xlsx")
	require.NoError(t, err)

	require.Len(t, file.Rows, 2)
	assert.Equal(t, "987654321", file.Rows[1][recon.FieldIdentity])
}

func TestReadBTL_TooShort(t *testing.T) {
	buf := buildSheet(t, 1, [][]any{
		{"only"},
		{"five"},
		{"rows"},
		{"of"},
		{"noise"},
	})

	_, err := ingest.ReadBTL(buf, "short.xlsx")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}
