package reports

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"aeye-server-go/internal/domain/report"
)

const (
	sheetName       = "Reports"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHeader 导出表头
var ExportHeader = []string{
	"ID",
	"Diagnose",
	"Confidence",
	"Camera Type",
	"Age",
	"Gender",
	"Diabetes History",
	"Family Diabetes History",
	"Weight",
	"Height",
	"Retake Count",
	"Image Key",
	"Created At",
	"Completed At",
}

var columnWidths = []float64{8, 10, 12, 22, 6, 12, 16, 22, 8, 8, 12, 36, 20, 20}

// BuildWorkbook renders reports as a single-sheet XLSX file.
func BuildWorkbook(items []*report.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, columnWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range items {
		values := rowValues(r)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func rowValues(r *report.Report) []interface{} {
	completed := ""
	if r.CompletedAt != nil {
		completed = r.CompletedAt.Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		r.ID,
		strconv.FormatBool(r.Diagnose),
		r.Confidence,
		r.CameraType,
		r.Age,
		r.Gender,
		r.DiabetesHistory,
		r.FamilyDiabetesHistory,
		r.Weight,
		r.Height,
		r.RetakeCount,
		r.ImageKey,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
		completed,
	}
}
