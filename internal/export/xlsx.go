package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"contact-insights-go/internal/types"
)

const sheetName = "Opportunities"

var header = []string{
	"ID", "Name", "Pipeline", "Stage", "Status", "Value",
	"Contact", "Email", "Phone", "Has Analysis", "Created At",
}

// Opportunities writes the enriched listing as an xlsx workbook, one row per
// opportunity. Used by the dashboard's download button.
func Opportunities(w io.Writer, opps []types.Opportunity) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, o := range opps {
		row := i + 2
		values := []any{
			o.ID, o.Name, o.PipelineName, o.StageID, o.Status, o.MonetaryValue,
			o.Contact.Name, o.Contact.Email, o.Contact.Phone, o.HasAnalysis,
			formatTime(o.CreatedAt),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
