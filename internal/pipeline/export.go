package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"elcotec/internal"
)

func ExportRowsToXLSX(rows []internal.ItemExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"message_db_id", "message_id", "classified", "kind",
		"article_code", "description", "qty", "unit", "method", "priority", "status",
		"po_number", "rfq_number", "unit_price",
		"current_rev", "new_rev", "drawing_number",
		"findings",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.MessageDBID)
		set(2, row.MessageID)
		set(3, row.Classified)
		set(4, row.Kind)
		set(5, row.ArticleCode)
		set(6, row.Description)
		set(7, derefFloat(row.Quantity))
		set(8, row.Unit)
		set(9, row.Method)
		set(10, row.Priority)
		set(11, row.Status)
		set(12, derefString(row.PONumber))
		set(13, derefString(row.RFQNumber))
		set(14, derefFloat(row.UnitPrice))
		set(15, derefString(row.CurrentRev))
		set(16, derefString(row.NewRev))
		set(17, derefString(row.DrawingNumber))
		set(18, derefString(row.Findings))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
