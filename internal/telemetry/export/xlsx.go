package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "summary"
	recordsSheet = "records"
)

// BuildHistoryXLSX renders a workbook with a summary sheet and one row per record.
func BuildHistoryXLSX(h History) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Meter history")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", h.DeviceID)
	_ = f.SetCellValue(summarySheet, "A4", "Node")
	_ = f.SetCellValue(summarySheet, "B4", h.NodeID)
	_ = f.SetCellValue(summarySheet, "A5", "Generated")
	_ = f.SetCellValue(summarySheet, "B5", h.GeneratedAt.UTC())
	_ = f.SetCellValue(summarySheet, "A6", "Records")
	_ = f.SetCellValue(summarySheet, "B6", len(h.Records))

	headers := []string{"Timestamp (UTC)", "Current (A)", "Voltage (V)", "Power factor", "Apparent power (kVA)", "Source", "Diagnostics"}
	for i, title := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(recordsSheet, cell, title)
	}

	for i, r := range h.Records {
		row := i + 2
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("A%d", row), r.Timestamp.UTC())
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("B%d", row), r.Current)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("C%d", row), r.Voltage)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("D%d", row), r.PowerFactor)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("E%d", row), r.ApparentPower)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("F%d", row), r.Source)
		if len(r.Diagnostics) > 0 {
			b, err := json.Marshal(r.Diagnostics)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(recordsSheet, fmt.Sprintf("G%d", row), string(b))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
