package blobsink

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// anomalySheet 异常工作簿的工作表名
const anomalySheet = "QA Anomalies"

// buildAnomalyWorkbook 构建异常表格工作簿并返回字节内容
// 表头加粗，异常行整理成带条纹样式的表格，列宽按内容自适应
func buildAnomalyWorkbook(anomalies []AnomalyRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", anomalySheet); err != nil {
		return nil, err
	}

	headers := []string{"Page", "Field", "Issue"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(anomalySheet, cell, header); err != nil {
			return nil, err
		}
	}

	// 表头加粗
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(anomalySheet, "A1", "C1", boldStyle); err != nil {
		return nil, err
	}

	// 列宽跟踪，初始为表头宽度
	widths := []float64{float64(len("Page")), float64(len("Field")), float64(len("Issue"))}

	for i, a := range anomalies {
		row := i + 2
		values := []string{a.Page, a.Field, a.Issue}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(anomalySheet, cell, value); err != nil {
				return nil, err
			}
			if w := float64(len(value)); w > widths[col] {
				widths[col] = w
			}
		}
	}

	// 有异常行时整理成表格
	if len(anomalies) > 0 {
		showStripes := true
		err := f.AddTable(anomalySheet, &excelize.Table{
			Range:          fmt.Sprintf("A1:C%d", len(anomalies)+1),
			Name:           "AnomalyTable",
			StyleName:      "TableStyleMedium9",
			ShowRowStripes: &showStripes,
		})
		if err != nil {
			return nil, err
		}
	}

	// 列宽按最长内容加一点余量
	for col, width := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(anomalySheet, name, name, width+2); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
