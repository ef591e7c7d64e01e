package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var workOrderExportHeaders = []string{"生产订单", "工单", "状态", "操作工", "进度(%)", "报废数", "物料用量", "工时", "异常"}

// ExportService 工单导出
type ExportService struct {
	workOrders *WorkOrderService
}

func NewExportService(workOrders *WorkOrderService) *ExportService {
	return &ExportService{workOrders: workOrders}
}

func exportRow(v WorkOrderView) []interface{} {
	operator := ""
	if v.Operator != nil {
		operator = v.Operator.Name
	}
	return []interface{}{
		v.ProductionName, v.Name, v.State, operator,
		v.WorkProgress, v.ScrapCount, v.MaterialUsage, v.FormattedDuration, v.IssuesReported,
	}
}

// ExportXLSX 导出工单为 Excel
func (s *ExportService) ExportXLSX(ctx context.Context, sess Session, input ListWorkOrdersInput) (*excelize.File, string, error) {
	views, err := s.workOrders.List(ctx, sess, input)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "工单"
	f.SetSheetName("Sheet1", sheet)

	headStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range workOrderExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headStyle)
	}

	for rowIdx, v := range views {
		for colIdx, val := range exportRow(v) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, val)
		}
	}

	colWidths := []float64{14, 20, 10, 12, 8, 8, 10, 8, 40}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("workorders_%s.xlsx", time.Now().Format("20060102"))
	return f, filename, nil
}

// ExportCSV 导出工单为 CSV；gbk 为 true 时按 GBK 编码输出，方便 Excel 直接打开
func (s *ExportService) ExportCSV(ctx context.Context, sess Session, input ListWorkOrdersInput, w io.Writer, gbk bool) error {
	views, err := s.workOrders.List(ctx, sess, input)
	if err != nil {
		return err
	}

	out := w
	var encoder *transform.Writer
	if gbk {
		// GBK 无法表示的字符（如 emoji）替换掉，不中断导出
		encoder = transform.NewWriter(w, encoding.ReplaceUnsupported(simplifiedchinese.GBK.NewEncoder()))
		out = encoder
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(workOrderExportHeaders); err != nil {
		return err
	}
	for _, v := range views {
		row := exportRow(v)
		record := make([]string, len(row))
		for i, val := range row {
			record[i] = csvValue(val)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if encoder != nil {
		return encoder.Close()
	}
	return nil
}

func csvValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
