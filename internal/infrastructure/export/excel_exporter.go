// Package export renders request reports into downloadable files.
package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/application/port"
	"github.com/garyjia/travel-support/internal/domain/entity"
	"github.com/garyjia/travel-support/internal/summary"
)

// Sheet names in the exported workbook
const (
	ExpensesSheet = "Expenses"
	SummarySheet  = "Summary"
)

var expenseHeader = []interface{}{
	"Expense ID", "Date", "Category", "Description", "Location",
	"Amount", "Currency", "Status", "Receipts", "Review Notes",
}

// ExcelExporter implements port.ReportExporter with an xlsx workbook
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// ContentType returns the xlsx MIME type
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension returns ".xlsx"
func (e *ExcelExporter) FileExtension() string {
	return ".xlsx"
}

// Export writes one sheet of expense lines and one sheet of totals
func (e *ExcelExporter) Export(ctx context.Context, req *entity.TravelSupportRequest, s *summary.Summary) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Info("Exporting request workbook",
		zap.String("request_id", req.ID),
		zap.Int("expenses", len(req.Expenses)),
		zap.String("grand_total", s.GrandTotal.StringFixed(2)))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExpensesSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, fmt.Errorf("failed to create amount style: %w", err)
	}

	if err := e.fillExpenses(f, req, headerStyle, amountStyle); err != nil {
		return nil, err
	}
	if err := e.fillSummary(f, req, s, headerStyle, amountStyle); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *ExcelExporter) fillExpenses(f *excelize.File, req *entity.TravelSupportRequest, headerStyle, amountStyle int) error {
	if err := f.SetSheetRow(ExpensesSheet, "A1", &expenseHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(ExpensesSheet, "A1", "J1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, exp := range req.Expenses {
		row := []interface{}{
			exp.ID,
			exp.ExpenseDate.String(),
			string(exp.Category),
			exp.Description,
			exp.Location,
			exp.Amount.InexactFloat64(),
			exp.CurrencyLabel(),
			string(exp.Status),
			len(exp.Receipts),
			exp.ReviewNotes,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ExpensesSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write expense %s: %w", exp.ID, err)
		}
		amountCell, _ := excelize.CoordinatesToCellName(6, i+2)
		e.setStyle(f, ExpensesSheet, amountCell, amountStyle)
	}

	if err := f.SetColWidth(ExpensesSheet, "A", "J", 16); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	return nil
}

func (e *ExcelExporter) fillSummary(f *excelize.File, req *entity.TravelSupportRequest, s *summary.Summary, headerStyle, amountStyle int) error {
	rows := [][]interface{}{
		{"Request", req.ID},
		{"Speaker", req.SpeakerID},
		{"Conference", req.ConferenceID},
		{"Status", string(req.Status)},
		{"Currency", string(s.Currency)},
		{},
		{"Status", "Count", "Total"},
		{"Approved", s.Approved.Count, s.Approved.Total.InexactFloat64()},
		{"Pending", s.Pending.Count, s.Pending.Total.InexactFloat64()},
		{"Rejected", s.Rejected.Count, s.Rejected.Total.InexactFloat64()},
		{"Grand Total", "", s.GrandTotal.InexactFloat64()},
	}
	if req.ApprovedAmount.Valid {
		rows = append(rows, []interface{}{"Approved Amount", "", req.ApprovedAmount.Decimal.InexactFloat64()})
	}
	if len(s.Unconverted) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"Unconverted", "Status", "Amount"})
		for _, raw := range s.Unconverted {
			rows = append(rows, []interface{}{raw.Currency, string(raw.Status), raw.Amount.InexactFloat64()})
		}
	}
	if s.Stale {
		rows = append(rows, []interface{}{}, []interface{}{"Note", "Totals use cached exchange rates"})
	}

	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
		if len(rows[i]) == 3 {
			if _, ok := rows[i][2].(float64); ok {
				amountCell, _ := excelize.CoordinatesToCellName(3, i+1)
				e.setStyle(f, SummarySheet, amountCell, amountStyle)
				continue
			}
			e.setStyle(f, SummarySheet, cell, headerStyle)
		}
	}
	return nil
}

// setStyle styles a single cell, logging instead of failing
func (e *ExcelExporter) setStyle(f *excelize.File, sheet, cell string, style int) {
	if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
		e.logger.Warn("Failed to set cell style",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

var _ port.ReportExporter = (*ExcelExporter)(nil)
