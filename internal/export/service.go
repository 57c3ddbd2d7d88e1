package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/murphyws/finance-portal/internal/report"
)

// Service produces XLSX bytes for report downloads.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// YearPLXLSX renders a yearly P&L report as an XLSX workbook.
func (s *Service) YearPLXLSX(r *report.YearReport) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "P&L"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, fmt.Sprintf("%s — %d", r.Company, r.Year))

	headers := []string{"Month", "Revenue", "Expenses", "Net Income", "Documents"}
	for i, h := range headers {
		write(i+1, 2, h)
	}

	row := 3
	for _, m := range r.Months {
		write(1, row, m.Month)
		write(2, row, m.Revenue.String())
		write(3, row, m.Expenses.String())
		write(4, row, m.NetIncome.String())
		write(5, row, m.Documents)
		row++
	}

	write(1, row, "Total")
	write(2, row, r.TotalRevenue.String())
	write(3, row, r.TotalExpenses.String())
	write(4, row, r.NetIncome.String())

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.pnl.ok",
		"company", r.Company, "year", r.Year,
		"months", len(r.Months), "bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
