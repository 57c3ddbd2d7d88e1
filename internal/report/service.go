package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/murphyws/finance-portal/constants"
	"github.com/murphyws/finance-portal/internal/entity"
	"github.com/murphyws/finance-portal/internal/pnl"
	"github.com/murphyws/finance-portal/internal/repository"
)

// Service aggregates completed analyses into the dashboard's P&L reports.
type Service struct {
	docs   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

// MonthlyPL is one month's rolled-up P&L.
type MonthlyPL struct {
	Month     string          `json:"month"`
	Revenue   decimal.Decimal `json:"revenue"`
	Expenses  decimal.Decimal `json:"expenses"`
	NetIncome decimal.Decimal `json:"netIncome"`
	Documents int             `json:"documents"`
}

// YearReport is the company's P&L for one year, month by month.
type YearReport struct {
	Company       constants.Company `json:"company"`
	Year          int               `json:"year"`
	Months        []MonthlyPL       `json:"months"`
	TotalRevenue  decimal.Decimal   `json:"totalRevenue"`
	TotalExpenses decimal.Decimal   `json:"totalExpenses"`
	NetIncome     decimal.Decimal   `json:"netIncome"`
}

// YearPL sums the persisted analyses of all completed documents for a
// company and year. Records whose analysis blob does not decode are skipped
// with a warning rather than failing the report.
func (s *Service) YearPL(ctx context.Context, company constants.Company, year int) (*YearReport, error) {
	docs, err := s.docs.List(ctx, repository.ListFilter{
		Company: company,
		Status:  constants.StatusCompleted,
		Year:    year,
	})
	if err != nil {
		return nil, fmt.Errorf("list completed documents: %w", err)
	}

	byMonth := lo.GroupBy(docs, func(d *entity.Document) string { return d.Month })

	report := &YearReport{Company: company, Year: year}
	for _, month := range constants.MonthNames {
		group, ok := byMonth[month]
		if !ok {
			continue
		}

		m := MonthlyPL{Month: month}
		for _, doc := range group {
			var analysis pnl.AnalysisResult
			if err := json.Unmarshal(doc.AnalysisResult, &analysis); err != nil {
				s.logger.Warn("report.analysis_decode_failed", "document_id", doc.ID, "error", err)
				continue
			}
			m.Revenue = m.Revenue.Add(analysis.PLStatement.TotalRevenue)
			m.Expenses = m.Expenses.Add(analysis.PLStatement.TotalExpenses)
			m.Documents++
		}
		m.NetIncome = m.Revenue.Sub(m.Expenses)

		report.Months = append(report.Months, m)
		report.TotalRevenue = report.TotalRevenue.Add(m.Revenue)
		report.TotalExpenses = report.TotalExpenses.Add(m.Expenses)
	}
	report.NetIncome = report.TotalRevenue.Sub(report.TotalExpenses)

	return report, nil
}
