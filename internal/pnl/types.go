package pnl

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single line item extracted from a document. Amounts are
// decimal strings on the wire; decimal.Decimal accepts both quoted and bare
// JSON numbers, so model output parses either way.
type Transaction struct {
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"` // credit | debit
	Category    string          `json:"category,omitempty"`
}

const (
	TxCredit = "credit"
	TxDebit  = "debit"
)

// Statement is a profit-and-loss summary. NetIncome is always derived by the
// pipeline as TotalRevenue - TotalExpenses; the model's self-reported value
// is never trusted.
type Statement struct {
	TotalRevenue  decimal.Decimal            `json:"totalRevenue"`
	TotalExpenses decimal.Decimal            `json:"totalExpenses"`
	NetIncome     decimal.Decimal            `json:"netIncome"`
	Categories    map[string]decimal.Decimal `json:"categories,omitempty"`
}

// AnalysisResult is the payload persisted on a document record after
// extraction. It is stored as opaque JSON bytes on the record.
type AnalysisResult struct {
	PLStatement  Statement     `json:"plStatement"`
	Transactions []Transaction `json:"transactions,omitempty"`
	Insights     []string      `json:"insights,omitempty"`
	Confidence   float64       `json:"confidence,omitempty"`
	ExtractedAt  time.Time     `json:"extractedAt"`
	Model        string        `json:"model,omitempty"`
}
