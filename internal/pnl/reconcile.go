package pnl

import "github.com/shopspring/decimal"

// Reconcile validates a model-reported statement against the raw transaction
// list. When the list is non-empty and its recomputed revenue+expense sum is
// non-zero, the recomputed figures win: models regularly return an
// internally inconsistent summary while still listing correct line items.
// NetIncome is recomputed unconditionally.
func Reconcile(reported Statement, txns []Transaction) Statement {
	out := reported

	if len(txns) > 0 {
		revenue := decimal.Zero
		expenses := decimal.Zero
		categories := make(map[string]decimal.Decimal, len(txns))

		for _, tx := range txns {
			amt := tx.Amount.Abs()
			switch tx.Type {
			case TxCredit:
				revenue = revenue.Add(amt)
				if tx.Category != "" {
					categories[tx.Category] = categories[tx.Category].Add(amt)
				}
			case TxDebit:
				expenses = expenses.Add(amt)
				if tx.Category != "" {
					categories[tx.Category] = categories[tx.Category].Sub(amt)
				}
			}
		}

		if !revenue.Add(expenses).IsZero() {
			out.TotalRevenue = revenue
			out.TotalExpenses = expenses
			out.Categories = categories
		}
	}

	out.NetIncome = out.TotalRevenue.Sub(out.TotalExpenses)
	return out
}
