package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// NormalizeAnalysisJSON
// - Renames known key synonyms (pl_statement -> plStatement, income -> credit)
// - Drops unknown top-level keys (strict additionalProperties friendliness)
// - Drops transactions with no usable amount or type
func NormalizeAnalysisJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) key synonyms the models use for the statement block
	renamed("pl_statement", "plStatement")
	renamed("profitAndLoss", "plStatement")
	renamed("profit_and_loss", "plStatement")
	renamed("summary", "plStatement")

	if pl, ok := m["plStatement"].(map[string]any); ok {
		plRenamed := func(from, to string) {
			if v, ok := pl[from]; ok {
				if _, exists := pl[to]; !exists {
					pl[to] = v
				}
				delete(pl, from)
				dropped = append(dropped, "plStatement."+from+"->"+to)
			}
		}
		plRenamed("total_revenue", "totalRevenue")
		plRenamed("revenue", "totalRevenue")
		plRenamed("total_expenses", "totalExpenses")
		plRenamed("expenses", "totalExpenses")
		plRenamed("net_income", "netIncome")
		plRenamed("profit", "netIncome")
		for k := range pl {
			switch k {
			case "totalRevenue", "totalExpenses", "netIncome", "categories":
			default:
				delete(pl, k)
				dropped = append(dropped, "plStatement."+k+"(unknown)")
			}
		}
	}

	// 2) transaction list: normalize type synonyms, drop unusable entries
	if txs, ok := m["transactions"].([]any); ok {
		kept := make([]any, 0, len(txs))
		for i, t := range txs {
			tx, ok := t.(map[string]any)
			if !ok {
				dropped = append(dropped, fmt.Sprintf("transactions[%d](shape)", i))
				continue
			}
			if typ, ok := tx["type"].(string); ok {
				switch strings.ToLower(strings.TrimSpace(typ)) {
				case "credit", "income", "deposit", "revenue":
					tx["type"] = "credit"
				case "debit", "expense", "withdrawal", "payment":
					tx["type"] = "debit"
				default:
					dropped = append(dropped, fmt.Sprintf("transactions[%d].type=%q", i, typ))
					continue
				}
			} else {
				dropped = append(dropped, fmt.Sprintf("transactions[%d](no type)", i))
				continue
			}
			if _, ok := tx["amount"]; !ok {
				dropped = append(dropped, fmt.Sprintf("transactions[%d](no amount)", i))
				continue
			}
			for k := range tx {
				switch k {
				case "date", "description", "amount", "type", "category":
				default:
					delete(tx, k)
				}
			}
			kept = append(kept, tx)
		}
		m["transactions"] = kept
	}

	// 3) remove unknown top-level keys
	for k := range m {
		switch k {
		case "plStatement", "transactions", "insights", "confidence":
		default:
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.parse.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
