package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/murphyws/finance-portal/internal/pnl"
)

var (
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
	// currency-like: $-prefixed amounts, or bare numbers with cents
	reAmount     = regexp.MustCompile(`\$\s*\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\b\d{1,3}(?:,\d{3})*\.\d{2}\b`)
	reNonNumeric = regexp.MustCompile(`[^\d.\-]`)
)

// ExtractJSONObject returns the first top-level {...} object in s, scanning
// brace depth with string/escape awareness.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// RepairJSON strips trailing commas before closing braces/brackets, the one
// malformation the model produces often enough to be worth repairing.
func RepairJSON(s string) string {
	return reTrailingComma.ReplaceAllString(s, "$1")
}

// ScanAmounts pulls currency-like numeric substrings out of free text and
// returns their absolute values.
func ScanAmounts(s string) []decimal.Decimal {
	matches := reAmount.FindAllString(s, -1)
	out := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		cleaned := reNonNumeric.ReplaceAllString(m, "")
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			continue
		}
		out = append(out, d.Abs())
	}
	return out
}

// DegradedResult synthesizes a minimal low-confidence analysis from raw model
// text that could not be parsed as JSON: the absolute sum of every
// currency-like amount found, split evenly between revenue and expenses.
// The pipeline never hard-fails on unparseable model output.
func DegradedResult(text string) *pnl.AnalysisResult {
	total := decimal.Zero
	amounts := ScanAmounts(text)
	for _, a := range amounts {
		total = total.Add(a)
	}
	half := total.Div(decimal.NewFromInt(2))

	return &pnl.AnalysisResult{
		PLStatement: pnl.Statement{
			TotalRevenue:  half,
			TotalExpenses: half,
			NetIncome:     half.Sub(half),
		},
		Insights: []string{
			fmt.Sprintf("model response could not be parsed as JSON; totals estimated from %d amounts found in raw text", len(amounts)),
		},
		Confidence: 0.2,
	}
}

// ParseAnalysis turns the model's free-form text into an AnalysisResult.
// Order of attempts: first top-level JSON object, trailing-comma repair,
// then the currency-scan degraded fallback. The returned result always
// satisfies netIncome = totalRevenue - totalExpenses via Reconcile.
func ParseAnalysis(text string, logger *slog.Logger) *pnl.AnalysisResult {
	if logger == nil {
		logger = slog.Default()
	}

	obj, ok := ExtractJSONObject(text)
	if !ok {
		logger.Warn("llm.parse.no_json_object", "text_len", len(text))
		return finish(DegradedResult(text))
	}

	raw := []byte(obj)
	var payload analysisPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		repaired := RepairJSON(obj)
		if rErr := json.Unmarshal([]byte(repaired), &payload); rErr != nil {
			logger.Warn("llm.parse.unparseable", "error", err, "repair_error", rErr)
			return finish(DegradedResult(text))
		}
		logger.Warn("llm.parse.repaired", "error", err)
		raw = []byte(repaired)
	}

	// Schema validation is advisory: offenders are sanitized, never fatal.
	if err := ValidateAnalysisJSON(raw); err != nil {
		cleaned, dropped, sErr := NormalizeAnalysisJSON(raw, logger)
		if sErr == nil {
			if vErr := ValidateAnalysisJSON(cleaned); vErr == nil {
				logger.Warn("llm.parse.lenient_sanitize_applied", "dropped", dropped)
				payload = analysisPayload{}
				if uErr := json.Unmarshal(cleaned, &payload); uErr != nil {
					return finish(DegradedResult(text))
				}
			} else {
				logger.Warn("llm.parse.schema_validation_failed", "error", vErr)
			}
		} else {
			logger.Warn("llm.parse.sanitize_failed", "error", sErr)
		}
	}

	result := &pnl.AnalysisResult{
		PLStatement:  payload.PLStatement,
		Transactions: payload.Transactions,
		Insights:     payload.Insights,
		Confidence:   payload.Confidence,
	}
	if result.Confidence == 0 {
		result.Confidence = 0.85
	}
	return finish(result)
}

func finish(r *pnl.AnalysisResult) *pnl.AnalysisResult {
	r.PLStatement = pnl.Reconcile(r.PLStatement, r.Transactions)
	r.ExtractedAt = time.Now().UTC()
	return r
}

type analysisPayload struct {
	PLStatement  pnl.Statement     `json:"plStatement"`
	Transactions []pnl.Transaction `json:"transactions"`
	Insights     []string          `json:"insights"`
	Confidence   float64           `json:"confidence"`
}
