// Package format shapes query results for display: rupee amounts and the
// single-value header convention.
package format

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/insightx/insightx/internal/query"
)

const rupee = "₹"

// currencyMarkers mark a column as monetary when its name contains one of
// them, case-insensitively.
var currencyMarkers = []string{"amount", "avg", "sum", "total", "transaction"}

type Table struct {
	Columns []string        `json:"columns"`
	Rows    [][]query.Value `json:"rows"`
	Empty   bool            `json:"empty"`
}

// Result formats a query result. Numeric cells of monetary columns become
// rupee text; a single-column result takes the query text as its header.
// Monetary columns are recognised by their name as returned by the query.
func Result(sqlText string, result query.Result) Table {
	monetary := make([]bool, len(result.Columns))
	for i, name := range result.Columns {
		monetary[i] = IsCurrencyColumn(name)
	}
	table := build(result, monetary)
	if len(table.Columns) == 1 {
		table.Columns[0] = sqlText
	}
	return table
}

// Ledger formats a raw table listing where only amountColumn holds money.
func Ledger(result query.Result, amountColumn string) Table {
	monetary := make([]bool, len(result.Columns))
	for i, name := range result.Columns {
		monetary[i] = name == amountColumn
	}
	return build(result, monetary)
}

// Insight prepares model prose for display; models often write amounts with
// a dollar sign even though the data is in rupees.
func Insight(text string) string {
	return strings.ReplaceAll(text, "$", rupee)
}

// rateWords mark a column as a ratio or percentage and override the currency
// markers. A scaled expression such as SUM(CASE ...) * 100.0 / COUNT(*) is a
// percentage too, even when it mentions transaction columns.
var rateWords = map[string]struct{}{
	"rate": {}, "rates": {}, "percent": {}, "percentage": {}, "pct": {}, "ratio": {}, "share": {},
}

func IsCurrencyColumn(name string) bool {
	lower := strings.ToLower(name)
	if isRate(lower) {
		return false
	}
	for _, marker := range currencyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isRate(lower string) bool {
	compact := strings.Join(strings.Fields(lower), "")
	if strings.Contains(compact, "*100") || strings.Contains(compact, "100.0*") || strings.Contains(compact, "100*") {
		return true
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		if _, ok := rateWords[word]; ok {
			return true
		}
	}
	return false
}

func build(result query.Result, monetary []bool) Table {
	columns := make([]string, len(result.Columns))
	copy(columns, result.Columns)

	rows := make([][]query.Value, 0, len(result.Rows))
	for _, row := range result.Rows {
		out := make([]query.Value, len(row))
		for i, value := range row {
			if i < len(monetary) && monetary[i] {
				out[i] = CurrencyValue(value)
			} else {
				out[i] = value
			}
		}
		rows = append(rows, out)
	}
	return Table{Columns: columns, Rows: rows, Empty: len(rows) == 0}
}

// CurrencyValue renders numeric values as rupee text such as ₹1,234.50 and
// passes everything else through unchanged. Negative amounts keep the sign
// after the symbol: ₹-1,234.50.
func CurrencyValue(value query.Value) query.Value {
	switch value.Kind {
	case query.KindInteger:
		return query.Text(formatDecimal(decimal.NewFromInt(value.Int)))
	case query.KindFloat:
		if math.IsNaN(value.Float) || math.IsInf(value.Float, 0) {
			return query.Text(rupee + strconv.FormatFloat(value.Float, 'f', -1, 64))
		}
		// Round the binary value the way printf-style %.2f does, so 2.675
		// (stored as 2.67499...) renders as 2.67.
		d, err := decimal.NewFromString(strconv.FormatFloat(value.Float, 'f', 2, 64))
		if err != nil {
			return value
		}
		return query.Text(formatDecimal(d))
	default:
		return value
	}
}

func formatDecimal(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return rupee + sign + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
