package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/asemenov/finledger/internal/domain"
)

// Candidate is a canonical pre-persistence record produced from one raw row.
type Candidate struct {
	Amount       decimal.Decimal
	Date         time.Time
	Description  string
	Counterparty string // empty means absent
	Category     string
	Type         domain.TxType

	IsRecurring       bool
	RecurringInterval domain.RecurringInterval
}

const (
	fallbackDescription = "Transaction"
	fallbackCategory    = "other-expense"

	maxDescriptionLen  = 255
	maxCounterpartyLen = 120
	maxCategoryLen     = 50
)

// Header synonyms in priority order. Keys are canonicalized first
// (lower-cased, separators stripped), so "Transaction Date", "txn_date" and
// "TxnDate" all resolve the same way.
var (
	amountKeys       = []string{"amount", "total", "price"}
	dateKeys         = []string{"date", "transactiondate", "txndate"}
	descriptionKeys  = []string{"description", "merchant", "store", "payee"}
	counterpartyKeys = []string{"counterparty", "payee", "merchant", "store", "vendor"}
	categoryKeys     = []string{"category"}
	typeKeys         = []string{"type", "transactiontype", "direction"}
	recurringKeys    = []string{"isrecurring", "recurring"}
	intervalKeys     = []string{"recurringinterval", "interval"}
)

var (
	unsafeChars  = regexp.MustCompile(`[^A-Za-z0-9 .,&'()/:-]`)
	nonAmount    = regexp.MustCompile(`[^0-9.-]`)
	keySeparator = regexp.MustCompile(`[\s_-]+`)
)

// Row maps one raw keyed row to a canonical candidate. A non-empty reason
// marks the row invalid with a human-readable cause; malformed data never
// produces an error, only a reason. now supplies the substitute date for
// unparseable timestamps.
func Row(raw map[string]any, now func() time.Time) (*Candidate, string) {
	if raw == nil {
		return nil, "Empty row"
	}

	fields := canonicalFields(raw)

	amountStr, ok := lookup(fields, amountKeys)
	if !ok {
		return nil, "Missing amount"
	}
	amount, ok := parseAmount(amountStr)
	if !ok {
		return nil, "Invalid amount"
	}

	c := &Candidate{
		Amount: amount,
		Type:   parseType(valueOr(fields, typeKeys, "")),
	}

	dateStr, _ := lookup(fields, dateKeys)
	c.Date = parseDate(dateStr, now)

	c.Description = normalizeDescription(valueOr(fields, descriptionKeys, ""))
	c.Counterparty = normalizeCounterparty(valueOr(fields, counterpartyKeys, ""))
	c.Category = normalizeCategory(valueOr(fields, categoryKeys, ""))

	c.IsRecurring = parseBool(valueOr(fields, recurringKeys, ""))
	c.RecurringInterval = domain.RecurringInterval(
		strings.ToUpper(strings.TrimSpace(valueOr(fields, intervalKeys, ""))))

	return c, ""
}

// canonicalFields re-keys the row by lower-cased, separator-free header names.
// The first occurrence of a canonical key wins.
func canonicalFields(raw map[string]any) map[string]string {
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		ck := canonicalKey(k)
		if ck == "" {
			continue
		}
		if _, exists := fields[ck]; exists {
			continue
		}
		fields[ck] = stringValue(v)
	}
	return fields
}

func canonicalKey(k string) string {
	return keySeparator.ReplaceAllString(strings.ToLower(strings.TrimSpace(k)), "")
}

// lookup resolves the first matching synonym, then falls back to a substring
// match in the same priority order. The fallback walks column names in
// sorted order so two candidate columns always resolve the same way.
func lookup(fields map[string]string, synonyms []string) (string, bool) {
	for _, s := range synonyms {
		if v, ok := fields[s]; ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, s := range synonyms {
		for _, k := range keys {
			if strings.Contains(k, s) && strings.TrimSpace(fields[k]) != "" {
				return fields[k], true
			}
		}
	}
	return "", false
}

func valueOr(fields map[string]string, synonyms []string, fallback string) string {
	if v, ok := lookup(fields, synonyms); ok {
		return v
	}
	return fallback
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return ""
	}
}

// parseAmount strips everything outside [0-9.-] ("$1,234.50" → "1234.50")
// and requires a strictly positive result.
func parseAmount(s string) (decimal.Decimal, bool) {
	cleaned := nonAmount.ReplaceAllString(s, "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// dateLayouts covers the formats statement exports actually use.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// parseDate substitutes "today" on failure. Statement exports have wildly
// inconsistent date formats, so an unparseable date is tolerated rather than
// failing the row.
func parseDate(s string, now func() time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return now()
}

func parseType(s string) domain.TxType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INCOME", "CREDIT", "CR", "IN", "DEPOSIT":
		return domain.TxIncome
	default:
		return domain.TxExpense
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// Sanitize strips characters outside the safe alphabet and collapses runs of
// whitespace. Re-sanitizing sanitized text is a no-op.
func Sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func normalizeDescription(s string) string {
	s = truncate(Sanitize(s), maxDescriptionLen)
	if len(s) < 3 {
		return fallbackDescription
	}
	return s
}

func normalizeCounterparty(s string) string {
	s = truncate(Sanitize(s), maxCounterpartyLen)
	if len(s) < 2 {
		return ""
	}
	return s
}

func normalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallbackCategory
	}
	return truncate(s, maxCategoryLen)
}

// truncate limits s to max runes. Cutting on runes rather than bytes keeps
// multi-byte text valid UTF-8.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
