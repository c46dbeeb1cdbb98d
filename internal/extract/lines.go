package extract

import (
	"context"
	"regexp"
	"strings"
)

// LineExtractor parses "date description amount" statement lines with a
// fixed pattern. It is the cheap first strategy in the chain; lines it
// cannot match are skipped, and if nothing matches the chain falls through
// to the model-backed extractor.
type LineExtractor struct{}

func (LineExtractor) Name() string { return "lines" }

// txLine captures: (1) date, (2) description, (3) signed amount with an
// optional currency symbol and thousands separators.
var txLine = regexp.MustCompile(`^\s*(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})\s+(.+?)\s+(-?[$£€₹]?\d[\d,]*(?:\.\d{1,2})?)(\s+CR)?\s*$`)

func (LineExtractor) Extract(ctx context.Context, lines []string) ([]map[string]any, error) {
	var rows []map[string]any
	for _, line := range lines {
		m := txLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		amount := m[3]
		txType := "EXPENSE"
		// A trailing CR marker or an unsigned deposit column is money in;
		// a leading minus is money out of the account.
		if m[4] != "" {
			txType = "INCOME"
		}
		amount = strings.TrimPrefix(amount, "-")

		rows = append(rows, map[string]any{
			"date":        m[1],
			"description": m[2],
			"amount":      amount,
			"type":        txType,
		})
	}
	return rows, nil
}
