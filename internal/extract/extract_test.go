package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type stubExtractor struct {
	name string
	rows []map[string]any
	err  error
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(ctx context.Context, lines []string) ([]map[string]any, error) {
	return s.rows, s.err
}

func validRows() []map[string]any {
	return []map[string]any{{"amount": "10", "description": "ok"}}
}

func TestChain_FirstValidWins(t *testing.T) {
	first := &stubExtractor{name: "first", rows: validRows()}
	second := &stubExtractor{name: "second", rows: []map[string]any{{"amount": "99"}}}
	chain := NewChain(zerolog.Nop(), first, second)

	rows, err := chain.Extract(context.Background(), []string{"line"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if rows[0]["description"] != "ok" {
		t.Errorf("got rows from wrong extractor: %v", rows)
	}
}

func TestChain_FallsThroughOnErrorAndInvalid(t *testing.T) {
	failing := &stubExtractor{name: "failing", err: errors.New("model down")}
	empty := &stubExtractor{name: "empty", rows: nil}
	noAmount := &stubExtractor{name: "noamount", rows: []map[string]any{{"description": "x"}}}
	good := &stubExtractor{name: "good", rows: validRows()}
	chain := NewChain(zerolog.Nop(), failing, empty, noAmount, good)

	rows, err := chain.Extract(context.Background(), []string{"line"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want 1 from the last strategy", len(rows))
	}
}

func TestChain_AllStrategiesExhausted(t *testing.T) {
	chain := NewChain(zerolog.Nop(),
		&stubExtractor{name: "a", err: errors.New("boom")},
		&stubExtractor{name: "b", rows: nil},
	)

	_, err := chain.Extract(context.Background(), []string{"line"})
	if err == nil {
		t.Fatal("Extract succeeded with no valid strategy")
	}
}

func TestLineExtractor(t *testing.T) {
	lines := []string{
		"BARCLAYS BANK STATEMENT",
		"2026-01-02  COFFEE CORNER LTD  -4.50",
		"03/01/2026  PAYROLL ACME INC  2,500.00 CR",
		"Balance brought forward",
		"2026-01-05  GROCERY MART  £23.10",
	}

	rows, err := LineExtractor{}.Extract(context.Background(), lines)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 transaction lines", len(rows))
	}

	if rows[0]["amount"] != "4.50" || rows[0]["type"] != "EXPENSE" {
		t.Errorf("row 0 = %v, want stripped-sign expense of 4.50", rows[0])
	}
	if rows[1]["type"] != "INCOME" || rows[1]["amount"] != "2,500.00" {
		t.Errorf("row 1 = %v, want CR-marked income", rows[1])
	}
	if rows[2]["description"] != "GROCERY MART" {
		t.Errorf("row 2 description = %v", rows[2]["description"])
	}
}

func TestToRows_MixedShapes(t *testing.T) {
	chain := NewChain(zerolog.Nop(), LineExtractor{})
	raws := []RawRow{
		Keyed(map[string]any{"amount": "10", "description": "keyed row"}),
		Lines([]string{"2026-01-02  SHOP  -5.00"}),
	}

	rows, err := ToRows(context.Background(), chain, raws)
	if err != nil {
		t.Fatalf("ToRows failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["description"] != "keyed row" || rows[1]["description"] != "SHOP" {
		t.Errorf("rows = %v", rows)
	}
}

func TestStripModelNoise(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"chatter", "Here you go:\n[{\"a\":1}]\nHope that helps!", `[{"a":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripModelNoise(tt.input); got != tt.want {
				t.Errorf("stripModelNoise(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
