// Package extract reduces heterogeneous statement input to the keyed rows
// the normalizer understands. CSV-style sources arrive already keyed;
// PDF/OCR sources arrive as raw text lines and go through an ordered chain
// of extractor strategies, where the first structurally valid result wins.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Kind tags the two raw input shapes.
type Kind string

const (
	KindKeyed Kind = "keyed"
	KindLines Kind = "lines"
)

// RawRow is the tagged union of pre-normalization input shapes.
type RawRow struct {
	Kind   Kind
	Fields map[string]any // set when Kind == KindKeyed
	Text   []string       // set when Kind == KindLines
}

// Keyed wraps an already-tabularized row.
func Keyed(fields map[string]any) RawRow {
	return RawRow{Kind: KindKeyed, Fields: fields}
}

// Lines wraps a block of line-oriented statement text; one block may yield
// many rows.
func Lines(text []string) RawRow {
	return RawRow{Kind: KindLines, Text: text}
}

// Extractor is one strategy for turning statement text lines into keyed rows.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, lines []string) ([]map[string]any, error)
}

// Chain tries extractors in order and returns the first structurally valid
// result. A strategy error or an empty/invalid result just moves on to the
// next strategy.
type Chain struct {
	extractors []Extractor
	log        zerolog.Logger
}

// NewChain builds a chain over the given strategies, tried in order.
func NewChain(log zerolog.Logger, extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors, log: log}
}

// Extract runs the chain over one text block.
func (c *Chain) Extract(ctx context.Context, lines []string) ([]map[string]any, error) {
	var errs []error
	for _, e := range c.extractors {
		rows, err := e.Extract(ctx, lines)
		if err != nil {
			c.log.Warn().Err(err).Str("extractor", e.Name()).Msg("Extractor failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		if structurallyValid(rows) {
			c.log.Debug().Str("extractor", e.Name()).Int("rows", len(rows)).Msg("Extraction succeeded")
			return rows, nil
		}
		c.log.Debug().Str("extractor", e.Name()).Msg("Extractor produced no usable rows, trying next")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("extract: no strategy produced rows: %w", errors.Join(errs...))
	}
	return nil, errors.New("extract: no strategy produced rows")
}

// structurallyValid requires at least one row and an amount column on every
// row; anything less and the next strategy gets its turn.
func structurallyValid(rows []map[string]any) bool {
	if len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		if !hasAmount(row) {
			return false
		}
	}
	return true
}

func hasAmount(row map[string]any) bool {
	for _, key := range []string{"amount", "total", "price"} {
		if v, ok := row[key]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}

// ToRows flattens a mixed batch of raw inputs into keyed rows, running line
// blocks through the chain.
func ToRows(ctx context.Context, chain *Chain, raws []RawRow) ([]map[string]any, error) {
	var rows []map[string]any
	for idx, raw := range raws {
		switch raw.Kind {
		case KindKeyed:
			rows = append(rows, raw.Fields)
		case KindLines:
			extracted, err := chain.Extract(ctx, raw.Text)
			if err != nil {
				return nil, fmt.Errorf("input %d: %w", idx, err)
			}
			rows = append(rows, extracted...)
		default:
			return nil, fmt.Errorf("input %d: unknown raw row kind %q", idx, raw.Kind)
		}
	}
	return rows, nil
}
