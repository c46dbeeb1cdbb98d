package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is fast and good at document layouts.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiExtractor asks Gemini to tabularize statement text the line pattern
// could not handle. It sits last in the chain: slower and costs tokens, but
// tolerant of messy OCR output.
type GeminiExtractor struct {
	model string
}

// NewGemini creates the model-backed extractor. An empty model selects
// DefaultGeminiModel.
func NewGemini(model string) *GeminiExtractor {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiExtractor{model: model}
}

func (g *GeminiExtractor) Name() string { return "gemini" }

const geminiPrompt = "You are a bank statement parser.\n\n" +
	"Task:\n" +
	"- Parse ALL transactions in the statement text below.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array of objects.\n\n" +
	"Each object must have these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"description\": string\n" +
	"- \"amount\": string, always positive (e.g. \"50.00\")\n" +
	"- \"type\": \"EXPENSE\" for money out, \"INCOME\" for money in\n" +
	"- \"category\": short lowercase tag, or \"other-expense\" when unsure\n\n" +
	"Rules:\n" +
	"- If the statement has separate paid-out / paid-in columns, use \"type\" to carry the direction.\n" +
	"- Skip headers, footers and balance summary lines.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

func (g *GeminiExtractor) Extract(ctx context.Context, lines []string) ([]map[string]any, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: geminiPrompt + "\nStatement text:\n" + strings.Join(lines, "\n")},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("empty response from model %s", g.model)
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(stripModelNoise(raw)), &rows); err != nil {
		return nil, fmt.Errorf("unmarshal model JSON: %w", err)
	}
	return rows, nil
}

// stripModelNoise removes markdown fences and surrounding chatter when the
// model ignores the formatting instructions, keeping the outermost JSON
// array.
func stripModelNoise(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start != -1 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
