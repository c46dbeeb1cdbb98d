package pipeline

// BatchInput is one caller-submitted list of raw rows processed together.
// Rows are keyed maps of arbitrary statement columns; line-oriented sources
// must be reduced to keyed rows first (see the extract package).
type BatchInput struct {
	UserID         string
	Rows           []map[string]any
	TargetCurrency string
	AccountID      string // optional explicit destination account
}

// RowResult is the fate of a single row. Results are returned in input
// order so callers can correlate and resubmit only the failed subset.
type RowResult struct {
	Success       bool   `json:"success"`
	Description   string `json:"description"`
	TransactionID string `json:"id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Summary aggregates the batch outcome. Partial success is the normal case;
// statement exports routinely contain a few malformed lines.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchResult is the complete accounting of a batch.
type BatchResult struct {
	Results []RowResult `json:"results"`
	Summary Summary     `json:"summary"`
}
