package model

// ImportResult aggregates per-row outcomes of a credit-score import.
type ImportResult struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
	Error     string   `json:"error,omitempty"` // set only when the import never started
}

// Balanced reports whether every processed row was counted exactly once.
func (r ImportResult) Balanced() bool {
	return r.Processed == r.Succeeded+r.Failed
}

// ExportResult is the outcome of a transaction export. On success FilePath and
// TransactionCount are set; otherwise Message (benign, e.g. nothing to export)
// or Error is.
type ExportResult struct {
	Success          bool   `json:"success"`
	FilePath         string `json:"filePath,omitempty"`
	TransactionCount int    `json:"transactionCount,omitempty"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
}
