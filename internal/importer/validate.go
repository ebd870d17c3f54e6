package importer

import (
	"fmt"
	"strconv"

	"github.com/finboard/txexchange/internal/model"
)

// RowError describes why a single row was not accepted.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Reason)
}

// ValidateRow checks presence, then integer range. It returns the parsed
// score when the row may be submitted.
func ValidateRow(row model.CreditScoreRow) (int, *RowError) {
	if row.UserID == "" || row.Score == "" {
		return 0, &RowError{Row: row.Index, Reason: "Missing user_id or score"}
	}

	score, err := strconv.Atoi(row.Score)
	if err != nil || score < model.MinCreditScore || score > model.MaxCreditScore {
		return 0, &RowError{Row: row.Index, Reason: "Invalid score value " + row.Score}
	}
	return score, nil
}
