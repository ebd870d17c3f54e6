package model

const (
	MinCreditScore = 300
	MaxCreditScore = 850
)

// CreditScoreRow is one row of an import CSV. Score keeps the raw cell text so
// validation messages can quote it back.
type CreditScoreRow struct {
	Index  int // 1-based, header excluded
	UserID string
	Score  string
}

// CreditScoreSubmission is the POST /credit-score request body.
type CreditScoreSubmission struct {
	Score int `json:"score"`
}
