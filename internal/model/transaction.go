package model

import (
	"github.com/shopspring/decimal"
)

// Transaction is one ledger entry as returned by GET /transactions.
type Transaction struct {
	ID           string          `json:"transaction_id"`
	AccountID    string          `json:"account_id"`
	Type         string          `json:"transaction_type"` // "debit" or "credit"
	Amount       decimal.Decimal `json:"amount"`           // zero when absent or null
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	MerchantName string          `json:"merchant_name"`
	Date         string          `json:"transaction_date"` // ISO date, passed through as-is
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Location     string          `json:"location"`
	Account      *AccountRef     `json:"accounts,omitempty"`
}

// AccountRef is the nested account relation on a transaction.
type AccountRef struct {
	AccountType string `json:"account_type"`
}

// AccountType returns the nested account type, or "" when the relation is absent.
func (t Transaction) AccountType() string {
	if t.Account == nil {
		return ""
	}
	return t.Account.AccountType
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// TransactionPage is the response envelope for GET /transactions.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   *Pagination   `json:"pagination,omitempty"`
}

// HasMore reports whether pages remain after the requested page. The
// server's own page field is not trusted; servers may omit it.
func (p TransactionPage) HasMore(requested int) bool {
	if p.Pagination == nil {
		return false
	}
	return requested < p.Pagination.TotalPages
}

// EchoesOther reports whether the server says it returned a page other
// than the one requested. A zero page means the field was omitted.
func (p TransactionPage) EchoesOther(requested int) bool {
	return p.Pagination != nil && p.Pagination.Page != 0 && p.Pagination.Page != requested
}
