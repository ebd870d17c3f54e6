package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finboard/txexchange/internal/model"
)

// Header is the first line of every transaction export.
const Header = "Transaction ID,Account ID,Type,Amount,Description,Category,Merchant,Date,Balance After,Location,Account Type"

const (
	numFields       = 11
	colID           = 0
	colAccountID    = 1
	colType         = 2
	colAmount       = 3
	colDescription  = 4
	colCategory     = 5
	colMerchant     = 6
	colDate         = 7
	colBalanceAfter = 8
	colLocation     = 9
	colAccountType  = 10
)

// MarshalTransaction converts a Transaction to an unquoted CSV row.
func MarshalTransaction(txn model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = txn.ID
	row[colAccountID] = txn.AccountID
	row[colType] = txn.Type
	row[colAmount] = formatAmount(txn.Amount)
	row[colDescription] = txn.Description
	row[colCategory] = txn.Category
	row[colMerchant] = txn.MerchantName
	row[colDate] = txn.Date
	row[colBalanceAfter] = formatAmount(txn.BalanceAfter)
	row[colLocation] = txn.Location
	row[colAccountType] = txn.AccountType()
	return row
}

// WriteTransactions writes the header and one quoted row per transaction,
// joined by "\n" with no trailing newline. Every data field is quoted so
// commas, quotes and newlines inside values survive a round trip.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	if _, err := io.WriteString(w, Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	var b strings.Builder
	for i, txn := range txns {
		b.Reset()
		b.WriteByte('\n')
		for j, field := range MarshalTransaction(txn) {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(field))
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return nil
}

// quote wraps s in double quotes, doubling any embedded quote.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// formatAmount renders the canonical decimal form: "125.50" becomes "125.5",
// the same text a JSON number 125.50 would produce. Zero and missing
// amounts render as "0".
func formatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return d.String()
}
