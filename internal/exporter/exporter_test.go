package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard/txexchange/internal/apiclient"
	"github.com/finboard/txexchange/internal/model"
)

// fakeSource serves pages from memory.
type fakeSource struct {
	pages     []model.TransactionPage
	err       error
	endpoints []string
}

func (f *fakeSource) Call(_ context.Context, method, endpoint, token string, _, out any) error {
	f.endpoints = append(f.endpoints, method+" "+endpoint)
	if f.err != nil {
		return f.err
	}
	idx := len(f.endpoints) - 1
	if idx >= len(f.pages) {
		idx = len(f.pages) - 1
	}
	*(out.(*model.TransactionPage)) = f.pages[idx]
	return nil
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func sampleTransactions() []model.Transaction {
	return []model.Transaction{
		{
			ID: "tx-1", AccountID: "acc-1", Type: "debit", Amount: decimal.RequireFromString("125.50"),
			Description: `He said "hi"`, Category: "Food", MerchantName: "Spar", Date: "2024-03-01",
			BalanceAfter: decimal.RequireFromString("874.50"), Location: "Pretoria, Gauteng",
			Account: &model.AccountRef{AccountType: "cheque"},
		},
		{ID: "tx-2", AccountID: "acc-1", Type: "credit", Description: "Refund", Date: "2024-03-02"},
		{ID: "tx-3", AccountID: "acc-2", Type: "debit", Amount: decimal.NewFromInt(40), Description: "Fuel"},
	}
}

func TestExportToCSV_WritesFile(t *testing.T) {
	src := &fakeSource{pages: []model.TransactionPage{{Transactions: sampleTransactions()}}}
	out := filepath.Join(t.TempDir(), "nested", "dir", "tx.csv")

	res := New(src).ExportToCSV(context.Background(), "tok", out)
	require.True(t, res.Success, "error: %s", res.Error)
	assert.Equal(t, out, res.FilePath)
	assert.Equal(t, 3, res.TransactionCount)
	assert.Empty(t, res.Error)

	records := readCSV(t, out)
	require.Len(t, records, 4)
	assert.Equal(t, strings.Split(Header, ","), records[0])

	// Order matches the API.
	assert.Equal(t, "tx-1", records[1][colID])
	assert.Equal(t, "tx-2", records[2][colID])
	assert.Equal(t, "tx-3", records[3][colID])

	assert.Equal(t, `He said "hi"`, records[1][colDescription])
	assert.Equal(t, "Pretoria, Gauteng", records[1][colLocation])
	assert.Equal(t, "cheque", records[1][colAccountType])
	assert.Equal(t, "125.5", records[1][colAmount])
}

func TestExportToCSV_MissingAmountRendersZero(t *testing.T) {
	src := &fakeSource{pages: []model.TransactionPage{{Transactions: sampleTransactions()}}}
	out := filepath.Join(t.TempDir(), "tx.csv")

	res := New(src).ExportToCSV(context.Background(), "tok", out)
	require.True(t, res.Success)

	records := readCSV(t, out)
	assert.Equal(t, "0", records[2][colAmount])
	assert.Equal(t, "0", records[2][colBalanceAfter])
	assert.Equal(t, "", records[2][colCategory])
	assert.Equal(t, "", records[2][colAccountType])
}

func TestExportToCSV_NoTransactions(t *testing.T) {
	src := &fakeSource{pages: []model.TransactionPage{{}}}
	out := filepath.Join(t.TempDir(), "sub", "tx.csv")

	res := New(src).ExportToCSV(context.Background(), "tok", out)
	assert.False(t, res.Success)
	assert.Equal(t, NoTransactionsMessage, res.Message)
	assert.Empty(t, res.Error)

	_, err := os.Stat(filepath.Dir(out))
	assert.True(t, os.IsNotExist(err), "no directory should be created")
}

func TestExportToCSV_APIFailure(t *testing.T) {
	src := &fakeSource{err: &apiclient.APIError{Method: "GET", Endpoint: "/transactions", StatusCode: 401}}
	out := filepath.Join(t.TempDir(), "tx.csv")

	res := New(src).ExportToCSV(context.Background(), "tok", out)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "status 401")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestExportToCSV_FilesystemFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	src := &fakeSource{pages: []model.TransactionPage{{Transactions: sampleTransactions()}}}
	res := New(src).ExportToCSV(context.Background(), "tok", filepath.Join(blocker, "tx.csv"))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestExportToCSV_OverwritesExisting(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tx.csv")
	require.NoError(t, os.WriteFile(out, []byte("stale content\nmore\nlines\nhere\nand more\n"), 0o644))

	src := &fakeSource{pages: []model.TransactionPage{{Transactions: sampleTransactions()[:1]}}}
	res := New(src).ExportToCSV(context.Background(), "tok", out)
	require.True(t, res.Success)

	records := readCSV(t, out)
	assert.Len(t, records, 2)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should not be left behind")
}

func TestFetchAll_FollowsPagination(t *testing.T) {
	txns := sampleTransactions()
	src := &fakeSource{pages: []model.TransactionPage{
		{Transactions: txns[:2], Pagination: &model.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2}},
		{Transactions: txns[2:], Pagination: &model.Pagination{Page: 2, Limit: 2, Total: 3, TotalPages: 2}},
	}}

	got, err := New(src, WithPageSize(2)).FetchAll(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "tx-3", got[2].ID)
	assert.Equal(t, []string{
		"GET /transactions?page=1&limit=2",
		"GET /transactions?page=2&limit=2",
	}, src.endpoints)
}

func TestFetchAll_MaxPagesCap(t *testing.T) {
	src := &fakeSource{pages: []model.TransactionPage{
		{Transactions: sampleTransactions()[:1], Pagination: &model.Pagination{TotalPages: 99}},
	}}

	got, err := New(src, WithMaxPages(3)).FetchAll(context.Background(), "tok")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Len(t, src.endpoints, 3)
}

func TestFetchAll_SinglePageWithoutPageField(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactions":[{"transaction_id":"tx-1"}],` +
			`"pagination":{"limit":100,"total":1,"totalPages":1}}`))
	}))
	defer srv.Close()

	got, err := New(apiclient.NewClient(srv.URL)).FetchAll(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tx-1", got[0].ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchAll_PagesWithoutPageField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactions":[{"transaction_id":"p` + page + `"}],` +
			`"pagination":{"limit":1,"total":2,"totalPages":2}}`))
	}))
	defer srv.Close()

	got, err := New(apiclient.NewClient(srv.URL), WithPageSize(1)).FetchAll(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)
}

func TestFetchAll_ServerIgnoresPageParameter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactions":[{"transaction_id":"tx-1"},{"transaction_id":"tx-2"}],` +
			`"pagination":{"page":1,"limit":2,"total":6,"totalPages":3}}`))
	}))
	defer srv.Close()

	got, err := New(apiclient.NewClient(srv.URL), WithPageSize(2)).FetchAll(context.Background(), "tok")
	require.NoError(t, err)
	assert.Len(t, got, 2, "the repeated first page must not be appended again")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchAll_WrapsError(t *testing.T) {
	sentinel := errors.New("down")
	_, err := New(&fakeSource{err: sentinel}).FetchAll(context.Background(), "tok")
	require.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "page 1")
}

func TestExportToCSV_AgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/transactions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactions":[{"transaction_id":"p` + strconv.Itoa(page) +
			`","amount":10,"accounts":{"account_type":"savings"}}],` +
			`"pagination":{"page":` + strconv.Itoa(page) + `,"limit":1,"total":2,"totalPages":2}}`))
	}))
	defer srv.Close()

	client := apiclient.NewClient(srv.URL + "/api/users")
	out := filepath.Join(t.TempDir(), "tx.csv")

	res := New(client, WithPageSize(1)).ExportToCSV(context.Background(), "secret", out)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.TransactionCount)

	records := readCSV(t, out)
	assert.Equal(t, "p1", records[1][colID])
	assert.Equal(t, "p2", records[2][colID])
	assert.Equal(t, "savings", records[2][colAccountType])
}

func TestWriteTransactions_QuotesDescription(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTransactions(&buf, []model.Transaction{{ID: "tx-1", Description: `He said "hi"`}})
	require.NoError(t, err)

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 2, "no trailing newline")
	assert.Equal(t, Header, lines[0])
	assert.Contains(t, lines[1], `"He said ""hi"""`)
}

func TestWriteTransactions_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, nil))
	assert.Equal(t, Header, buf.String())
}

func TestWriteTransactions_RoundTripsSpecialCharacters(t *testing.T) {
	txn := model.Transaction{
		ID:          "tx-9",
		Description: "line one\nline \"two\", with comma",
		Location:    `Cape Town, "WC"`,
		Category:    " padded ",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, []model.Transaction{txn}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, txn.Description, records[1][colDescription])
	assert.Equal(t, txn.Location, records[1][colLocation])
	assert.Equal(t, txn.Category, records[1][colCategory])
}

func TestMarshalTransaction_JSONFixture(t *testing.T) {
	var txn model.Transaction
	require.NoError(t, json.Unmarshal([]byte(`{"transaction_id":"a","transaction_type":"credit","amount":"-12.30","balance_after":0}`), &txn))

	row := MarshalTransaction(txn)
	require.Len(t, row, numFields)
	assert.Equal(t, "credit", row[colType])
	assert.Equal(t, "-12.3", row[colAmount])
	assert.Equal(t, "0", row[colBalanceAfter])
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		json string
		want string
	}{
		{`"125.50"`, "125.5"},
		{`125.50`, "125.5"},
		{`"100.00"`, "100"},
		{`-0.75`, "-0.75"},
		{`0`, "0"},
		{`null`, "0"},
	}
	for _, tt := range tests {
		var d decimal.Decimal
		require.NoError(t, json.Unmarshal([]byte(tt.json), &d), tt.json)
		assert.Equal(t, tt.want, formatAmount(d), tt.json)
	}
}
