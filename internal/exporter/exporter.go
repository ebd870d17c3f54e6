// Package exporter pulls a user's transactions from the API and writes them
// to a CSV file.
package exporter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/finboard/txexchange/internal/model"
)

const (
	transactionsEndpoint = "/transactions"

	// DefaultPageSize is the page size requested from the API.
	DefaultPageSize = 100
	// DefaultMaxPages caps pagination in case the API never reports the last page.
	DefaultMaxPages = 1000
)

// NoTransactionsMessage is reported when the API returned nothing to export.
const NoTransactionsMessage = "No transactions found"

// TransactionSource is the subset of the API client the exporter needs.
type TransactionSource interface {
	Call(ctx context.Context, method, endpoint, token string, body, out any) error
}

// Exporter fetches transactions and serializes them to CSV.
type Exporter struct {
	api      TransactionSource
	pageSize int
	maxPages int
	log      logrus.FieldLogger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithPageSize sets the page size requested per call.
func WithPageSize(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithMaxPages caps the number of pages followed.
func WithMaxPages(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Exporter) { e.log = l }
}

// New creates an Exporter backed by api.
func New(api TransactionSource, opts ...Option) *Exporter {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Exporter{
		api:      api,
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
		log:      discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchAll returns every transaction visible to token, in API order.
// Pagination is followed only when the response describes it.
func (e *Exporter) FetchAll(ctx context.Context, token string) ([]model.Transaction, error) {
	var all []model.Transaction
	for page := 1; page <= e.maxPages; page++ {
		endpoint := fmt.Sprintf("%s?page=%d&limit=%d", transactionsEndpoint, page, e.pageSize)

		var resp model.TransactionPage
		if err := e.api.Call(ctx, http.MethodGet, endpoint, token, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetching transactions page %d: %w", page, err)
		}
		if resp.EchoesOther(page) {
			e.log.WithFields(logrus.Fields{
				"requested": page,
				"returned":  resp.Pagination.Page,
			}).Warn("server ignored the page parameter; stopping")
			return all, nil
		}
		all = append(all, resp.Transactions...)

		if !resp.HasMore(page) || len(resp.Transactions) == 0 {
			return all, nil
		}
	}
	e.log.WithField("max_pages", e.maxPages).Warn("stopped following transaction pages at cap")
	return all, nil
}

// ExportToCSV writes every transaction to outputPath. It never returns an
// error: failures are reported through the result.
func (e *Exporter) ExportToCSV(ctx context.Context, token, outputPath string) model.ExportResult {
	log := e.log.WithField("path", outputPath)

	txns, err := e.FetchAll(ctx, token)
	if err != nil {
		log.WithError(err).Error("export failed")
		return model.ExportResult{Error: err.Error()}
	}

	if len(txns) == 0 {
		log.Info(NoTransactionsMessage)
		return model.ExportResult{Message: NoTransactionsMessage}
	}

	if err := writeFile(outputPath, txns); err != nil {
		log.WithError(err).Error("export failed")
		return model.ExportResult{Error: err.Error()}
	}

	log.WithField("count", len(txns)).Info("transactions exported")
	return model.ExportResult{
		Success:          true,
		FilePath:         outputPath,
		TransactionCount: len(txns),
	}
}

// writeFile writes through a temp file in the target directory and renames
// it into place, so a failed export never leaves a partial file.
func writeFile(path string, txns []model.Transaction) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := WriteTransactions(tmp, txns); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("moving export into place: %w", err)
	}
	return nil
}
