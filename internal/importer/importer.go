// Package importer streams credit-score CSV files, validates each row and
// submits accepted rows to the API.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/finboard/txexchange/internal/model"
)

const creditScoreEndpoint = "/credit-score"

// DefaultWorkers is the number of concurrent submissions per import.
const DefaultWorkers = 4

// ScoreSubmitter is the subset of the API client the importer needs.
type ScoreSubmitter interface {
	Call(ctx context.Context, method, endpoint, token string, body, out any) error
}

// StreamError is returned when the CSV itself cannot be read. Row is the
// 1-based data row being read when the failure happened (0 = header).
type StreamError struct {
	Path string
	Row  int
	Err  error
}

func (e *StreamError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("reading %s at row %d: %v", e.Path, e.Row, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Importer validates and submits credit-score rows.
type Importer struct {
	api     ScoreSubmitter
	workers int
	log     logrus.FieldLogger
}

// Option configures an Importer.
type Option func(*Importer)

// WithWorkers sets how many submissions may be in flight at once. 1 makes
// the import strictly sequential.
func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(im *Importer) { im.log = l }
}

// New creates an Importer backed by api.
func New(api ScoreSubmitter, opts ...Option) *Importer {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	im := &Importer{api: api, workers: DefaultWorkers, log: discard}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// NotFoundMessage formats the result error for a missing input file.
func NotFoundMessage(path string) string {
	return "CSV file not found at " + path
}

// ImportFromCSV streams csvPath and submits every valid row. A missing file
// is reported through the result, not as an error. The only error returns
// are stream failures (*StreamError) and context cancellation; both are
// returned only after in-flight submissions have finished.
func (im *Importer) ImportFromCSV(ctx context.Context, csvPath, token string) (*model.ImportResult, error) {
	log := im.log.WithField("path", csvPath)

	f, err := os.Open(csvPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("import file not found")
		return &model.ImportResult{Errors: []string{}, Error: NotFoundMessage(csvPath)}, nil
	}
	if err != nil {
		return nil, &StreamError{Path: csvPath, Err: err}
	}
	defer f.Close()

	sr, err := NewScoreReader(f)
	if err != nil {
		return nil, &StreamError{Path: csvPath, Err: err}
	}
	if !sr.HasColumns() {
		log.Warn("header is missing user_id or score column")
	}

	acc := &accumulator{}
	var g errgroup.Group
	g.SetLimit(im.workers)

	var streamErr error
	for {
		if err := ctx.Err(); err != nil {
			streamErr = err
			break
		}

		row, err := sr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = &StreamError{Path: csvPath, Row: sr.Rows() + 1, Err: err}
			break
		}

		score, verr := ValidateRow(row)
		if verr != nil {
			log.WithField("row", row.Index).Warn(verr.Reason)
			acc.fail(*verr)
			continue
		}

		// Blocks while the pool is full, so memory stays bounded.
		g.Go(func() error {
			im.submit(ctx, log, acc, row.Index, score, token)
			return nil
		})
	}

	_ = g.Wait()

	if streamErr != nil {
		log.WithError(streamErr).Error("import aborted")
		return nil, streamErr
	}

	res := acc.result(sr.Rows())
	log.WithFields(logrus.Fields{
		"processed": res.Processed,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
	}).Info("import finished")
	return res, nil
}

func (im *Importer) submit(ctx context.Context, log logrus.FieldLogger, acc *accumulator, row, score int, token string) {
	body := model.CreditScoreSubmission{Score: score}
	if err := im.api.Call(ctx, http.MethodPost, creditScoreEndpoint, token, body, nil); err != nil {
		log.WithField("row", row).WithError(err).Warn("submission rejected")
		acc.fail(RowError{Row: row, Reason: err.Error()})
		return
	}
	acc.succeed()
}

// accumulator collects row outcomes from concurrent submissions.
type accumulator struct {
	mu        sync.Mutex
	succeeded int
	failures  []RowError
}

func (a *accumulator) succeed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.succeeded++
}

func (a *accumulator) fail(e RowError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, e)
}

// result orders failures by row so the report is deterministic regardless
// of submission completion order.
func (a *accumulator) result(processed int) *model.ImportResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	sort.SliceStable(a.failures, func(i, j int) bool { return a.failures[i].Row < a.failures[j].Row })
	errs := make([]string, len(a.failures))
	for i, f := range a.failures {
		errs[i] = f.Error()
	}
	return &model.ImportResult{
		Processed: processed,
		Succeeded: a.succeeded,
		Failed:    len(a.failures),
		Errors:    errs,
	}
}
