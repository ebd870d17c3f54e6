// Package runlog keeps an append-only CSV audit trail of export and import runs.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/finboard/txexchange/internal/model"
)

// Operation names recorded in the log.
const (
	OpExport = "export"
	OpImport = "import"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp time.Time
	Operation string
	Source    string // output path for exports, input path for imports
	Processed int
	Succeeded int
	Failed    int
	Error     string
}

// Header is the CSV header for run-log.csv.
const Header = "timestamp,operation,source,processed,succeeded,failed,error"

const (
	numFields    = 7
	logDir       = "logs"
	logFile      = "logs/run-log.csv"
	colTimestamp = 0
	colOperation = 1
	colSource    = 2
	colProcessed = 3
	colSucceeded = 4
	colFailed    = 5
	colError     = 6
)

// FromExport builds an entry for an export run.
func FromExport(at time.Time, path string, res model.ExportResult) Entry {
	e := Entry{Timestamp: at, Operation: OpExport, Source: path, Error: res.Error}
	if res.Success {
		e.Processed = res.TransactionCount
		e.Succeeded = res.TransactionCount
	} else if res.Error == "" {
		e.Error = res.Message
	}
	return e
}

// FromImport builds an entry for an import run. A nil result means the run
// aborted with runErr.
func FromImport(at time.Time, path string, res *model.ImportResult, runErr error) Entry {
	e := Entry{Timestamp: at, Operation: OpImport, Source: path}
	switch {
	case runErr != nil:
		e.Error = runErr.Error()
	case res != nil:
		e.Processed = res.Processed
		e.Succeeded = res.Succeeded
		e.Failed = res.Failed
		e.Error = res.Error
	}
	return e
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colOperation] = e.Operation
	row[colSource] = e.Source
	row[colProcessed] = strconv.Itoa(e.Processed)
	row[colSucceeded] = strconv.Itoa(e.Succeeded)
	row[colFailed] = strconv.Itoa(e.Failed)
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	counts := make([]int, 3)
	for i, col := range []int{colProcessed, colSucceeded, colFailed} {
		n, err := strconv.Atoi(record[col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing count %q: %w", record[col], err)
		}
		counts[i] = n
	}

	return Entry{
		Timestamp: ts,
		Operation: record[colOperation],
		Source:    record[colSource],
		Processed: counts[0],
		Succeeded: counts[1],
		Failed:    counts[2],
		Error:     record[colError],
	}, nil
}

// Append writes entries to <root>/logs/run-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return writeEntries(f, entries, needsHeader)
}

// writeEntries writes entries as CSV rows, preceded by the header when
// header is set. Buffered rows only reach w on Flush, so its error is the
// one that reports a failed write.
func writeEntries(w io.Writer, entries []Entry, header bool) error {
	cw := csv.NewWriter(w)

	if header {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing run log: %w", err)
	}
	return nil
}

// Read returns all entries from <root>/logs/run-log.csv.
// Returns nil if the file does not exist.
func Read(root string) ([]Entry, error) {
	path := filepath.Join(root, logFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
