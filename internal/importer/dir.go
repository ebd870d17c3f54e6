package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finboard/txexchange/internal/model"
)

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// FileReport is the outcome of importing one file from the import directory.
type FileReport struct {
	File      FileInfo
	Result    *model.ImportResult // nil when Err is set
	Err       error
	Processed bool // moved to import/processed
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// ImportDir imports every CSV in <root>/import/ in name order. Files that
// were read to the end are moved to import/processed/, even if some rows
// failed; files that hit a stream error stay put. Cancellation stops the
// batch and returns the reports gathered so far with ctx.Err().
func (im *Importer) ImportDir(ctx context.Context, root, token string) ([]FileReport, error) {
	files, err := Scan(root)
	if err != nil {
		return nil, err
	}

	reports := make([]FileReport, 0, len(files))
	for _, file := range files {
		res, err := im.ImportFromCSV(ctx, file.Path, token)
		report := FileReport{File: file, Result: res, Err: err}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reports = append(reports, report)
			return reports, err
		}

		if err == nil {
			if mvErr := MarkProcessed(root, file.Name); mvErr != nil {
				report.Err = mvErr
			} else {
				report.Processed = true
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}
