package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/finboard/txexchange/internal/model"
)

const (
	colUserID = "user_id"
	colScore  = "score"
	bom       = "\ufeff"
)

// ScoreReader streams CreditScoreRows from a CSV with a header row. Columns
// are located by name; extra columns are ignored.
type ScoreReader struct {
	cr        *csv.Reader
	userIDCol int
	scoreCol  int
	row       int
}

// NewScoreReader reads the header from r and returns a reader positioned at
// the first data row. An empty input yields a reader that returns io.EOF.
func NewScoreReader(r io.Reader) (*ScoreReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	sr := &ScoreReader{cr: cr, userIDCol: -1, scoreCol: -1}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return sr, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, bom)
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case colUserID:
			sr.userIDCol = i
		case colScore:
			sr.scoreCol = i
		}
	}
	return sr, nil
}

// HasColumns reports whether both required columns were found in the header.
func (sr *ScoreReader) HasColumns() bool {
	return sr.userIDCol >= 0 && sr.scoreCol >= 0
}

// Next returns the next row. It returns io.EOF after the last row; any other
// error means the stream itself is broken.
func (sr *ScoreReader) Next() (model.CreditScoreRow, error) {
	rec, err := sr.cr.Read()
	if err != nil {
		return model.CreditScoreRow{}, err
	}
	sr.row++
	return model.CreditScoreRow{
		Index:  sr.row,
		UserID: field(rec, sr.userIDCol),
		Score:  field(rec, sr.scoreCol),
	}, nil
}

// Rows returns the number of data rows read so far.
func (sr *ScoreReader) Rows() int { return sr.row }

func field(rec []string, col int) string {
	if col < 0 || col >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[col])
}
