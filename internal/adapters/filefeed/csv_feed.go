package filefeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fxcalc/internal/domain"
)

// CSVFeed reads a full rate table from a "base,quote,rate" file. A first row whose
// rate column is literally "rate" is treated as a header.
type CSVFeed struct {
	path string
	now  func() time.Time
}

func (f *CSVFeed) Fetch(ctx context.Context) (domain.ImportBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImportBatch{}, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to open rates file: %w", err)
	}
	defer file.Close()

	records, err := ReadRecords(file)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to read rates file %q: %w", f.path, err)
	}

	fetchedAt := f.now().UTC()
	if info, statErr := file.Stat(); statErr == nil {
		fetchedAt = info.ModTime().UTC()
	}
	return domain.ImportBatch{Source: "file:" + f.path, FetchedAt: fetchedAt, Records: records}, nil
}

// ReadRecords parses CSV rows into import records. Rows are kept raw: validation is
// the importer's job, so a row with a wrong column count becomes a record that fails there.
func ReadRecords(r io.Reader) ([]domain.ImportRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var records []domain.ImportRecord
	for line := 0; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 0 && len(row) == 3 && strings.EqualFold(strings.TrimSpace(row[2]), "rate") {
			continue
		}

		rec := domain.ImportRecord{}
		switch len(row) {
		case 3:
			rec.Rate = strings.TrimSpace(row[2])
			fallthrough
		case 2:
			rec.Quote = strings.TrimSpace(row[1])
			fallthrough
		case 1:
			rec.Base = strings.TrimSpace(row[0])
		default:
			return nil, fmt.Errorf("%w: line %d has %d columns", domain.ErrMalformedRecord, line+1, len(row))
		}
		records = append(records, rec)
	}
	return records, nil
}

func NewCSVFeed(path string) *CSVFeed {
	return &CSVFeed{path: path, now: time.Now}
}
