package snapshot

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"gcgdocs/internal/model"
	"gcgdocs/internal/storage"
)

// DefaultKey is the flat-file location of the assessment result table.
const DefaultKey = "web-output/assessment.csv"

var header = []string{"year", "section", "item_number", "type", "description", "weight", "score", "achievement", "explanation", "assessor", "export_date"}

// Table persists assessment rows as one CSV file behind a FileStore.
type Table struct {
	store storage.FileStore
	key   string
}

// NewTable creates a table persisting to key (DefaultKey if empty).
func NewTable(store storage.FileStore, key string) *Table {
	if key == "" {
		key = DefaultKey
	}
	return &Table{store: store, key: key}
}

// Load reads the whole table. A missing file is an empty table.
func (t *Table) Load(ctx context.Context) ([]model.AssessmentRow, error) {
	rc, _, err := t.store.Get(ctx, t.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read assessment table: %w", err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = len(header)
	first := true
	var out []model.AssessmentRow
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse assessment table: %w", err)
		}
		if first {
			first = false
			continue // header
		}
		row, err := decodeRow(fields)
		if err != nil {
			return nil, fmt.Errorf("parse assessment row: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Save rewrites the whole table.
func (t *Table) Save(ctx context.Context, rows []model.AssessmentRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	exportDate := time.Now().UTC().Format("2006-01-02")
	for _, row := range rows {
		if err := w.Write(encodeRow(row, exportDate)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := t.store.Put(ctx, t.key, bytes.NewReader(buf.Bytes()), storage.PutObjectOptions{
		Size:        int64(buf.Len()),
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("write assessment table: %w", err)
	}
	return nil
}

func encodeRow(r model.AssessmentRow, exportDate string) []string {
	return []string{
		strconv.Itoa(r.Year),
		r.Section,
		strconv.Itoa(r.ItemNumber),
		string(r.Type),
		r.Description,
		formatFloat(r.Weight),
		formatFloat(r.Score),
		formatFloat(r.Achievement),
		r.Explanation,
		r.Assessor,
		exportDate,
	}
}

func decodeRow(fields []string) (model.AssessmentRow, error) {
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		return model.AssessmentRow{}, fmt.Errorf("year: %w", err)
	}
	itemNumber, err := strconv.Atoi(fields[2])
	if err != nil {
		return model.AssessmentRow{}, fmt.Errorf("item_number: %w", err)
	}
	weight, err := parseFloat(fields[5])
	if err != nil {
		return model.AssessmentRow{}, fmt.Errorf("weight: %w", err)
	}
	score, err := parseFloat(fields[6])
	if err != nil {
		return model.AssessmentRow{}, fmt.Errorf("score: %w", err)
	}
	achievement, err := parseFloat(fields[7])
	if err != nil {
		return model.AssessmentRow{}, fmt.Errorf("achievement: %w", err)
	}
	return model.AssessmentRow{
		Year:        year,
		Section:     fields[1],
		ItemNumber:  itemNumber,
		Type:        model.RowType(fields[3]),
		Description: fields[4],
		Weight:      weight,
		Score:       score,
		Achievement: achievement,
		Explanation: fields[8],
		Assessor:    fields[9],
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
