package mirror

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"gcgdocs/internal/model"
	"gcgdocs/internal/storage"
)

// DefaultKey is the flat-file location of the document mirror.
const DefaultKey = "tracking/uploaded-files.csv"

var header = []string{"id", "year", "unit", "item_id", "file_name", "file_size", "content_type", "physical_path", "status", "uploaded_at"}

// CSVStore persists the mirror as one CSV file behind a FileStore.
// Every mutation is a whole-file read-modify-write, serialized by an
// internal mutex; callers' partition locks do not cover cross-partition
// writes to the shared file.
type CSVStore struct {
	store storage.FileStore
	key   string

	mu sync.Mutex
}

// NewCSV creates a mirror store persisting to key (DefaultKey if empty).
func NewCSV(store storage.FileStore, key string) *CSVStore {
	if key == "" {
		key = DefaultKey
	}
	return &CSVStore{store: store, key: key}
}

var _ Store = (*CSVStore)(nil)

func (s *CSVStore) Upsert(ctx context.Context, rec model.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load(ctx)
	if err != nil {
		return err
	}
	out := rows[:0]
	for _, r := range rows {
		if r.ID != rec.ID {
			out = append(out, r)
		}
	}
	out = append(out, rec)
	return s.save(ctx, out)
}

func (s *CSVStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load(ctx)
	if err != nil {
		return err
	}
	out := rows[:0]
	removed := false
	for _, r := range rows {
		if r.ID == id {
			removed = true
			continue
		}
		out = append(out, r)
	}
	if !removed {
		return nil
	}
	return s.save(ctx, out)
}

func (s *CSVStore) UpdateLocation(ctx context.Context, id string, year int, unit, physicalPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].ID == id {
			rows[i].Year = year
			rows[i].Unit = unit
			rows[i].PhysicalPath = physicalPath
		}
	}
	return s.save(ctx, rows)
}

func (s *CSVStore) Rows(ctx context.Context) ([]model.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *CSVStore) Replace(ctx context.Context, rows []model.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, rows)
}

func (s *CSVStore) load(ctx context.Context) ([]model.DocumentRecord, error) {
	rc, _, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = len(header)
	first := true
	var out []model.DocumentRecord
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse mirror: %w", err)
		}
		if first {
			first = false
			continue // header
		}
		rec, err := decodeRow(fields)
		if err != nil {
			return nil, fmt.Errorf("parse mirror row: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *CSVStore) save(ctx context.Context, rows []model.DocumentRecord) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range rows {
		if err := w.Write(encodeRow(rec)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := s.store.Put(ctx, s.key, bytes.NewReader(buf.Bytes()), storage.PutObjectOptions{
		Size:        int64(buf.Len()),
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	return nil
}

func encodeRow(rec model.DocumentRecord) []string {
	return []string{
		rec.ID,
		strconv.Itoa(rec.Year),
		rec.Unit,
		strconv.Itoa(rec.ItemID),
		rec.FileName,
		strconv.FormatInt(rec.FileSize, 10),
		rec.ContentType,
		rec.PhysicalPath,
		string(rec.Status),
		rec.UploadedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeRow(fields []string) (model.DocumentRecord, error) {
	year, err := strconv.Atoi(fields[1])
	if err != nil {
		return model.DocumentRecord{}, fmt.Errorf("year: %w", err)
	}
	itemID, err := strconv.Atoi(fields[3])
	if err != nil {
		return model.DocumentRecord{}, fmt.Errorf("item_id: %w", err)
	}
	size, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return model.DocumentRecord{}, fmt.Errorf("file_size: %w", err)
	}
	uploadedAt, err := time.Parse(time.RFC3339Nano, fields[9])
	if err != nil {
		return model.DocumentRecord{}, fmt.Errorf("uploaded_at: %w", err)
	}
	return model.DocumentRecord{
		ID:           fields[0],
		Year:         year,
		Unit:         fields[2],
		ItemID:       itemID,
		FileName:     fields[4],
		FileSize:     size,
		ContentType:  fields[6],
		PhysicalPath: fields[7],
		Status:       model.DocumentStatus(fields[8]),
		UploadedAt:   uploadedAt,
	}, nil
}
