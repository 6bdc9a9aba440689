package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
)

// CSVStore is an append-only history kept in a single CSV file. Existing
// rows are carried over verbatim; each append rewrites the file through a
// temporary file and rename.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore returns a store backed by path. The file is created on first append.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file.
func (s *CSVStore) Path() string { return s.path }

// Append adds rows after the existing history.
func (s *CSVStore) Append(ctx context.Context, rows []domain.RiskAssessment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, mode, err := s.readRaw()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(Columns); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}
	if err = w.WriteAll(existing); err != nil {
		return fmt.Errorf("write existing history: %w", err)
	}
	for _, a := range rows {
		if err = w.Write(encode(a)); err != nil {
			return fmt.Errorf("write history row: %w", err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flush history: %w", err)
	}
	if err = tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp history: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp history: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp history: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// readRaw returns existing data rows without the header, and the file mode
// to preserve. A missing or empty file has no rows.
func (s *CSVStore) readRaw() ([][]string, fs.FileMode, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0o644, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	mode := fs.FileMode(0o644)
	if info, err := f.Stat(); err == nil {
		mode = info.Mode().Perm()
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("read history %s: %w", s.path, err)
	}
	if len(records) == 0 {
		return nil, mode, nil
	}
	if err := s.checkHeader(records[0]); err != nil {
		return nil, 0, err
	}
	return records[1:], mode, nil
}

func (s *CSVStore) checkHeader(header []string) error {
	got := slices.Clone(header)
	if len(got) > 0 {
		got[0] = strings.TrimPrefix(got[0], "\ufeff")
	}
	if !slices.Equal(got, Columns) {
		return &domain.IncompatibleHistoryError{Path: s.path, Want: Columns, Got: got}
	}
	return nil
}

// Load decodes every row in the history. A missing file is an empty history.
func (s *CSVStore) Load(ctx context.Context) ([]domain.RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}
	if err := s.checkHeader(header); err != nil {
		return nil, err
	}

	var out []domain.RiskAssessment
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read history %s: %w", s.path, err)
		}
		line, _ := r.FieldPos(0)
		a, err := decode(rec)
		if err != nil {
			return nil, &RecordError{Line: line, Err: err}
		}
		out = append(out, a)
	}
	return out, nil
}

// Close is a no-op; the file is only open during Append and Load.
func (s *CSVStore) Close() error { return nil }
