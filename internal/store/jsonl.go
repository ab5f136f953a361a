package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gzhole/promptshield/internal/catalog"
	"github.com/gzhole/promptshield/internal/verify"
)

// JSONLStore appends one JSON line per record version. Verification updates
// are appended as a new version of the record, and the last version wins
// when the file is replayed at open. Queries are answered from an in-memory
// index.
type JSONLStore struct {
	path    string
	mu      sync.Mutex
	f       *os.File
	index   *MemoryStore
	skipped int
}

// OpenJSONL opens or creates the file at path, creating parent directories,
// and replays existing lines into the index. Lines that fail to decode are
// counted and skipped.
func OpenJSONL(path string) (*JSONLStore, error) {
	if path == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &JSONLStore{path: path, index: NewMemoryStore()}
	if err := s.replay(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	s.f = f

	// Terminate a torn trailing line so the next record starts cleanly.
	if torn, err := missingTrailingNewline(path); err == nil && torn {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

func missingTrailingNewline(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return false, err
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

func (s *JSONLStore) replay() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.ID == "" {
			s.skipped++
			continue
		}
		s.index.put(&rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("replay %s: %w", s.path, err)
	}
	return nil
}

// Skipped returns how many lines could not be decoded at open.
func (s *JSONLStore) Skipped() int { return s.skipped }

func (s *JSONLStore) write(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return os.ErrClosed
	}
	_, err = s.f.Write(data)
	return err
}

func (s *JSONLStore) Append(ctx context.Context, rec *Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cp := s.index.prepare(rec)
	if err := s.write(cp); err != nil {
		return "", fmt.Errorf("append record: %w", err)
	}
	s.index.put(cp)
	return cp.ID, nil
}

func (s *JSONLStore) Get(ctx context.Context, id string) (*Record, error) {
	return s.index.Get(ctx, id)
}

func (s *JSONLStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	return s.index.Recent(ctx, limit)
}

func (s *JSONLStore) FindByMaskedPrompt(ctx context.Context, masked string, since time.Time) (*Record, error) {
	return s.index.FindByMaskedPrompt(ctx, masked, since)
}

func (s *JSONLStore) UpdateVerification(ctx context.Context, id, aiResponse string, result verify.Result) (*Record, error) {
	rec, err := s.index.withVerification(id, aiResponse, result)
	if err != nil {
		return nil, err
	}
	if err := s.write(rec); err != nil {
		return nil, fmt.Errorf("append verification: %w", err)
	}
	s.index.put(rec)
	cp := *rec
	return &cp, nil
}

func (s *JSONLStore) CountByRiskLevel(ctx context.Context) (map[catalog.Level]int, error) {
	return s.index.CountByRiskLevel(ctx)
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
