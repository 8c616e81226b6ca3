package stats

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileStore keeps the record as one JSON document. Every mutation
// rewrites the whole file.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// OpenFileStore creates the file with an empty record when it is missing.
func OpenFileStore(path string, opts ...Option) (*FileStore, error) {
	o := buildOptions(opts)
	s := &FileStore{path: path, now: o.now}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create stats dir: %w", err)
			}
		}
		if err := s.write(NewRecord()); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Msg("created stats file")
	} else if err != nil {
		return nil, fmt.Errorf("stat stats file: %w", err)
	}

	return s, nil
}

func (s *FileStore) Increment(ctx context.Context, keyword string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keyword = normalizeKeyword(keyword)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read()
	if err != nil {
		return nil, err
	}
	r.apply(keyword, s.now())
	r.Version = CurrentVersion
	if err := s.write(r); err != nil {
		return nil, err
	}

	log.Debug().Str("keyword", keyword).Int("count", r.Count).Msg("stats incremented")
	return r, nil
}

func (s *FileStore) Load(ctx context.Context) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read stats file: %w", err)
	}
	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return r, nil
}

// write replaces the file via a temp sibling so readers never see a
// partial document.
func (s *FileStore) write(r *Record) error {
	data, err := r.Encode()
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write stats file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace stats file: %w", err)
	}
	return nil
}
