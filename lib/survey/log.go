// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package survey

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spatialtrace/spatialtrace/lib/codec"
)

// Log remembers the rating given for each app key. It persists to a
// small CBOR file when opened with a path. A nil *Log remembers
// nothing.
type Log struct {
	path string

	mu      sync.Mutex
	ratings map[string]int
}

// OpenLog loads the log at path, creating an empty one if the file
// does not exist. An empty path gives an in-memory log.
func OpenLog(path string) (*Log, error) {
	log := &Log{path: path, ratings: make(map[string]int)}
	if path == "" {
		return log, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return log, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading survey log: %w", err)
	}
	if err := codec.Unmarshal(data, &log.ratings); err != nil {
		return nil, fmt.Errorf("decoding survey log %s: %w", path, err)
	}
	if log.ratings == nil {
		log.ratings = make(map[string]int)
	}
	return log, nil
}

// Logged reports whether appKey was rated.
func (l *Log) Logged(appKey string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ratings[appKey]
	return ok
}

// Rating returns the stored rating for appKey.
func (l *Log) Rating(appKey string) (int, bool) {
	if l == nil {
		return 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rating, ok := l.ratings[appKey]
	return rating, ok
}

// Record stores a rating and rewrites the file atomically.
func (l *Log) Record(appKey string, rating int) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ratings[appKey] = rating
	if l.path == "" {
		return nil
	}

	data, err := codec.Marshal(l.ratings)
	if err != nil {
		return fmt.Errorf("encoding survey log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("creating survey log directory: %w", err)
	}
	temporary, err := os.CreateTemp(filepath.Dir(l.path), ".survey-*")
	if err != nil {
		return fmt.Errorf("writing survey log: %w", err)
	}
	defer os.Remove(temporary.Name())
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing survey log: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("writing survey log: %w", err)
	}
	if err := os.Rename(temporary.Name(), l.path); err != nil {
		return fmt.Errorf("replacing survey log: %w", err)
	}
	return nil
}
