package github

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// IgnoreList holds the .aiignore patterns of files excluded from review.
//
// Pattern forms:
//
//	*.lock     suffix match
//	vendor/    directory prefix, at the root or nested
//	gen/*.go   prefix and suffix around one star
//	go.sum     exact path or base name
type IgnoreList struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	patterns []string
}

// NewIgnoreList loads the file at path. A missing file yields an empty list.
func NewIgnoreList(path string, logger *zap.Logger) (*IgnoreList, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &IgnoreList{path: path, logger: logger}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the pattern file.
func (l *IgnoreList) Reload() error {
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", l.path, err)
	}
	patterns := ParsePatterns(data)
	l.set(patterns)
	l.logger.Info("loaded ignore patterns", zap.String("path", l.path), zap.Int("count", len(patterns)))
	return nil
}

func (l *IgnoreList) set(patterns []string) {
	l.mu.Lock()
	l.patterns = patterns
	l.mu.Unlock()
}

func (l *IgnoreList) Patterns() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// Match reports whether filename is excluded.
func (l *IgnoreList) Match(filename string) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.patterns {
		if matchPattern(filename, p) {
			return true
		}
	}
	return false
}

// Watch reloads the list whenever the file changes, until ctx is done.
func (l *IgnoreList) Watch(ctx context.Context) error {
	if l.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched so that creating or replacing the file is seen.
	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(l.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := l.Reload(); err != nil {
				l.logger.Warn("reloading ignore patterns", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("ignore file watcher", zap.Error(err))
		}
	}
}

// ParsePatterns reads one pattern per line, skipping blanks and # comments.
func ParsePatterns(data []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func matchPattern(filename, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(filename, pattern[1:])
	case strings.HasSuffix(pattern, "/"):
		return strings.HasPrefix(filename, pattern) || strings.Contains(filename, "/"+pattern)
	case strings.Contains(pattern, "*"):
		prefix, suffix, _ := strings.Cut(pattern, "*")
		return len(filename) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(filename, prefix) && strings.HasSuffix(filename, suffix)
	default:
		return filename == pattern || path.Base(filename) == pattern
	}
}
