package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hongjs/code-tanuki/internal/security"
	"go.uber.org/zap"
)

// Artifact names written by the review pipeline.
const (
	ArtifactPullRequest  = "pr.json"
	ArtifactTicket       = "jira.json"
	ArtifactPrompt       = "prompt.txt"
	ArtifactSystemPrompt = "system-prompt.txt"
	ArtifactRequest      = "req-prompt.json"
	ArtifactResponse     = "res-ai.json"
)

var (
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrInvalidArtifactName = errors.New("invalid artifact name")
)

// ArtifactFileStore keeps side files per run under dir/<run id>/.
type ArtifactFileStore struct {
	dir       string
	encrypter security.Encrypter
	logger    *zap.Logger
}

// NewArtifactFileStore stores artifacts under dir. A nil encrypter writes
// plain files.
func NewArtifactFileStore(dir string, encrypter security.Encrypter, logger *zap.Logger) *ArtifactFileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactFileStore{dir: dir, encrypter: encrypter, logger: logger}
}

// ValidName rejects names that could escape a run's directory.
func ValidName(name string) bool {
	if name == "" || name == "." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

func (s *ArtifactFileStore) path(runID, name string) (string, error) {
	if !ValidName(runID) || !ValidName(name) {
		return "", ErrInvalidArtifactName
	}
	return filepath.Join(s.dir, runID, name), nil
}

// SaveArtifact writes data for the run. Failures are logged and dropped.
func (s *ArtifactFileStore) SaveArtifact(runID, name string, data []byte) {
	if err := s.write(runID, name, data); err != nil {
		s.logger.Warn("failed to save artifact",
			zap.String("review_id", runID),
			zap.String("artifact", name),
			zap.Error(err),
		)
	}
}

// SaveJSON marshals v with indentation and saves it best-effort.
func (s *ArtifactFileStore) SaveJSON(runID, name string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Warn("failed to marshal artifact",
			zap.String("review_id", runID),
			zap.String("artifact", name),
			zap.Error(err),
		)
		return
	}
	s.SaveArtifact(runID, name, data)
}

func (s *ArtifactFileStore) write(runID, name string, data []byte) error {
	p, err := s.path(runID, name)
	if err != nil {
		return err
	}
	if s.encrypter != nil {
		if data, err = s.encrypter.Encrypt(data); err != nil {
			return fmt.Errorf("encrypting artifact: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *ArtifactFileStore) ReadArtifact(runID, name string) ([]byte, error) {
	p, err := s.path(runID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.encrypter != nil {
		return s.encrypter.Decrypt(data)
	}
	return data, nil
}

// ListArtifacts returns the run's artifact names sorted.
func (s *ArtifactFileStore) ListArtifacts(runID string) ([]string, error) {
	if !ValidName(runID) {
		return nil, ErrInvalidArtifactName
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, runID))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

func (s *ArtifactFileStore) DeleteArtifacts(runID string) error {
	if !ValidName(runID) {
		return ErrInvalidArtifactName
	}
	return os.RemoveAll(filepath.Join(s.dir, runID))
}

// Writable verifies the artifact directory accepts new files.
func (s *ArtifactFileStore) Writable() error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
