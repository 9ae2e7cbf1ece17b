// Package filestore is the local telemetry file layout plus the optional
// S3 archive mirror. One gzipped raw file per match, single writer per
// match id.
package filestore

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const rawFileName = "raw.json.gz"

// Store resolves and inspects per-match telemetry files under a root
// directory. Layout: {root}/matchID={id}/raw.json.gz.
type Store struct {
	root   string
	logger zerolog.Logger
}

func NewStore(root string, logger zerolog.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("telemetry root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry root %s: %w", root, err)
	}
	return &Store{
		root:   root,
		logger: logger.With().Str("component", "filestore").Logger(),
	}, nil
}

// Path returns the raw file location for a match.
func (s *Store) Path(matchID string) string {
	return filepath.Join(s.root, "matchID="+matchID, rawFileName)
}

// Dir returns the per-match directory.
func (s *Store) Dir(matchID string) string {
	return filepath.Join(s.root, "matchID="+matchID)
}

// Exists reports whether a non-empty raw file is already stored, with
// its size when present.
func (s *Store) Exists(matchID string) (bool, int64) {
	info, err := os.Stat(s.Path(matchID))
	if err != nil || info.Size() == 0 {
		return false, 0
	}
	return true, info.Size()
}

// OpenRaw opens the stored file and wraps it in a gzip reader. Closing
// the returned ReadCloser closes both.
func (s *Store) OpenRaw(matchID string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(matchID))
	if err != nil {
		return nil, fmt.Errorf("opening telemetry for match %s: %w", matchID, err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading gzip header for match %s: %w", matchID, err)
	}
	return &rawReader{gz: gz, file: f}, nil
}

type rawReader struct {
	gz   *gzip.Reader
	file *os.File
}

func (r *rawReader) Read(p []byte) (int, error) { return r.gz.Read(p) }

func (r *rawReader) Close() error {
	gzErr := r.gz.Close()
	fileErr := r.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// Writable verifies the root accepts writes; used by the health check.
func (s *Store) Writable() error {
	probe := filepath.Join(s.root, ".probe")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("telemetry root not writable: %w", err)
	}
	f.Close()
	return os.Remove(probe)
}
