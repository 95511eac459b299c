package archive

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/comment-export-api/internal/models"
	"github.com/rs/zerolog"
)

// FailureReportName is the per-run failure report file
const FailureReportName = "failures.csv"

var ErrInvalidRunID = errors.New("invalid run id")

// Store persists archive units under one directory per run
type Store struct {
	root string
	log  zerolog.Logger
}

// NewStore creates the root directory if needed
func NewStore(root string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Store{
		root: root,
		log:  log.With().Str("component", "archive_store").Logger(),
	}, nil
}

// Root returns the base directory
func (s *Store) Root() string {
	return s.root
}

func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || runID != filepath.Base(runID) || strings.HasPrefix(runID, ".") {
		return "", ErrInvalidRunID
	}
	dir := filepath.Join(s.root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

// WriteUnit writes a unit as a deflate-compressed zip named after the unit
func (s *Store) WriteUnit(runID string, unit *models.ArchiveUnit) (string, int64, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, unit.Name)
	size, err := writeAtomic(path, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for i := range unit.Items {
			item := &unit.Items[i]
			f, err := zw.CreateHeader(&zip.FileHeader{Name: item.FileName, Method: zip.Deflate})
			if err != nil {
				return err
			}
			if _, err := f.Write(item.Data); err != nil {
				return err
			}
		}
		return zw.Close()
	})
	if err != nil {
		return "", 0, fmt.Errorf("write archive %s: %w", unit.Name, err)
	}

	s.log.Debug().
		Str("run_id", runID).
		Str("archive", unit.Name).
		Int("items", len(unit.Items)).
		Int64("bytes", size).
		Msg("Archive written")

	return path, size, nil
}

// WriteArtifact writes one artifact as a bare file
func (s *Store) WriteArtifact(runID string, artifact *models.RenderedArtifact) (string, int64, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, artifact.FileName)
	size, err := writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(artifact.Data)
		return err
	})
	if err != nil {
		return "", 0, fmt.Errorf("write artifact %s: %w", artifact.FileName, err)
	}
	return path, size, nil
}

// WriteFailureReport writes the failure ledger of a run as CSV
func (s *Store) WriteFailureReport(runID string, records []models.FailureRecord) (string, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, FailureReportName)
	_, err = writeAtomic(path, func(w io.Writer) error {
		return WriteFailuresCSV(w, records)
	})
	if err != nil {
		return "", fmt.Errorf("write failure report: %w", err)
	}
	return path, nil
}

// WriteFailuresCSV writes failure records with a header row
func WriteFailuresCSV(w io.Writer, records []models.FailureRecord) error {
	writer := csv.NewWriter(w)
	writer.Write([]string{"comment_id", "video_id", "reason", "message"})
	for _, rec := range records {
		writer.Write([]string{rec.CommentID, rec.VideoID, string(rec.Reason), rec.Message})
	}
	writer.Flush()
	return writer.Error()
}

// RemoveRun deletes everything stored for a run
func (s *Store) RemoveRun(runID string) error {
	if runID == "" || runID != filepath.Base(runID) || strings.HasPrefix(runID, ".") {
		return ErrInvalidRunID
	}
	return os.RemoveAll(filepath.Join(s.root, runID))
}

// writeAtomic writes through a temp file in the target directory and renames
// it into place, so readers never see a partial file
func writeAtomic(path string, write func(io.Writer) error) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return 0, err
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
