package archive

import (
	"archive/zip"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/comment-export-api/internal/models"
	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "exports"), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestStore_WriteUnit(t *testing.T) {
	s := newTestStore(t)
	unit := &models.ArchiveUnit{
		VideoID: "v1",
		Index:   1,
		Name:    "Video_1.zip",
		Items: []models.RenderedArtifact{
			{CommentID: "c1", FileName: "a.html", Data: []byte("<p>one</p>")},
			{CommentID: "c2", FileName: "b.html", Data: []byte("<p>two</p>")},
		},
	}

	path, size, err := s.WriteUnit("run-1", unit)
	if err != nil {
		t.Fatalf("WriteUnit() error = %v", err)
	}
	if filepath.Base(path) != "Video_1.zip" || size <= 0 {
		t.Errorf("path = %s, size = %d", path, size)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 2 {
		t.Fatalf("zip has %d entries, want 2", len(zr.File))
	}
	for i, want := range []string{"a.html", "b.html"} {
		f := zr.File[i]
		if f.Name != want {
			t.Errorf("entry %d = %s, want %s", i, f.Name, want)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != string(unit.Items[i].Data) {
			t.Errorf("entry %s content = %q", f.Name, data)
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("run directory has %d entries, temp files left behind?", len(entries))
	}
}

func TestStore_WriteArtifactAndReport(t *testing.T) {
	s := newTestStore(t)

	path, size, err := s.WriteArtifact("run-2", &models.RenderedArtifact{FileName: "single.html", Data: []byte("x")})
	if err != nil {
		t.Fatalf("WriteArtifact() error = %v", err)
	}
	if size != 1 {
		t.Errorf("size = %d, want 1", size)
	}
	if data, _ := os.ReadFile(path); string(data) != "x" {
		t.Errorf("artifact content = %q", data)
	}

	reportPath, err := s.WriteFailureReport("run-2", []models.FailureRecord{
		{CommentID: "c9", VideoID: "v1", Reason: models.FailureTimeout, Message: "deadline, exceeded"},
	})
	if err != nil {
		t.Fatalf("WriteFailureReport() error = %v", err)
	}

	f, err := os.Open(reportPath)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "c9" || rows[1][2] != "timeout" || rows[1][3] != "deadline, exceeded" {
		t.Errorf("report rows = %v", rows)
	}
}

func TestStore_RemoveRun(t *testing.T) {
	s := newTestStore(t)
	path, _, err := s.WriteArtifact("run-3", &models.RenderedArtifact{FileName: "a.html", Data: []byte("x")})
	if err != nil {
		t.Fatalf("WriteArtifact() error = %v", err)
	}

	if err := s.RemoveRun("run-3"); err != nil {
		t.Fatalf("RemoveRun() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after RemoveRun: %v", err)
	}
}

func TestStore_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", "..", "../x", "a/b", ".hidden"} {
		if _, _, err := s.WriteArtifact(id, &models.RenderedArtifact{FileName: "a", Data: []byte("x")}); err != ErrInvalidRunID {
			t.Errorf("WriteArtifact(%q) error = %v, want ErrInvalidRunID", id, err)
		}
		if err := s.RemoveRun(id); err != ErrInvalidRunID {
			t.Errorf("RemoveRun(%q) error = %v, want ErrInvalidRunID", id, err)
		}
	}
}
