package filestore

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func writeGzipped(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPathLayout(t *testing.T) {
	s := testStore(t)
	got := s.Path("abc-123")
	want := filepath.Join(s.root, "matchID=abc-123", "raw.json.gz")
	if got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestExists(t *testing.T) {
	s := testStore(t)

	if ok, _ := s.Exists("missing"); ok {
		t.Error("Exists should be false for a missing file")
	}

	writeGzipped(t, s.Path("m1"), `[{"_T":"LogMatchStart"}]`)
	ok, size := s.Exists("m1")
	if !ok {
		t.Fatal("Exists should be true after write")
	}
	if size == 0 {
		t.Error("size should be non-zero")
	}
}

func TestExistsRejectsEmptyFile(t *testing.T) {
	s := testStore(t)
	path := s.Path("empty")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists("empty"); ok {
		t.Error("a zero-byte file must not count as stored telemetry")
	}
}

func TestOpenRawDecompresses(t *testing.T) {
	s := testStore(t)
	const body = `[{"_T":"LogParachuteLanding","_D":"2026-01-01T00:00:00Z"}]`
	writeGzipped(t, s.Path("m2"), body)

	r, err := s.OpenRaw("m2")
	if err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if string(got) != body {
		t.Errorf("content = %q, want %q", got, body)
	}
}

func TestWritable(t *testing.T) {
	s := testStore(t)
	if err := s.Writable(); err != nil {
		t.Errorf("Writable: %v", err)
	}
}
