package testutil

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ZipEntry describes one entry written by ZipBytes.
// Names ending in "/" become directory markers.
type ZipEntry struct {
	Name    string
	Body    string
	Mode    os.FileMode // optional; sets unix permission bits
	Comment string
	// NonUTF8 stores Name as raw bytes without the UTF-8 flag.
	NonUTF8 bool
	// Store writes Body uncompressed, so it appears verbatim in the archive.
	Store bool
}

// ZipBytes builds an in-memory zip archive with entries in the given order.
func ZipBytes(t *testing.T, entries []ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, e := range entries {
		header := &zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Comment:  e.Comment,
			NonUTF8:  e.NonUTF8,
			Modified: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		}
		if e.Store {
			header.Method = zip.Store
		}
		if e.Mode != 0 {
			header.SetMode(e.Mode)
		}

		fw, err := w.CreateHeader(header)
		if err != nil {
			t.Fatalf("failed to create zip entry %q: %v", e.Name, err)
		}
		if e.Body != "" {
			if _, err := fw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("failed to write zip entry %q: %v", e.Name, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a zip archive built from entries into a temp directory
// and returns its path.
func WriteZip(t *testing.T, entries []ZipEntry) string {
	t.Helper()

	archivePath := filepath.Join(t.TempDir(), "test.zip")
	if err := os.WriteFile(archivePath, ZipBytes(t, entries), 0o644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	return archivePath
}
