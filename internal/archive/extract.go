// Package archive extracts zip archives into a destination tree.
//
// Entry names are untrusted. Any entry whose name is absolute, carries a
// drive letter, or walks upward with ".." is skipped rather than failing the
// whole extraction, and every resolved output path is re-checked to stay
// inside the destination root.
//
// Two modes are supported:
//   - StripRoot drops the first path component of every entry, for
//     GitHub-style "archive/<branch>.zip" downloads nested under a synthetic
//     root folder
//   - KeepRoot preserves every component, for release archives
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/super1207/llobinstall/internal/logging"
)

const (
	// StripRoot drops the first path component of every entry.
	StripRoot = true
	// KeepRoot preserves the full relative path of every entry.
	KeepRoot = false
)

// zip "version made by" host systems whose external attributes carry unix mode bits
const (
	creatorUnix  = 3
	creatorMacOS = 19
)

// Extractor handles archive extraction
type Extractor struct {
	logger logging.Logger
}

// NewExtractor creates a new extractor. A nil logger discards diagnostics.
func NewExtractor(logger logging.Logger) *Extractor {
	return &Extractor{logger: logging.OrNop(logger)}
}

// Extract extracts the zip archive at archivePath into destRoot.
// When stripRoot is true the first path component of every entry is dropped
// and entries with a single component are skipped.
func (e *Extractor) Extract(archivePath, destRoot string, stripRoot bool) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return &Error{Kind: KindCorrupt, Path: archivePath, Err: err}
	}
	defer reader.Close()

	root, err := filepath.Abs(destRoot)
	if err != nil {
		return &Error{Kind: KindIo, Path: destRoot, Err: err}
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return &Error{Kind: KindIo, Path: root, Err: fmt.Errorf("create dest dir: %w", err)}
	}

	for i, file := range reader.File {
		name := entryName(file)

		parts, ok := safeComponents(name)
		if !ok {
			e.logger.Warn("skipping unsafe archive entry", "index", i, "name", name)
			continue
		}

		if stripRoot {
			if len(parts) <= 1 {
				e.logger.Debug("skipping archive root entry", "index", i, "name", name)
				continue
			}
			parts = parts[1:]
		}

		target := filepath.Join(append([]string{root}, parts...)...)
		if !within(root, target) {
			e.logger.Warn("skipping archive entry outside destination", "index", i, "name", name)
			continue
		}

		if file.Comment != "" {
			e.logger.Warn("archive entry has a comment", "index", i, "name", name, "comment", file.Comment)
		}

		if isDirMarker(name) {
			if err := os.MkdirAll(target, 0755); err != nil {
				return &Error{Kind: KindIo, Path: target, Err: fmt.Errorf("create directory: %w", err)}
			}
		} else if err := writeEntry(file, target); err != nil {
			return err
		}

		if mode, ok := unixMode(file); ok {
			if err := os.Chmod(target, mode); err != nil {
				return &Error{Kind: KindIo, Path: target, Err: fmt.Errorf("set permissions: %w", err)}
			}
		}
	}

	return nil
}

// writeEntry copies one file entry to target, creating parent directories.
func writeEntry(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return &Error{Kind: KindIo, Path: target, Err: fmt.Errorf("create parent dir: %w", err)}
	}

	src, err := file.Open()
	if err != nil {
		return &Error{Kind: KindCorrupt, Path: file.Name, Err: fmt.Errorf("open entry: %w", err)}
	}
	defer src.Close()

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return &Error{Kind: KindIo, Path: target, Err: fmt.Errorf("create file: %w", err)}
	}

	in := &entryReader{r: src}
	if _, err := io.Copy(outFile, in); err != nil {
		outFile.Close()
		if in.err != nil {
			os.Remove(target)
			return &Error{Kind: KindCorrupt, Path: file.Name, Err: fmt.Errorf("read entry: %w", in.err)}
		}
		return &Error{Kind: KindIo, Path: target, Err: fmt.Errorf("write file: %w", err)}
	}

	if err := outFile.Close(); err != nil {
		return &Error{Kind: KindIo, Path: target, Err: fmt.Errorf("close file: %w", err)}
	}
	return nil
}

// entryReader records the first read error so decompression and checksum
// failures can be told apart from write failures after io.Copy.
type entryReader struct {
	r   io.Reader
	err error
}

func (e *entryReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF && e.err == nil {
		e.err = err
	}
	return n, err
}

// entryName returns the entry's name, decoding legacy GB18030 names that
// were stored without the UTF-8 flag.
func entryName(file *zip.File) string {
	if !file.NonUTF8 || utf8.ValidString(file.Name) {
		return file.Name
	}
	decoded, err := simplifiedchinese.GB18030.NewDecoder().String(file.Name)
	if err != nil {
		return file.Name
	}
	return decoded
}

// safeComponents splits an archive entry name into path components.
// It reports false for names that cannot be enclosed in a destination root:
// absolute paths, drive letters, NUL bytes and ".." components.
func safeComponents(name string) ([]string, bool) {
	if name == "" || strings.ContainsRune(name, 0) {
		return nil, false
	}

	slashed := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(slashed, "/") {
		return nil, false
	}
	if len(slashed) >= 2 && slashed[1] == ':' {
		return nil, false
	}

	var parts []string
	for _, part := range strings.Split(slashed, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return nil, false
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return nil, false
	}
	return parts, true
}

// isDirMarker reports whether the entry name denotes a directory.
func isDirMarker(name string) bool {
	return strings.HasSuffix(name, "/") || strings.HasSuffix(name, "\\")
}

// within reports whether target resolves inside root.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && !filepath.IsAbs(rel)
}

// unixMode returns the entry's permission bits when the archive was created
// on a unix host and the current platform honors them.
func unixMode(file *zip.File) (os.FileMode, bool) {
	if runtime.GOOS == "windows" {
		return 0, false
	}
	switch file.CreatorVersion >> 8 {
	case creatorUnix, creatorMacOS:
	default:
		return 0, false
	}
	perm := file.Mode().Perm()
	if perm == 0 {
		return 0, false
	}
	return perm, true
}
