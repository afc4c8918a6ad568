// Package jar reads compiled class entries out of Java archives so they can
// run through the same scan pipeline as loose .class files.
package jar

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

// ErrNotArchive is returned when the file is not a readable zip container.
var ErrNotArchive = errors.New("jar: not a zip archive")

// IsArchive reports whether the path names a Java archive by extension.
func IsArchive(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".jar") || strings.HasSuffix(lower, ".war")
}

// Entry is one class file extracted from an archive.
type Entry struct {
	Name string // path inside the archive
	Data []byte
}

// EntryError records an archive member that could not be read. The rest of
// the archive is unaffected.
type EntryError struct {
	Name string
	Err  error
}

// ReadClasses opens a jar/war archive and returns every .class member's
// bytes. Member read failures are collected per entry, not fatal to the
// archive.
func ReadClasses(path string) ([]Entry, []EntryError, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrNotArchive, path, err)
	}
	defer zr.Close()

	// Archives produced by some build tools use compression settings the
	// stdlib inflater is slow on; route deflate through klauspost's.
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	var entries []Entry
	var entryErrs []EntryError
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		data, err := readMember(f)
		if err != nil {
			entryErrs = append(entryErrs, EntryError{Name: f.Name, Err: err})
			continue
		}
		entries = append(entries, Entry{Name: f.Name, Data: data})
	}
	return entries, entryErrs, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("jar: open member: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("jar: read member: %w", err)
	}
	return data, nil
}
