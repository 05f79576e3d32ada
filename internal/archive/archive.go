// Package archive reads compressed input bundles. Every conversion job in
// this toolkit starts from a ZIP file (taxonomy bundles, XPORT archives, the
// MDRM dictionary export), so enumeration and extraction live here.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Error reports an unreadable bundle or a bundle with no usable documents.
type Error struct {
	Bundle string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive %s: %s: %v", e.Bundle, e.Reason, e.Err)
	}
	return fmt.Sprintf("archive %s: %s", e.Bundle, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Bundle is an open ZIP whose entries have been filtered down to the
// documents a job cares about. Entry order is the archive's own order.
type Bundle struct {
	name    string
	entries []*zip.File
	closer  io.Closer
}

// Open opens the ZIP at path and keeps only entries whose name ends with ext
// (case-insensitive). An unreadable file or an empty match set is an *Error.
func Open(path, ext string) (*Bundle, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, &Error{Bundle: path, Reason: "cannot open bundle", Err: err}
	}
	b, err := newBundle(path, rc.File, ext)
	if err != nil {
		rc.Close()
		return nil, err
	}
	b.closer = rc
	return b, nil
}

// OpenBytes is Open for an in-memory ZIP, e.g. one fetched over HTTP.
func OpenBytes(name string, data []byte, ext string) (*Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Bundle: name, Reason: "cannot open bundle", Err: err}
	}
	return newBundle(name, zr.File, ext)
}

func newBundle(name string, files []*zip.File, ext string) (*Bundle, error) {
	b := &Bundle{name: name}
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if ext == "" || strings.HasSuffix(strings.ToLower(f.Name), strings.ToLower(ext)) {
			b.entries = append(b.entries, f)
		}
	}
	if len(b.entries) == 0 {
		return nil, &Error{Bundle: name, Reason: fmt.Sprintf("no %s documents found", ext)}
	}
	return b, nil
}

func (b *Bundle) Name() string { return b.name }

// Names lists matched entries in archive order.
func (b *Bundle) Names() []string {
	names := make([]string, len(b.entries))
	for i, f := range b.entries {
		names[i] = f.Name
	}
	return names
}

// Find returns the first entry whose name contains substr.
func (b *Bundle) Find(substr string) (string, bool) {
	for _, f := range b.entries {
		if strings.Contains(f.Name, substr) {
			return f.Name, true
		}
	}
	return "", false
}

// Read extracts one entry fully into memory.
func (b *Bundle) Read(name string) ([]byte, error) {
	for _, f := range b.entries {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &Error{Bundle: b.name, Reason: "cannot extract " + name, Err: err}
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, &Error{Bundle: b.name, Reason: "cannot extract " + name, Err: err}
		}
		return data, nil
	}
	return nil, &Error{Bundle: b.name, Reason: "no such entry " + name}
}

func (b *Bundle) Close() error {
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}
