// Package content models the three content sources an upload can draw from:
// inline bytes, a local file, or a remote URL. Each variant yields an open
// reader plus the media type the server should interpret it as. The bytes
// are forwarded untouched; RDF parsing and validation are server concerns.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// ErrUnknownMediaType indicates the media type was neither declared nor
// inferable from the source name.
var ErrUnknownMediaType = errors.New("content: unknown media type")

// Content is a tagged source of bytes for an upload operation.
type Content interface {
	// Open returns a fresh reader over the payload. Callers own the closer.
	Open() (io.ReadCloser, error)
	// MediaType reports the declared or inferred media type.
	MediaType() (string, error)
	// Name is a label for the payload, used for document names and
	// multipart file names. May be empty for inline data.
	Name() string
}

// Raw is inline data with an explicitly declared media type.
type Raw struct {
	Data     []byte
	Type     string
	DataName string
}

func (r Raw) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(r.Data)), nil
}

func (r Raw) MediaType() (string, error) {
	if r.Type == "" {
		return "", fmt.Errorf("%w: inline data needs a declared type", ErrUnknownMediaType)
	}
	return r.Type, nil
}

func (r Raw) Name() string { return r.DataName }

// File is a local file. The media type may be declared or inferred from the
// file extension.
type File struct {
	Path string
	Type string
}

func (f File) Open() (io.ReadCloser, error) {
	handle, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("content: open %s: %w", f.Path, err)
	}
	return handle, nil
}

func (f File) MediaType() (string, error) {
	if f.Type != "" {
		return f.Type, nil
	}
	if inferred := ForExtension(f.Path); inferred != "" {
		return inferred, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMediaType, f.Path)
}

func (f File) Name() string { return filepath.Base(f.Path) }

// URL is a remote resource. The client fetches it and forwards the bytes to
// the server together with the declared or inferred media type.
type URL struct {
	Source string
	Type   string
}

func (u URL) Open() (io.ReadCloser, error) {
	resp, err := http.Get(u.Source)
	if err != nil {
		return nil, fmt.Errorf("content: fetch %s: %w", u.Source, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("content: fetch %s: status %d", u.Source, resp.StatusCode)
	}
	return resp.Body, nil
}

func (u URL) MediaType() (string, error) {
	if u.Type != "" {
		return u.Type, nil
	}
	if inferred := ForExtension(u.Source); inferred != "" {
		return inferred, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMediaType, u.Source)
}

func (u URL) Name() string { return filepath.Base(u.Source) }
