// Package storage fetches original document containers from object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// Backend kinds recorded on documents.
const (
	KindLocal = "local"
	KindS3    = "s3"
)

var (
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrTooLarge       = errors.New("stored object too large")
	ErrNotFound       = errors.New("stored object not found")
	ErrInvalidPath    = errors.New("invalid storage path")
)

// Backend opens stored objects by path.
type Backend interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Fetcher dispatches reads to the backend named on the document.
type Fetcher struct {
	backends map[string]Backend
	maxBytes int64
}

// NewFetcher creates a Fetcher. Objects larger than maxBytes are rejected;
// zero disables the bound.
func NewFetcher(maxBytes int64) *Fetcher {
	return &Fetcher{
		backends: make(map[string]Backend),
		maxBytes: maxBytes,
	}
}

// Register installs a backend under kind.
func (f *Fetcher) Register(kind string, backend Backend) *Fetcher {
	f.backends[kind] = backend
	return f
}

// FetchOriginalBytes reads the whole object at path from the backend kind.
// An empty kind means local storage.
func (f *Fetcher) FetchOriginalBytes(ctx context.Context, path, kind string) (data []byte, err error) {
	if kind == "" {
		kind = KindLocal
	}
	backend, ok := f.backends[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}

	rc, err := backend.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, rc.Close())
	}()

	var r io.Reader = rc
	if f.maxBytes > 0 {
		r = io.LimitReader(rc, f.maxBytes+1)
	}
	data, err = io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s object %s: %w", kind, path, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, path, f.maxBytes)
	}
	return data, nil
}
