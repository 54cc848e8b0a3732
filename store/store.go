// Package store defines the Record Store contract consumed by the resource
// engine: a read-only GET over a path plus query string, answering with an
// already decoded value tree and the response headers.
//
// Wire encoding, authentication and retry policy live in the concrete
// adapters (httpstore, memstore, repostore), never in the engine.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Pagination metadata headers.
const (
	HeaderTotalEntries = "Total-Entries"
	HeaderOffset       = "Offset"
)

// ErrResourceNotFound marks a 404-class answer from the store.
var ErrResourceNotFound = errors.New("store: resource not found")

// Store fetches decoded records from a remote source.
type Store interface {
	Get(ctx context.Context, path string, query url.Values) (*Response, error)
}

// Func adapts a function to Store.
type Func func(ctx context.Context, path string, query url.Values) (*Response, error)

// Get implements Store.
func (f Func) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return f(ctx, path, query)
}

// Response is a decoded store answer. Body holds maps, slices and scalars as
// produced by a generic decoder.
type Response struct {
	Body   any
	Header http.Header
}

// TotalEntries returns the Total-Entries header when present and valid.
func (r *Response) TotalEntries() (int, bool) {
	return r.intHeader(HeaderTotalEntries)
}

// Offset returns the Offset header when present and valid.
func (r *Response) Offset() (int, bool) {
	return r.intHeader(HeaderOffset)
}

func (r *Response) intHeader(name string) (int, bool) {
	if r == nil || r.Header == nil {
		return 0, false
	}
	raw := strings.TrimSpace(r.Header.Get(name))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// StatusError reports a non-successful store answer.
type StatusError struct {
	Code int
	Path string
	Body []byte
}

func (e *StatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: GET %s: status %d %s", e.Path, e.Code, http.StatusText(e.Code))
}

// Is lets errors.Is match 404 answers against ErrResourceNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrResourceNotFound && e != nil && e.Code == http.StatusNotFound
}

// IsNotFound reports whether err is a 404-class store failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound)
}

// JoinPath joins path segments with single slashes and a leading slash.
func JoinPath(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		segments = append(segments, part)
	}
	return "/" + strings.Join(segments, "/")
}

// SplitPath returns the non-empty segments of path.
func SplitPath(path string) []string {
	raw := strings.Split(strings.Trim(path, "/"), "/")
	out := raw[:0]
	for _, segment := range raw {
		if segment != "" {
			out = append(out, segment)
		}
	}
	return out
}
