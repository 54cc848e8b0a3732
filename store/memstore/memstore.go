// Package memstore provides an in-process Record Store that serves fixture
// records. It records every request so callers can assert how many fetches
// a resolution issued and with which parameters.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-remote-resource/store"
)

const (
	paramPage    = "page"
	paramPerPage = "per_page"
)

// Request is a recorded Get call.
type Request struct {
	Path  string
	Query url.Values
}

// Store is a concurrency-safe in-memory Record Store.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]map[string]any
	bodies      map[string]any
	failures    map[string]error
	requests    []Request
	primaryKey  string
}

// Option configures a Store.
type Option func(*Store)

// WithPrimaryKey changes the attribute used for element lookups and id
// filters. Defaults to "id".
func WithPrimaryKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.primaryKey = key
		}
	}
}

// New builds an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string][]map[string]any),
		bodies:      make(map[string]any),
		failures:    make(map[string]error),
		primaryKey:  "id",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ store.Store = (*Store)(nil)

// Put appends records to the collection served at path.
func (s *Store) Put(path string, records ...map[string]any) {
	path = store.JoinPath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		s.collections[path] = append(s.collections[path], copyRecord(record))
	}
}

// PutBody serves a fixed body at path, taking precedence over collections.
func (s *Store) PutBody(path string, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[store.JoinPath(path)] = body
}

// FailOn makes every request to path fail with err.
func (s *Store) FailOn(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[store.JoinPath(path)] = err
}

// Requests returns the recorded calls in arrival order.
func (s *Store) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many Get calls were served.
func (s *Store) RequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// Reset forgets the recorded requests.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, path string, query url.Values) (*store.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = store.JoinPath(path)

	s.mu.Lock()
	s.requests = append(s.requests, Request{Path: path, Query: cloneValues(query)})
	failure := s.failures[path]
	body, hasBody := s.bodies[path]
	s.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	if hasBody {
		return &store.Response{Body: body, Header: http.Header{}}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if records, ok := s.collections[path]; ok {
		return s.collection(records, query), nil
	}

	segments := store.SplitPath(path)
	if len(segments) >= 2 {
		collection := "/" + strings.Join(segments[:len(segments)-1], "/")
		if records, ok := s.collections[collection]; ok {
			id := segments[len(segments)-1]
			for _, record := range records {
				if idString(record[s.primaryKey]) == id {
					return &store.Response{Body: toBody(record), Header: http.Header{}}, nil
				}
			}
		}
	}

	return nil, &store.StatusError{Code: http.StatusNotFound, Path: path}
}

func (s *Store) collection(records []map[string]any, query url.Values) *store.Response {
	filtered := make([]any, 0, len(records))
	for _, record := range records {
		if s.matches(record, query) {
			filtered = append(filtered, toBody(record))
		}
	}

	header := http.Header{}
	total := len(filtered)
	offset := 0
	if perPage, _ := strconv.Atoi(query.Get(paramPerPage)); perPage > 0 {
		page, _ := strconv.Atoi(query.Get(paramPage))
		if page < 1 {
			page = 1
		}
		offset = (page - 1) * perPage
		end := offset + perPage
		if offset > len(filtered) {
			offset = len(filtered)
		}
		if end > len(filtered) {
			end = len(filtered)
		}
		filtered = filtered[offset:end]
	}
	header.Set(store.HeaderTotalEntries, strconv.Itoa(total))
	header.Set(store.HeaderOffset, strconv.Itoa(offset))

	return &store.Response{Body: filtered, Header: header}
}

// matches applies equality and set filters. Filters on attributes the record
// does not carry are ignored.
func (s *Store) matches(record map[string]any, query url.Values) bool {
	for key, wanted := range query {
		if key == paramPage || key == paramPerPage {
			continue
		}
		attrPath := parseKey(key)
		value, ok := lookup(record, attrPath)
		if !ok {
			continue
		}
		if !containsValue(wanted, value) {
			return false
		}
	}
	return true
}

// parseKey turns "a[b][]" into ["a", "b"].
func parseKey(key string) []string {
	key = strings.TrimSuffix(key, "[]")
	parts := strings.Split(strings.ReplaceAll(key, "]", ""), "[")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lookup(record map[string]any, path []string) (any, bool) {
	var current any = record
	for _, part := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func containsValue(wanted []string, value any) bool {
	got := idString(value)
	for _, candidate := range wanted {
		if candidate == got {
			return true
		}
	}
	return false
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func toBody(record map[string]any) map[string]any {
	return copyRecord(record)
}

func copyRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = value
	}
	return out
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, list := range values {
		out[key] = append([]string(nil), list...)
	}
	return out
}
