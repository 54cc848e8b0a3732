// Package repostore serves Record Store requests from go-repository-bun
// repositories. Collections are mounted under a path; collection GETs
// become List calls with column criteria and element GETs become GetByID.
package repostore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-remote-resource/store"
)

// Backend answers the requests for one mounted collection.
type Backend interface {
	Get(ctx context.Context, id string) (any, error)
	List(ctx context.Context, req Request) ([]any, int, error)
}

// Reader is the read side of a go-repository-bun repository.
type Reader[T any] interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
}

var _ Reader[any] = (repository.Repository[any])(nil)

// EncodeFunc turns a repository model into record attributes.
type EncodeFunc[T any] func(T) (map[string]any, error)

type repositoryBackend[T any] struct {
	repo   Reader[T]
	encode EncodeFunc[T]
}

// FromRepository adapts repo to a Backend. A nil encode marshals models
// through their JSON tags.
func FromRepository[T any](repo Reader[T], encode EncodeFunc[T]) Backend {
	if encode == nil {
		encode = encodeJSON[T]
	}
	return &repositoryBackend[T]{repo: repo, encode: encode}
}

func (b *repositoryBackend[T]) Get(ctx context.Context, id string) (any, error) {
	model, err := b.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.encode(model)
}

func (b *repositoryBackend[T]) List(ctx context.Context, req Request) ([]any, int, error) {
	models, total, err := b.repo.List(ctx, req.Criteria()...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]any, 0, len(models))
	for _, model := range models {
		attrs, err := b.encode(model)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, attrs)
	}
	return out, total, nil
}

func encodeJSON[T any](model T) (map[string]any, error) {
	raw, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("repostore: encode %T: %w", model, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("repostore: encode %T: %w", model, err)
	}
	return attrs, nil
}

// Store routes paths to mounted backends.
type Store struct {
	mu       sync.RWMutex
	backends map[string]Backend
	logger   *slog.Logger
	notFound func(error) bool
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotFound sets the predicate mapping backend errors to 404 answers.
// Defaults to matching sql.ErrNoRows.
func WithNotFound(fn func(error) bool) Option {
	return func(s *Store) {
		if fn != nil {
			s.notFound = fn
		}
	}
}

// New builds a Store with no mounted collections.
func New(opts ...Option) *Store {
	s := &Store{
		backends: make(map[string]Backend),
		logger:   slog.New(slog.DiscardHandler),
		notFound: func(err error) bool { return errors.Is(err, sql.ErrNoRows) },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Mount serves collection from b, replacing any previous backend.
func (s *Store) Mount(collection string, b Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[store.JoinPath(collection)] = b
}

func (s *Store) backend(path string) (Backend, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backends[path]
	return b, ok
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, path string, query url.Values) (*store.Response, error) {
	path = store.JoinPath(path)

	if b, ok := s.backend(path); ok {
		return s.list(ctx, b, path, query)
	}

	segments := store.SplitPath(path)
	if len(segments) >= 2 {
		collection := store.JoinPath(segments[:len(segments)-1]...)
		if b, ok := s.backend(collection); ok {
			return s.element(ctx, b, path, segments[len(segments)-1])
		}
	}
	return nil, &store.StatusError{Code: http.StatusNotFound, Path: path}
}

func (s *Store) list(ctx context.Context, b Backend, path string, query url.Values) (*store.Response, error) {
	req, err := ParseQuery(query)
	if err != nil {
		return nil, &store.StatusError{Code: http.StatusBadRequest, Path: path, Body: []byte(err.Error())}
	}
	records, total, err := b.List(ctx, req)
	if err != nil {
		return nil, s.mapError(ctx, path, err)
	}
	s.logger.DebugContext(ctx, "repository list",
		"path", path,
		"filters", len(req.Filters),
		"records", len(records),
		"total", total,
	)

	header := http.Header{}
	header.Set(store.HeaderTotalEntries, strconv.Itoa(total))
	header.Set(store.HeaderOffset, strconv.Itoa(req.Offset))
	return &store.Response{Body: records, Header: header}, nil
}

func (s *Store) element(ctx context.Context, b Backend, path, id string) (*store.Response, error) {
	record, err := b.Get(ctx, id)
	if err != nil {
		return nil, s.mapError(ctx, path, err)
	}
	s.logger.DebugContext(ctx, "repository get", "path", path, "id", id)
	return &store.Response{Body: record, Header: http.Header{}}, nil
}

func (s *Store) mapError(ctx context.Context, path string, err error) error {
	if s.notFound(err) {
		return &store.StatusError{Code: http.StatusNotFound, Path: path}
	}
	s.logger.WarnContext(ctx, "repository request failed", "path", path, "error", err)
	return fmt.Errorf("repostore: GET %s: %w", path, err)
}
