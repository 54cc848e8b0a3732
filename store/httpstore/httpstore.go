// Package httpstore is a Record Store backed by a JSON or MessagePack HTTP
// API. Collection and element paths are appended to the base URL and the
// condition parameters are sent as the query string.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-remote-resource/store"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultTimeout bounds a single request when no client is supplied.
	DefaultTimeout = 30 * time.Second

	// HeaderRequestID carries the per request correlation id.
	HeaderRequestID = "X-Request-Id"

	mimeJSON    = "application/json"
	mimeMsgpack = "application/msgpack"

	maxErrorBody = 4 << 10
)

// Store issues GET requests against a base URL.
type Store struct {
	base    *url.URL
	client  *http.Client
	header  http.Header
	logger  *slog.Logger
	timeout time.Duration
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the HTTP client. Its transport is wrapped with
// OpenTelemetry instrumentation.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
	}
}

// WithTimeout sets the per request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(s *Store) {
		s.header.Add(key, value)
	}
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Store rooted at baseURL.
func New(baseURL string, opts ...Option) (*Store, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpstore: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("httpstore: base url %q must be absolute", baseURL)
	}

	s := &Store{
		base:    base,
		client:  &http.Client{},
		header:  http.Header{},
		logger:  slog.New(slog.DiscardHandler),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	client := *s.client
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(transport)
	s.client = &client

	if s.header.Get("Accept") == "" {
		s.header.Set("Accept", mimeJSON+", "+mimeMsgpack)
	}
	return s, nil
}

// URL returns the absolute URL for path and query.
func (s *Store) URL(path string, query url.Values) string {
	u := *s.base
	u.Path = strings.TrimRight(s.base.Path, "/") + store.JoinPath(path)
	u.RawQuery = query.Encode()
	return u.String()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, path string, query url.Values) (*store.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := s.URL(path, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("httpstore: create request: %w", err)
	}
	for key, values := range s.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "store request failed",
			"path", path,
			"request_id", requestID,
			"error", err,
		)
		return nil, fmt.Errorf("httpstore: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	s.logger.DebugContext(ctx, "store request",
		"path", path,
		"query", req.URL.RawQuery,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &store.StatusError{Code: resp.StatusCode, Path: store.JoinPath(path), Body: body}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpstore: read %s: %w", path, err)
	}
	body, err := decodeBody(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return nil, fmt.Errorf("httpstore: decode %s: %w", path, err)
	}
	return &store.Response{Body: body, Header: resp.Header.Clone()}, nil
}

// decodeBody turns a response payload into maps, slices and scalars. JSON
// numbers are kept as json.Number so large identifiers survive.
func decodeBody(contentType string, raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	mediaType := mimeJSON
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = parsed
		}
	}

	switch mediaType {
	case mimeMsgpack, "application/x-msgpack", "application/vnd.msgpack":
		dec := msgpack.NewDecoder(bytes.NewReader(raw))
		dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) {
			return d.DecodeMap()
		})
		var out any
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var out any
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
}
