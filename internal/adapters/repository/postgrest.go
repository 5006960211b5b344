package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	restPath       = "/rest/v1/"
	maxErrorBody   = 4 << 10
	defaultTimeout = 30 * time.Second
)

// PostgRESTStore talks to a Supabase project's PostgREST endpoint.
type PostgRESTStore struct {
	baseURL string
	apiKey  string
	schema  string
	client  *http.Client
	timeout time.Duration
}

var _ Store = (*PostgRESTStore)(nil)

// NewPostgRESTStore creates a store for the project at baseURL, authenticated
// with apiKey.
func NewPostgRESTStore(baseURL, apiKey string, opts ...PostgRESTOption) (*PostgRESTStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("postgrest: invalid base url %q", baseURL)
	}
	s := &PostgRESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select fetches rows [offset, offset+count) of collection.
func (s *PostgRESTStore) Select(ctx context.Context, collection string, offset, count int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(count))

	var rows []json.RawMessage
	if err := s.do(ctx, http.MethodGet, collection, q, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert posts rows with merge-duplicates resolution on conflictKey.
func (s *PostgRESTStore) Upsert(ctx context.Context, collection string, rows []json.RawMessage, conflictKey string) error {
	q := url.Values{}
	q.Set("on_conflict", conflictKey)
	headers := http.Header{}
	headers.Set("Prefer", "resolution=merge-duplicates,return=representation")

	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRow, err)
	}
	var written []json.RawMessage
	return s.do(ctx, http.MethodPost, collection, q, headers, body, &written)
}

// Close drops idle connections.
func (s *PostgRESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *PostgRESTStore) do(ctx context.Context, method, collection string, q url.Values, headers http.Header, body []byte, out *[]json.RawMessage) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	endpoint := s.baseURL + restPath + url.PathEscape(collection) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.schema != "" {
		req.Header.Set("Accept-Profile", s.schema)
		req.Header.Set("Content-Profile", s.schema)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, collection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, collection, err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%s %s: %w", method, collection, ErrNoData)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%s %s: decode body: %w", method, collection, err)
	}
	if *out == nil {
		return fmt.Errorf("%s %s: %w", method, collection, ErrNoData)
	}
	return nil
}
