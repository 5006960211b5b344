package repository

import (
	"net/http"
	"time"
)

// PostgRESTOption applies a configuration option to the PostgRESTStore.
type PostgRESTOption func(*PostgRESTStore)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) PostgRESTOption {
	return func(s *PostgRESTStore) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRequestTimeout bounds each request. Zero keeps the client's timeout.
func WithRequestTimeout(d time.Duration) PostgRESTOption {
	return func(s *PostgRESTStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSchema sets the Accept-Profile and Content-Profile headers for a
// non-public schema.
func WithSchema(schema string) PostgRESTOption {
	return func(s *PostgRESTStore) {
		s.schema = schema
	}
}

// SQLOption applies a configuration option to the SQL-backed stores.
type SQLOption func(*sqlOptions)

type sqlOptions struct {
	timeout      time.Duration
	maxOpenConns int
	skipMigrate  bool
}

// WithQueryTimeout bounds each statement. Zero means no bound.
func WithQueryTimeout(d time.Duration) SQLOption {
	return func(o *sqlOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) SQLOption {
	return func(o *sqlOptions) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithoutMigrations skips applying the embedded sqlite schema.
func WithoutMigrations() SQLOption {
	return func(o *sqlOptions) {
		o.skipMigrate = true
	}
}

func applySQLOptions(opts []SQLOption) sqlOptions {
	o := sqlOptions{maxOpenConns: 4}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
