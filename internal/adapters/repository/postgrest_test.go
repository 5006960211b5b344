package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/sessionmetrics/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

type recorded struct {
	method string
	path   string
	query  map[string]string
	header http.Header
	body   string
}

func newPostgREST(t *testing.T, status int, body string, rec *recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.header = r.Header.Clone()
		rec.body = string(b)
		rec.query = map[string]string{}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPostgRESTSelect(t *testing.T) {
	Convey("Given a PostgREST endpoint", t, func() {
		ctx := context.Background()
		var rec recorded

		Convey("When a page is requested", func() {
			srv := newPostgREST(t, http.StatusOK, `[{"session_id":"s1"},{"session_id":"s2"}]`, &rec)
			store, err := repository.NewPostgRESTStore(srv.URL+"/", "anon-key")
			So(err, ShouldBeNil)

			rows, err := store.Select(ctx, "sessions_raw", 1000, 1000)

			Convey("Then it sends the range and credentials and returns the rows", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(string(rows[0]), ShouldEqual, `{"session_id":"s1"}`)
				So(rec.method, ShouldEqual, http.MethodGet)
				So(rec.path, ShouldEqual, "/rest/v1/sessions_raw")
				So(rec.query["select"], ShouldEqual, "*")
				So(rec.query["offset"], ShouldEqual, "1000")
				So(rec.query["limit"], ShouldEqual, "1000")
				So(rec.header.Get("apikey"), ShouldEqual, "anon-key")
				So(rec.header.Get("Authorization"), ShouldEqual, "Bearer anon-key")
			})
		})

		Convey("When the page is empty", func() {
			srv := newPostgREST(t, http.StatusOK, `[]`, &rec)
			store, _ := repository.NewPostgRESTStore(srv.URL, "k")

			rows, err := store.Select(ctx, "sessions_raw", 0, 10)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("When the payload is null", func() {
			srv := newPostgREST(t, http.StatusOK, `null`, &rec)
			store, _ := repository.NewPostgRESTStore(srv.URL, "k")

			_, err := store.Select(ctx, "sessions_raw", 0, 10)

			Convey("Then it is a non-transient no-data error", func() {
				So(errors.Is(err, repository.ErrNoData), ShouldBeTrue)
				So(repository.IsTransient(err), ShouldBeFalse)
			})
		})

		Convey("When the key is rejected", func() {
			srv := newPostgREST(t, http.StatusUnauthorized, `{"message":"Invalid API key"}`, &rec)
			store, _ := repository.NewPostgRESTStore(srv.URL, "bad")

			_, err := store.Select(ctx, "sessions_raw", 0, 10)

			Convey("Then a status error is returned and not retried", func() {
				var se *repository.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.StatusCode, ShouldEqual, http.StatusUnauthorized)
				So(se.Body, ShouldContainSubstring, "Invalid API key")
				So(repository.IsTransient(err), ShouldBeFalse)
			})
		})

		Convey("When the body is malformed", func() {
			srv := newPostgREST(t, http.StatusOK, `{"not":"an array"}`, &rec)
			store, _ := repository.NewPostgRESTStore(srv.URL, "k")

			_, err := store.Select(ctx, "sessions_raw", 0, 10)
			So(err, ShouldNotBeNil)
			So(repository.IsTransient(err), ShouldBeFalse)
		})

		Convey("When a schema is configured", func() {
			srv := newPostgREST(t, http.StatusOK, `[]`, &rec)
			store, _ := repository.NewPostgRESTStore(srv.URL, "k", repository.WithSchema("analytics"))

			_, err := store.Select(ctx, "sessions_raw", 0, 10)
			So(err, ShouldBeNil)
			So(rec.header.Get("Accept-Profile"), ShouldEqual, "analytics")
		})
	})
}

func TestPostgRESTCustomClient(t *testing.T) {
	Convey("Given a PostgREST endpoint behind TLS", t, func() {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[{"session_id":"s1"}]`)
		}))
		defer srv.Close()
		ctx := context.Background()

		Convey("When the default client is used", func() {
			store, err := repository.NewPostgRESTStore(srv.URL, "k")
			So(err, ShouldBeNil)
			_, err = store.Select(ctx, "sessions_raw", 0, 10)

			Convey("Then the unknown certificate is refused", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When a client trusting the server is supplied", func() {
			store, err := repository.NewPostgRESTStore(srv.URL, "k", repository.WithHTTPClient(srv.Client()))
			So(err, ShouldBeNil)
			rows, err := store.Select(ctx, "sessions_raw", 0, 10)

			Convey("Then rows are returned", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
			})
		})
	})
}

func TestPostgRESTUpsert(t *testing.T) {
	Convey("Given a PostgREST endpoint accepting writes", t, func() {
		var rec recorded
		srv := newPostgREST(t, http.StatusCreated, `[{"employee_id":"E1"}]`, &rec)
		store, err := repository.NewPostgRESTStore(srv.URL, "k")
		So(err, ShouldBeNil)

		Convey("When records are upserted", func() {
			rows := []json.RawMessage{json.RawMessage(`{"employee_id":"E1","completed_count":1}`)}
			err := store.Upsert(context.Background(), "session_metrics", rows, "employee_id")

			Convey("Then it posts the batch with merge-duplicates on the conflict key", func() {
				So(err, ShouldBeNil)
				So(rec.method, ShouldEqual, http.MethodPost)
				So(rec.path, ShouldEqual, "/rest/v1/session_metrics")
				So(rec.query["on_conflict"], ShouldEqual, "employee_id")
				So(rec.header.Get("Prefer"), ShouldContainSubstring, "resolution=merge-duplicates")
				So(rec.header.Get("Content-Type"), ShouldEqual, "application/json")
				So(rec.body, ShouldEqual, `[{"employee_id":"E1","completed_count":1}]`)
			})
		})
	})
}

func TestPostgRESTTransientFailures(t *testing.T) {
	Convey("Given an endpoint that is too slow", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		store, _ := repository.NewPostgRESTStore(srv.URL, "k", repository.WithRequestTimeout(20*time.Millisecond))

		_, err := store.Select(context.Background(), "sessions_raw", 0, 10)

		Convey("Then the timeout is transient", func() {
			So(err, ShouldNotBeNil)
			So(repository.IsTransient(err), ShouldBeTrue)
		})
	})

	Convey("Given an endpoint that refuses connections", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()
		store, _ := repository.NewPostgRESTStore(addr, "k")

		_, err := store.Select(context.Background(), "sessions_raw", 0, 10)

		Convey("Then the failure is transient", func() {
			So(err, ShouldNotBeNil)
			So(repository.IsTransient(err), ShouldBeTrue)
		})
	})
}

func TestNewPostgRESTStoreRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "project.supabase.co", "ftp://x"} {
		if _, err := repository.NewPostgRESTStore(u, "k"); err == nil {
			t.Errorf("NewPostgRESTStore(%q) succeeded", u)
		}
	}
}
