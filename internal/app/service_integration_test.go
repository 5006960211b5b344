package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/sessionmetrics/internal/app"
	"github.com/okian/sessionmetrics/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestPipelineAgainstSQLite(t *testing.T) {
	convey.Convey("Given a sqlite store seeded with sessions", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.StoreDriver = config.DriverSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "sessions.db")
		cfg.PageSize = 2
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		store, err := app.OpenStore(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = store.Close() }()

		seed := []json.RawMessage{
			session("s1", "E1", "completed", strPtr("2024-01-01T00:00:00Z")),
			session("s2", "E1", "completed", strPtr("2024-01-03T09:00:00+09:00")),
			session("s3", "E1", "cancelled", nil),
			session("s4", "E2", "scheduled", nil),
			session("s5", "E3", "cancelled", nil),
		}
		convey.So(store.Upsert(ctx, cfg.SourceTable, seed, "session_id"), convey.ShouldBeNil)

		opts := append(app.OptionsFromConfig(cfg), app.WithClock(func() time.Time { return runTime }))
		p := app.New(store, opts...)

		convey.Convey("When the pipeline runs twice", func() {
			n1, err1 := p.Run(ctx)
			n2, err2 := p.Run(ctx)

			convey.Convey("Then the metrics table holds one replaced row per employee", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(n1, convey.ShouldEqual, 2)
				convey.So(n2, convey.ShouldEqual, 2)

				rows, err := store.Select(ctx, cfg.MetricsTable, 0, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(rows, convey.ShouldHaveLength, 2)

				got := map[string]map[string]any{}
				for _, r := range rows {
					var m map[string]any
					convey.So(json.Unmarshal(r, &m), convey.ShouldBeNil)
					got[m["employee_id"].(string)] = m
				}
				convey.So(got["E1"]["completed_count"], convey.ShouldEqual, float64(2))
				convey.So(got["E1"]["cancelled_count"], convey.ShouldEqual, float64(1))
				convey.So(got["E1"]["days_since_last_completed"], convey.ShouldEqual, float64(7))
				convey.So(got["E3"]["days_since_last_completed"], convey.ShouldBeNil)
				convey.So(got["E3"]["computed_at"], convey.ShouldEqual, "2024-01-10T00:00:00+00:00")
			})
		})
	})
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := config.New(context.Background())
	cfg.StoreDriver = "mysql"
	if _, err := app.OpenStore(context.Background(), cfg); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOpenStoreAppliesConfig(t *testing.T) {
	convey.Convey("Given store settings in the config", t, func() {
		ctx := context.Background()

		convey.Convey("When sqlite migrations are disabled", func() {
			cfg := config.New(ctx)
			cfg.StoreDriver = config.DriverSQLite
			cfg.SQLitePath = filepath.Join(t.TempDir(), "bare.db")
			cfg.SQLiteMigrate = false
			cfg.MaxOpenConns = 1

			store, err := app.OpenStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			convey.Convey("Then the schema is not created", func() {
				_, err := store.Select(ctx, cfg.SourceTable, 0, 10)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a Supabase schema is configured", func() {
			var profile string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				profile = r.Header.Get("Accept-Profile")
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte("[]"))
			}))
			defer srv.Close()

			cfg := config.New(ctx)
			cfg.SupabaseURL = srv.URL
			cfg.SupabaseAnonKey = "anon"
			cfg.SupabaseSchema = "analytics"

			store, err := app.OpenStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			convey.Convey("Then requests select that profile", func() {
				_, err := store.Select(ctx, cfg.SourceTable, 0, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(profile, convey.ShouldEqual, "analytics")
			})
		})
	})
}
