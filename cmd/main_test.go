package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	app "github.com/okian/trajguard/internal/app"
	"github.com/okian/trajguard/internal/config"
	"github.com/okian/trajguard/pkg/logger"
	"github.com/okian/trajguard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			_ = os.Setenv("TRAJGUARD_ADDR", ":8080")
			_ = os.Setenv("TRAJGUARD_QUEUE_SIZE", "1000")
			_ = os.Setenv("TRAJGUARD_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("TRAJGUARD_ADDR")
				_ = os.Unsetenv("TRAJGUARD_QUEUE_SIZE")
				_ = os.Unsetenv("TRAJGUARD_WORKER_COUNT")
			}()

			convey.Convey("Then the overrides are applied", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the address is empty", func() {
			_ = os.Setenv("TRAJGUARD_ADDR", "")
			defer func() { _ = os.Unsetenv("TRAJGUARD_ADDR") }()

			convey.Convey("Then configuration loading fails", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When creating a metrics manager on its own registry", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			convey.So(manager, convey.ShouldNotBeNil)
		})
	})
}

func TestHTTPServer(t *testing.T) {
	convey.Convey("Given a started service behind the HTTP server", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg := config.New(ctx)
		cfg.WorkerCount = 1
		svc := app.New(app.WithConfig(cfg), app.WithLogger(logger.Nop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := newHTTPServer(ctx, cfg, svc)
		convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
		convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)

		convey.Convey("When the health route is requested", func() {
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			convey.Convey("Then it answers 200", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When the stats route is requested", func() {
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			var stats map[string]any
			convey.So(json.Unmarshal(rec.Body.Bytes(), &stats), convey.ShouldBeNil)

			convey.Convey("Then the service reports itself started", func() {
				convey.So(stats["started"], convey.ShouldEqual, true)
			})
		})

		convey.Convey("When the API docs are requested", func() {
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

			convey.Convey("Then the OpenAPI document is served", func() {
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "/trials")
			})
		})

		convey.Convey("When the service metrics are refreshed", func() {
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a configuration on a free port", t, func() {
		cfg := config.New(context.Background())
		cfg.Addr = "127.0.0.1:0"
		cfg.WorkerCount = 1

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg, logger.Nop()) }()
			time.Sleep(50 * time.Millisecond)
			cancel()

			convey.Convey("Then run returns without error", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the service cannot start", func() {
			cfg.Line.Orientation = "diagonal"
			err := run(context.Background(), cfg, logger.Nop())

			convey.Convey("Then run fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
