package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoredist/internal/config"
	"github.com/okian/scoredist/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithOutput(os.Stderr))
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a service and mux built from config", t, func() {
		_ = os.Setenv("SCOREDIST_WORKER_COUNT", "2")
		_ = os.Setenv("SCOREDIST_MAX_COMPONENTS", "3")
		defer func() {
			_ = os.Unsetenv("SCOREDIST_WORKER_COUNT")
			_ = os.Unsetenv("SCOREDIST_MAX_COMPONENTS")
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		svc := newService(cfg, logger.Get())
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		mux := newMux(ctx, cfg, svc)

		convey.Convey("When a sample is posted", func() {
			req := httptest.NewRequest(http.MethodPost, "/analyses", strings.NewReader(`{"sample":[1,2,3,4,5,6,7,8,9,10]}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			convey.Convey("Then an analysis is created and retrievable", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)

				loc := w.Header().Get("Location")
				convey.So(loc, convey.ShouldStartWith, "/analyses/")

				get := httptest.NewRecorder()
				mux.ServeHTTP(get, httptest.NewRequest(http.MethodGet, loc, nil))
				convey.So(get.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(get.Body.String(), convey.ShouldContainSubstring, `"candidates"`)
			})
		})

		convey.Convey("Then the docs and health routes are registered", func() {
			for _, path := range []string{"/healthz", "/openapi.yaml", "/api-docs", "/stats", "/metrics"} {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then the metric updaters run without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)

			short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
			defer stop()
			convey.So(func() { startSystemMetricsUpdater(short) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(short, svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given an empty listen address", t, func() {
		_ = os.Setenv("SCOREDIST_ADDR", "")
		defer func() { _ = os.Unsetenv("SCOREDIST_ADDR") }()

		convey.Convey("Then configuration loading fails", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}
