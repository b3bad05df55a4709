package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoredist/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MaxComponents, convey.ShouldEqual, 10)
				convey.So(cfg.Percentiles, convey.ShouldResemble, []int{4, 11, 23, 40, 60, 77, 89, 96})
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SCOREDIST_ADDR", ":8080")
			_ = os.Setenv("SCOREDIST_MAX_COMPONENTS", "6")
			_ = os.Setenv("SCOREDIST_TOLERANCE", "0.001")
			_ = os.Setenv("SCOREDIST_COLLAPSE_POLICY", "fail")
			_ = os.Setenv("SCOREDIST_SEED", "7")
			_ = os.Setenv("SCOREDIST_WORKER_COUNT", "3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MaxComponents, convey.ShouldEqual, 6)
				convey.So(cfg.Tolerance, convey.ShouldEqual, 0.001)
				convey.So(cfg.CollapsePolicy, convey.ShouldEqual, "fail")
				convey.So(cfg.Seed, convey.ShouldEqual, uint64(7))
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
max_components: 4
grid_step: 0.5
percentiles: [25, 50, 75]
queue_size: 64
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("SCOREDIST_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.MaxComponents, convey.ShouldEqual, 4)
				convey.So(cfg.GridStep, convey.ShouldEqual, 0.5)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			})

			convey.Convey("Then the percentile list replaces the defaults", func() {
				convey.So(cfg.Percentiles, convey.ShouldResemble, []int{25, 50, 75})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
max_components: 4
restarts: 2
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("SCOREDIST_CONFIG", tmpFile)
			_ = os.Setenv("SCOREDIST_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MaxComponents, convey.ShouldEqual, 4)
				convey.So(cfg.Restarts, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile("addr: [unterminated\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("SCOREDIST_CONFIG", tmpFile)

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("SCOREDIST_CONFIG", "/non/existent/scoredist.yaml")

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SCOREDIST_WORKER_COUNT", "many")

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with an impossible value", func() {
			_ = os.Setenv("SCOREDIST_MAX_COMPONENTS", "0")

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with an unknown collapse policy", func() {
			_ = os.Setenv("SCOREDIST_COLLAPSE_POLICY", "ignore")

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "SCOREDIST_") {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "scoredist-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
