package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoredist/internal/config"
	"github.com/okian/scoredist/internal/domain/gmm"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.MaxComponents, convey.ShouldEqual, 10)
			convey.So(cfg.MaxIterations, convey.ShouldEqual, 100)
			convey.So(cfg.Tolerance, convey.ShouldEqual, 1e-6)
			convey.So(cfg.CollapsePolicy, convey.ShouldEqual, "reseed")
			convey.So(cfg.Seed, convey.ShouldEqual, uint64(42))
			convey.So(cfg.Percentiles, convey.ShouldResemble, []int{4, 11, 23, 40, 60, 77, 89, 96})
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the defaults do not share the package percentile slice", func() {
			cfg.Percentiles[0] = 5
			convey.So(gmm.DefaultPercentiles[0], convey.ShouldEqual, 4)
		})

		convey.Convey("Then it builds fitter options", func() {
			convey.So(len(cfg.FitOptions()), convey.ShouldEqual, 5)
			f := gmm.NewFitter(cfg.FitOptions()...)
			convey.So(f.Policy(), convey.ShouldEqual, gmm.CollapseReseed)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given impossible settings", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero components", func(c *config.Config) { c.MaxComponents = 0 }},
			{"zero iterations", func(c *config.Config) { c.MaxIterations = 0 }},
			{"zero tolerance", func(c *config.Config) { c.Tolerance = 0 }},
			{"negative floor", func(c *config.Config) { c.VarianceFloor = -1 }},
			{"zero restarts", func(c *config.Config) { c.Restarts = 0 }},
			{"zero grid step", func(c *config.Config) { c.GridStep = 0 }},
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"negative rate", func(c *config.Config) { c.RateLimitRPS = -1 }},
			{"unknown policy", func(c *config.Config) { c.CollapsePolicy = "ignore" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"no percentiles", func(c *config.Config) { c.Percentiles = nil }},
			{"percentile 100", func(c *config.Config) { c.Percentiles = []int{50, 100} }},
		}

		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" is rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given the fail policy in mixed case", t, func() {
		cfg := config.New()
		cfg.CollapsePolicy = "FAIL"
		convey.So(cfg.Validate(), convey.ShouldBeNil)
		convey.So(gmm.NewFitter(cfg.FitOptions()...).Policy(), convey.ShouldEqual, gmm.CollapseFail)
	})
}
