package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "scoredist")
				So(manager.subsystem, ShouldEqual, "gmm")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(WithPrometheusRegistry(registry))

		Convey("When recording fits", func() {
			manager.RecordFit("converged", 12, 3.5, 0)
			manager.RecordFit("converged", 7, 1.0, 0)
			manager.RecordFit("exhausted", 100, 40.0, 3)

			Convey("Then counters should reflect terminal states and reseeds", func() {
				So(testutil.ToFloat64(manager.fitsTotal.WithLabelValues("converged")), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.fitsTotal.WithLabelValues("exhausted")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.fitReseeds), ShouldEqual, 3)
			})
		})

		Convey("When recording a selection", func() {
			manager.RecordSelection(3, 812.25, 15)

			Convey("Then the gauge should hold the last AIC", func() {
				So(testutil.ToFloat64(manager.selectedAIC), ShouldEqual, 812.25)
				So(testutil.ToFloat64(manager.analyses), ShouldEqual, 1)
			})
		})

		Convey("When recording fit errors", func() {
			manager.RecordFitError("component_collapse")

			Convey("Then the labelled counter should increase", func() {
				So(testutil.ToFloat64(manager.fitErrors.WithLabelValues("component_collapse")), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a disabled manager", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(WithPrometheusRegistry(registry), WithMetricsEnabled(false))

		Convey("When recording", func() {
			manager.RecordFit("converged", 1, 1, 0)

			Convey("Then nothing should be observed", func() {
				So(testutil.ToFloat64(manager.fitsTotal.WithLabelValues("converged")), ShouldEqual, 0)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global metrics helpers", t, func() {
		Convey("Then recording should not panic", func() {
			So(func() {
				RecordFit("converged", 5, 2.0, 0)
				RecordFitError("canceled")
				RecordSelection(2, 100, 10)
				RecordCacheHit()
				RecordCacheMiss()
				UpdateStoredAnalyses(4)
				UpdateQueueSize(3)
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("full")
				UpdateWorkerCount(8)
				RecordWorkerProcessingLatency(12)
				RecordWorkerError()
				RecordHTTPRequest("analyses", "POST", "201")
				RecordHTTPRequestDuration("analyses", "POST", "201", 30)
				RecordErrorByEndpoint("analyses", "POST", "client_error")
				RecordRateLimited("analyses")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})

		Convey("And the custom registry should expose the gathered families", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
