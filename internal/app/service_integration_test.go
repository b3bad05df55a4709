package service_test

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/stat/distuv"

	service "github.com/okian/scoredist/internal/app"
	"github.com/okian/scoredist/internal/domain/gmm"
	"github.com/okian/scoredist/internal/domain/model"
)

func scores(seed uint64, size int) []float64 {
	src := rand.NewPCG(seed, 2)
	pick := distuv.Bernoulli{P: 0.4, Src: src}
	low := distuv.Normal{Mu: 30, Sigma: 5, Src: src}
	high := distuv.Normal{Mu: 75, Sigma: 7, Src: src}
	out := make([]float64, size)
	for i := range out {
		if pick.Rand() == 1 {
			out[i] = high.Rand()
		} else {
			out[i] = low.Rand()
		}
	}
	return out
}

func TestServiceIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("fits ten candidates per analysis")
	}

	Convey("Given a service with a full worker pool", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(200),
			service.WithFitOptions(gmm.WithRestarts(2)),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a bimodal score sample is analyzed", func() {
			sample := scores(1, 800)
			a, err := svc.Analyze(ctx, model.AnalysisRequest{Sample: sample})
			So(err, ShouldBeNil)

			Convey("Then more than one component is selected", func() {
				So(a.Components, ShouldBeGreaterThanOrEqualTo, 2)
				So(len(a.Candidates), ShouldEqual, gmm.DefaultMaxComponents)
				for _, c := range a.Candidates {
					So(a.AIC, ShouldBeLessThanOrEqualTo, c.AIC)
				}
			})

			Convey("Then the result matches sequential selection", func() {
				sel, err := gmm.NewSelector(gmm.NewFitter(gmm.WithRestarts(2))).FindOptimal(ctx, sample)
				So(err, ShouldBeNil)
				So(a.Components, ShouldEqual, sel.Best.Components)
				So(a.AIC, ShouldEqual, sel.Best.AIC)
			})

			Convey("Then the percentile markers are ordered", func() {
				for i := 1; i < len(a.Percentiles); i++ {
					So(a.Percentiles[i].Value, ShouldBeGreaterThanOrEqualTo, a.Percentiles[i-1].Value)
				}
			})
		})

		Convey("When analyses run concurrently", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 4)
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := svc.Analyze(ctx, model.AnalysisRequest{Sample: scores(uint64(10+i), 300), MaxComponents: 4})
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)

			Convey("Then every analysis completes and is stored", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
				recent, err := svc.Recent(ctx, 10)
				So(err, ShouldBeNil)
				So(len(recent), ShouldEqual, 4)
			})
		})
	})
}
