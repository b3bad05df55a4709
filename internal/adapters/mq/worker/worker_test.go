package worker_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/scoredist/internal/adapters/mq/queue"
	worker "github.com/okian/scoredist/internal/adapters/mq/worker"
	"github.com/okian/scoredist/internal/domain/gmm"
	model "github.com/okian/scoredist/internal/domain/model"
	logging "github.com/okian/scoredist/pkg/logger"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 16)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

// mockFitter records the component counts it was asked for and fails
// for the counts listed in fail.
type mockFitter struct {
	mu    sync.Mutex
	calls []int
	fail  map[int]error
}

func (mf *mockFitter) Fit(_ context.Context, _ []float64, n int, rng *rand.Rand) (gmm.Fit, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	mf.calls = append(mf.calls, n)
	if err, ok := mf.fail[n]; ok {
		return gmm.Fit{}, err
	}
	_ = rng.Float64()
	return gmm.Fit{State: gmm.StateConverged, Iterations: n, LogLikelihood: -float64(n)}, nil
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		fitter := &mockFitter{fail: map[int]error{3: gmm.ErrComponentCollapse}}
		w := worker.NewInMemoryWorker(q, fitter, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is processed", func() {
			reply := make(chan model.FitOutcome, 1)
			q.jobs <- model.FitJob{AnalysisID: "a", Sample: []float64{1, 2}, Components: 2, Reply: reply}

			convey.Convey("Then the outcome is sent back", func() {
				select {
				case out := <-reply:
					convey.So(out.Err, convey.ShouldBeNil)
					convey.So(out.Components, convey.ShouldEqual, 2)
					convey.So(out.Fit.State, convey.ShouldEqual, gmm.StateConverged)
				case <-time.After(time.Second):
					convey.So("no reply", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When a fit fails", func() {
			reply := make(chan model.FitOutcome, 1)
			q.jobs <- model.FitJob{AnalysisID: "b", Sample: []float64{1, 1}, Components: 3, Reply: reply}

			convey.Convey("Then the error is reported in the outcome", func() {
				out := <-reply
				convey.So(errors.Is(out.Err, gmm.ErrComponentCollapse), convey.ShouldBeTrue)
				convey.So(out.Components, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		fitter := &mockFitter{}
		pool := worker.NewPool(3, q, fitter)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When every candidate of an analysis is enqueued", func() {
			const maxN = 6
			reply := make(chan model.FitOutcome, maxN)
			for n := 1; n <= maxN; n++ {
				q.jobs <- model.FitJob{AnalysisID: "p", Sample: []float64{1, 2, 3}, Components: n, Reply: reply}
			}

			convey.Convey("Then each count is fitted exactly once", func() {
				seen := make(map[int]bool)
				for i := 0; i < maxN; i++ {
					out := <-reply
					seen[out.Components] = true
				}
				convey.So(len(seen), convey.ShouldEqual, maxN)
			})
		})

		convey.Convey("When the pool is shut down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})

	convey.Convey("A non-positive worker count falls back to the CPU count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), &mockFitter{})
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}

func TestPoolMatchesSequentialSelection(t *testing.T) {
	convey.Convey("Pooled fits equal sequential fits for the same seed", t, func() {
		_ = logging.Init()

		sample := []float64{1.2, 1.9, 2.4, 7.8, 8.1, 8.8, 9.4, 2.2, 1.1, 8.3}
		fitter := gmm.NewFitter()
		seq, err := gmm.NewSelector(fitter, gmm.WithMaxComponents(3), gmm.WithSeed(5)).
			FindOptimal(context.Background(), sample)
		convey.So(err, convey.ShouldBeNil)

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		pool := worker.NewPool(2, q, fitter)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		reply := make(chan model.FitOutcome, 3)
		for n := 1; n <= 3; n++ {
			convey.So(q.Enqueue(ctx, model.FitJob{Sample: sample, Components: n, Seed: 5, Reply: reply}), convey.ShouldBeNil)
		}
		var cands []gmm.Candidate
		for i := 0; i < 3; i++ {
			out := <-reply
			cands = append(cands, gmm.NewCandidate(out.Components, out.Fit, out.Err))
		}
		pooled, err := gmm.Choose(cands)
		convey.So(err, convey.ShouldBeNil)

		convey.So(pooled.Best.Components, convey.ShouldEqual, seq.Best.Components)
		convey.So(pooled.Best.AIC, convey.ShouldEqual, seq.Best.AIC)
		convey.So(pooled.Best.Fit.Model.Means(), convey.ShouldResemble, seq.Best.Fit.Model.Means())

		convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
	})
}
