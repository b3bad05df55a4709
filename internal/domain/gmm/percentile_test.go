package gmm

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPercentiles(t *testing.T) {
	single, _ := NewMixture([]Component{{Mean: 5, Variance: 4}}, []float64{1})

	Convey("Given N(5, 4) over a grid covering its support", t, func() {
		g, err := DensityGrid(single, -20, 30, 0.1)
		So(err, ShouldBeNil)

		Convey("the cumulative mass is a probability", func() {
			So(g.Mass(), ShouldAlmostEqual, 1, 1e-6)
			for i := 1; i < len(g.Cumulative); i++ {
				So(g.Cumulative[i], ShouldBeGreaterThanOrEqualTo, g.Cumulative[i-1])
			}
		})

		Convey("the median is near the mean", func() {
			v, err := g.Percentile(50)
			So(err, ShouldBeNil)
			So(v, ShouldAlmostEqual, 5, 0.11)
		})

		Convey("markers are ordered", func() {
			ms, err := Percentiles(single, -20, 30, 0.1, DefaultPercentiles)
			So(err, ShouldBeNil)
			So(len(ms), ShouldEqual, len(DefaultPercentiles))
			for i := 1; i < len(ms); i++ {
				So(ms[i].Value, ShouldBeGreaterThanOrEqualTo, ms[i-1].Value)
			}
			So(ms[0].Percentile, ShouldEqual, 4)
		})
	})

	Convey("Given the observed range truncates the density", t, func() {
		g, err := DensityGrid(single, 0, 10, 0.1)
		So(err, ShouldBeNil)
		So(g.Mass(), ShouldBeLessThan, 0.999)

		Convey("the 99.99th percentile is out of range", func() {
			_, err := g.Quantile(0.9999)
			So(errors.Is(err, ErrPercentileOutOfRange), ShouldBeTrue)
		})

		Convey("reachable percentiles still resolve", func() {
			v, err := g.Percentile(60)
			So(err, ShouldBeNil)
			So(v, ShouldBeBetween, 5, 6)
		})
	})

	Convey("Invalid arguments are rejected", t, func() {
		_, err := DensityGrid(single, 0, 10, 0)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)

		_, err = DensityGrid(single, 10, 0, 0.1)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)

		_, err = DensityGrid(single, 0, 1e9, 1e-3)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)

		g, _ := DensityGrid(single, 0, 10, 0.1)
		for _, p := range []int{0, 100, -4, 150} {
			_, err = g.Percentile(p)
			So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)
		}
	})

	Convey("A degenerate range is a single grid point", t, func() {
		g, err := DensityGrid(single, 5, 5, 0.1)
		So(err, ShouldBeNil)
		So(len(g.X), ShouldEqual, 1)
	})
}

func TestDensityGridBounds(t *testing.T) {
	Convey("Given a mixture spread over a very wide range", t, func() {
		wide, err := NewMixture([]Component{{Mean: 5e17, Variance: 1e34}}, []float64{1})
		So(err, ShouldBeNil)

		Convey("a grid whose point count overflows an int is rejected", func() {
			_, err := DensityGrid(wide, 0, 1e18, 0.1)
			So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)
		})

		Convey("a widened step keeps the grid within the limit", func() {
			step := GridStepFor(0, 1e18, 0.1)
			So(step, ShouldBeGreaterThan, 0.1)
			g, err := DensityGrid(wide, 0, 1e18, step)
			So(err, ShouldBeNil)
			So(len(g.X), ShouldBeLessThanOrEqualTo, maxGridPoints)
		})
	})

	Convey("Given an ordinary mixture and a vanishing step", t, func() {
		single, _ := NewMixture([]Component{{Mean: 5, Variance: 4}}, []float64{1})

		_, err := DensityGrid(single, 0, 10, 1e-300)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)
	})

	Convey("Given a range just over the point limit", t, func() {
		single, _ := NewMixture([]Component{{Mean: 1e5, Variance: 1e8}}, []float64{1})

		_, err := DensityGrid(single, 0, 2e5, 0.1)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)

		step := GridStepFor(0, 2e5, 0.1)
		g, err := DensityGrid(single, 0, 2e5, step)
		So(err, ShouldBeNil)
		So(len(g.X), ShouldBeLessThanOrEqualTo, maxGridPoints)
		So(GridStepFor(0, 10, 0.1), ShouldEqual, 0.1)
	})
}
