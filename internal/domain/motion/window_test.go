package motion

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/trajguard/internal/domain/verdict"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr(v float64) *float64 { return &v }

func TestNewSpeedWindow(t *testing.T) {
	Convey("Options are validated at construction", t, func() {
		_, err := NewSpeedWindow(WithUnitsPerMM(0))
		So(errors.Is(err, verdict.ErrInvalidOption), ShouldBeTrue)

		_, err = NewSpeedWindow(WithInterval(-0.1))
		So(errors.Is(err, verdict.ErrInvalidOption), ShouldBeTrue)

		w, err := NewSpeedWindow(WithUnitsPerMM(2), WithInterval(0.05), WithLogger(nil))
		So(err, ShouldBeNil)
		So(w.UnitsPerMM(), ShouldEqual, 2.0)
		So(w.Interval(), ShouldEqual, 0.05)
	})
}

func TestSpeedWindowQueries(t *testing.T) {
	ctx := context.Background()

	Convey("Given a window with no interval", t, func() {
		w, err := NewSpeedWindow()
		So(err, ShouldBeNil)
		w.Reset(ctx, ptr(0))

		Convey("speeds are undefined until a sample was evicted", func() {
			So(w.Push(ctx, 0, 0, 0), ShouldBeNil)
			_, ok := w.YSpeed()
			So(ok, ShouldBeFalse)
			_, ok = w.LastInterval()
			So(ok, ShouldBeFalse)
			tit, ok := w.TimeInTrial()
			So(ok, ShouldBeTrue)
			So(tit, ShouldEqual, 0.0)
		})

		Convey("consecutive samples define the speeds", func() {
			So(w.Push(ctx, 0, 0, 0), ShouldBeNil)
			So(w.Push(ctx, 0, 1, 1), ShouldBeNil)
			So(w.Push(ctx, 1, 1.5, 2), ShouldBeNil)

			ys, ok := w.YSpeed()
			So(ok, ShouldBeTrue)
			So(ys, ShouldAlmostEqual, 0.5)
			xs, _ := w.XSpeed()
			So(xs, ShouldAlmostEqual, 1)
			xy, _ := w.XYSpeed()
			So(xy, ShouldAlmostEqual, math.Hypot(1, 0.5))
			dt, _ := w.LastInterval()
			So(dt, ShouldEqual, 1.0)
			So(w.Len(), ShouldEqual, 1)
		})

		Convey("equal timestamps leave speeds undefined", func() {
			So(w.Push(ctx, 0, 0, 1), ShouldBeNil)
			So(w.Push(ctx, 0, 5, 1), ShouldBeNil)
			_, ok := w.YSpeed()
			So(ok, ShouldBeFalse)
			dt, ok := w.LastInterval()
			So(ok, ShouldBeTrue)
			So(dt, ShouldEqual, 0.0)
		})
	})

	Convey("Given a window with a calculation interval", t, func() {
		w, err := NewSpeedWindow(WithInterval(1), WithUnitsPerMM(10))
		So(err, ShouldBeNil)
		w.Reset(ctx, nil)

		So(w.Push(ctx, 0, 0, 5), ShouldBeNil)
		So(w.Push(ctx, 30, 40, 5.5), ShouldBeNil)

		Convey("the window is not full before the interval elapsed", func() {
			_, ok := w.XYSpeed()
			So(ok, ShouldBeFalse)
			tit, _ := w.TimeInTrial()
			So(tit, ShouldEqual, 0.5)
		})

		Convey("xy speed uses the path length, axis speeds the displacement", func() {
			So(w.Push(ctx, 0, 0, 6.5), ShouldBeNil)
			// pre-window sample is (3,4) at 5.5; window holds (0,0) at 6.5
			dt, _ := w.LastInterval()
			So(dt, ShouldEqual, 1.0)
			xs, _ := w.XSpeed()
			So(xs, ShouldAlmostEqual, -3)
			xy, _ := w.XYSpeed()
			So(xy, ShouldAlmostEqual, 5)

			samples := w.Samples()
			So(len(samples), ShouldEqual, 1)
			So(samples[0].Distance, ShouldAlmostEqual, 5)
		})
	})
}

func TestSpeedWindowContract(t *testing.T) {
	ctx := context.Background()

	Convey("Time going backwards is a contract error", t, func() {
		w, _ := NewSpeedWindow()
		w.Reset(ctx, ptr(1))

		err := w.Push(ctx, 0, 0, 0.5)
		So(errors.Is(err, verdict.ErrOutOfOrderTime), ShouldBeTrue)
		So(errors.Is(err, verdict.ErrContract), ShouldBeTrue)

		So(w.Push(ctx, 0, 0, 2), ShouldBeNil)
		So(errors.Is(w.Push(ctx, 0, 0, 1.9), verdict.ErrOutOfOrderTime), ShouldBeTrue)
		So(errors.Is(w.Push(ctx, 0, 0, math.NaN()), verdict.ErrContract), ShouldBeTrue)
	})

	Convey("Reset twice equals reset once", t, func() {
		a, _ := NewSpeedWindow(WithInterval(0.5))
		b, _ := NewSpeedWindow(WithInterval(0.5))
		for _, w := range []*SpeedWindow{a, b} {
			_ = w.Push(ctx, 1, 1, 1)
			_ = w.Push(ctx, 2, 2, 2)
		}
		a.Reset(ctx, ptr(0))
		b.Reset(ctx, ptr(0))
		b.Reset(ctx, ptr(0))
		So(a.Len(), ShouldEqual, 0)
		So(b.Len(), ShouldEqual, 0)
		for _, w := range []*SpeedWindow{a, b} {
			So(w.Push(ctx, 0, 0, 0), ShouldBeNil)
			So(w.Push(ctx, 0, 3, 1), ShouldBeNil)
		}
		sa, _ := a.YSpeed()
		sb, _ := b.YSpeed()
		So(sa, ShouldEqual, sb)
	})
}

func TestSpeedWindowProperties(t *testing.T) {
	ctx := context.Background()

	Convey("For random non-decreasing streams", t, func() {
		rng := rand.New(rand.NewSource(42))
		for round := 0; round < 20; round++ {
			w, _ := NewSpeedWindow(WithInterval(rng.Float64() * 0.2))
			w.Reset(ctx, ptr(0))
			var now float64
			for i := 0; i < 200; i++ {
				now += rng.Float64() * 0.03
				x, y := rng.NormFloat64()*10, rng.NormFloat64()*10
				So(w.Push(ctx, x, y, now), ShouldBeNil)

				newest, ok := w.Newest()
				So(ok, ShouldBeTrue)
				So(newest.T, ShouldEqual, now)
				So(newest.X, ShouldEqual, x)

				samples := w.Samples()
				for j := 1; j < len(samples); j++ {
					So(samples[j].T, ShouldBeGreaterThanOrEqualTo, samples[j-1].T)
				}

				xs, okX := w.XSpeed()
				ys, okY := w.YSpeed()
				xy, okXY := w.XYSpeed()
				if okX && okY && okXY {
					So(xy+1e-9, ShouldBeGreaterThanOrEqualTo, math.Abs(xs))
					So(xy+1e-9, ShouldBeGreaterThanOrEqualTo, math.Abs(ys))
				}
			}
		}
	})
}
