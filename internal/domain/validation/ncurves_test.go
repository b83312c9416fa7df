package validation

import (
	"context"
	"testing"

	"github.com/okian/trajguard/internal/domain/verdict"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNCurves(t *testing.T) {
	ctx := context.Background()

	Convey("Y-only or X-only axes are required", t, func() {
		_, err := NewNCurves(NCurvesConfig{Axis: AxisXY})
		So(err, ShouldEqual, ErrUnsupportedAxis)
		_, err = NewNCurves(NCurvesConfig{Axis: AxisX, MaxCurvesPerTrial: -1})
		So(err, ShouldNotBeNil)
	})

	Convey("Given an x-axis validator allowing one curve", t, func() {
		v, err := NewNCurves(NCurvesConfig{Axis: AxisX, MaxCurvesPerTrial: 1, MinDistance: 2})
		So(err, ShouldBeNil)
		v.Reset(ctx, ptr(0))

		xs := []float64{0, 5, 10, 9, 7, 3, 4}
		for i, x := range xs {
			res, err := v.Update(ctx, x, 0, float64(i))
			So(err, ShouldBeNil)
			So(res.Failed(), ShouldBeFalse)
		}
		So(v.Curves(), ShouldEqual, 1)

		Convey("a second reversal past the minimal distance fails", func() {
			res, err := v.Update(ctx, 6, 0, 10)
			So(err, ShouldBeNil)
			So(res.Code, ShouldEqual, verdict.TooManyCurves)
			So(res.Args["curves"], ShouldEqual, 2.0)
		})

		Convey("reset clears the count", func() {
			v.Reset(ctx, ptr(0))
			v.Reset(ctx, ptr(0))
			So(v.Curves(), ShouldEqual, 0)
		})
	})

	Convey("Y movement is ignored on the x axis", t, func() {
		v, _ := NewNCurves(NCurvesConfig{Axis: AxisX})
		v.Reset(ctx, nil)
		res := feed(ctx, v, xyt{0, 0, 0}, xyt{0, 10, 1}, xyt{0, -10, 2}, xyt{0, 10, 3})
		So(res.Failed(), ShouldBeFalse)
		So(v.Curves(), ShouldEqual, 0)
	})
}
