package loadgen

import (
	"context"
	"testing"

	service "github.com/okian/trajguard/internal/app"
	"github.com/okian/trajguard/internal/config"
	"github.com/okian/trajguard/internal/domain/model"
	"github.com/okian/trajguard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		gen := NewGenerator(42)

		Convey("Samples move forward in time and start at the origin", func() {
			for _, k := range Kinds() {
				tr := gen.Trial(k)
				So(tr.Kind, ShouldEqual, k)
				So(len(tr.Trajectory.Samples), ShouldBeGreaterThan, 2)
				So(tr.Trajectory.Samples[0].Y, ShouldEqual, 0)
				for i := 1; i < len(tr.Trajectory.Samples); i++ {
					So(tr.Trajectory.Samples[i].T, ShouldBeGreaterThan, tr.Trajectory.Samples[i-1].T)
				}
				So(*tr.Trajectory.Target, ShouldBeBetweenOrEqual, targetMin, targetMax)
			}
		})

		Convey("Trial ids are unique", func() {
			seen := map[string]bool{}
			for i := 0; i < 50; i++ {
				id := gen.Next().Trajectory.TrialID
				So(seen[id], ShouldBeFalse)
				seen[id] = true
			}
		})

		Convey("The same seed yields the same shapes", func() {
			a, b := NewGenerator(7).Next(), NewGenerator(7).Next()
			So(a.Kind, ShouldEqual, b.Kind)
			So(*a.Trajectory.Target, ShouldEqual, *b.Trajectory.Target)
			So(len(a.Trajectory.Samples), ShouldEqual, len(b.Trajectory.Samples))
		})

		Convey("An unknown kind falls back to a straight climb", func() {
			So(gen.Trial("spiral").Kind, ShouldEqual, KindStraight)
		})
	})
}

func TestGeneratedOutcomes(t *testing.T) {
	Convey("Given pipelines built from the default configuration", t, func() {
		ctx := context.Background()
		builder, err := service.NewPipelineBuilder(config.New(ctx), logger.Nop())
		So(err, ShouldBeNil)
		p, err := builder.Build()
		So(err, ShouldBeNil)
		gen := NewGenerator(3)

		Convey("Every kind replays to its expected outcome", func() {
			for _, k := range Kinds() {
				for i := 0; i < 10; i++ {
					tr := gen.Trial(k)
					res, err := p.Replay(ctx, tr.Trajectory)
					So(err, ShouldBeNil)
					So(res.Outcome, ShouldEqual, tr.Expected)
				}
			}
		})

		Convey("Straight climbs land close to their target", func() {
			tr := gen.Trial(KindStraight)
			res, err := p.Replay(ctx, tr.Trajectory)
			So(err, ShouldBeNil)
			So(res.Outcome, ShouldEqual, model.OutcomeSucceeded)
			So(res.EndpointError, ShouldNotBeNil)
			So(*res.EndpointError, ShouldAlmostEqual, 0, 2)
		})
	})
}
