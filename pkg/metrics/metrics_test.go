package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithRefreshInterval(3*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithMetricsEnabled(false),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(m.RefreshInterval(), ShouldEqual, 3*time.Second)
				So(m.Enabled(), ShouldBeFalse)
				m.lineTouches.Inc()
				expected := `
# HELP test_unit_line_touches_total Number of trials in which the target line was touched
# TYPE test_unit_line_touches_total counter
test_unit_line_touches_total{env="test"} 1
`
				So(testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_unit_line_touches_total"), ShouldBeNil)
			})
		})

		Convey("Zero-valued options keep the defaults", func() {
			m := NewManager(WithNamespace(""), WithRefreshInterval(0), WithPrometheusRegistry(registry))
			So(m.namespace, ShouldEqual, "trajguard")
			So(m.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the process-wide manager", t, func() {
		m := Default()
		So(m, ShouldNotBeNil)

		Convey("Validator failures are counted per validator and code", func() {
			before := testutil.ToFloat64(m.validatorFailures.WithLabelValues("inst_speed", "TooFast"))
			RecordValidatorFailure("inst_speed", "TooFast")
			RecordValidatorFailure("inst_speed", "TooFast")
			So(testutil.ToFloat64(m.validatorFailures.WithLabelValues("inst_speed", "TooFast")), ShouldEqual, before+2)
		})

		Convey("Frames are counted", func() {
			before := testutil.ToFloat64(m.framesProcessed)
			RecordFrames(4, 40*time.Microsecond)
			RecordFrames(0, time.Second)
			So(testutil.ToFloat64(m.framesProcessed), ShouldEqual, before+4)
		})

		Convey("Timeline and trial outcomes are counted", func() {
			before := testutil.ToFloat64(m.timelineOps.WithLabelValues("cancelled"))
			RecordTimelineOperation("cancelled")
			So(testutil.ToFloat64(m.timelineOps.WithLabelValues("cancelled")), ShouldEqual, before+1)

			before = testutil.ToFloat64(m.trialOutcomes.WithLabelValues("failed"))
			RecordTrialOutcome("failed")
			So(testutil.ToFloat64(m.trialOutcomes.WithLabelValues("failed")), ShouldEqual, before+1)
		})

		Convey("Gauges take the last value", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.7)
			UpdateStoredResults(3)
			So(testutil.ToFloat64(m.queueSize), ShouldEqual, 7.0)
			So(testutil.ToFloat64(m.queueUtilization), ShouldEqual, 0.7)
			So(testutil.ToFloat64(m.storedResults), ShouldEqual, 3.0)
		})

		Convey("The remaining recorders do not panic", func() {
			So(func() {
				RecordContractError("motion")
				RecordLineTouch()
				RecordTrialDuplicate()
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				RecordWorkerProcessingLatency(2.5)
				RecordWorkerError()
				UpdateReplayThroughput(12)
				RecordHTTPRequest("/trials", "POST", "202")
				RecordHTTPRequestDuration("/trials", "POST", "202", 1.5)
				UpdateSystemGoroutineCount(10)
				UpdateSystemMemoryUsage(1 << 20)
			}, ShouldNotPanic)
		})

		Convey("The custom registry exposes the collectors", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
