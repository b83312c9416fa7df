package loadgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/trajguard/internal/adapters/http/api"
	service "github.com/okian/trajguard/internal/app"
	"github.com/okian/trajguard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		svc := service.New(service.WithWorkerCount(2), service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		out := filepath.Join(t.TempDir(), "trials", "out.json")
		cfg := &Config{
			BaseURL:    srv.URL,
			NumTrials:  40,
			Workers:    4,
			Timeout:    5 * time.Second,
			Settle:     10 * time.Second,
			Seed:       11,
			OutputFile: out,
		}

		Convey("When a load run is executed", func() {
			stats, err := Run(ctx, logger.Nop(), cfg)

			Convey("Then every trial is accepted and matches its expected outcome", func() {
				So(err, ShouldBeNil)
				So(stats.TrialsGenerated, ShouldEqual, 40)
				So(stats.TrialsAccepted, ShouldEqual, 40)
				So(stats.ResultsMissing, ShouldEqual, 0)
				So(stats.ResultsMatched, ShouldEqual, 40)
			})

			Convey("And the trajectories are saved", func() {
				info, err := os.Stat(out)
				So(err, ShouldBeNil)
				So(info.Size(), ShouldBeGreaterThan, 0)
			})
		})
	})

	Convey("Given no service", t, func() {
		cfg := &Config{BaseURL: "http://127.0.0.1:1", NumTrials: 1, Workers: 1, Timeout: time.Second}

		Convey("Then the health check fails the run", func() {
			_, err := Run(context.Background(), logger.Nop(), cfg)
			So(err, ShouldNotBeNil)
		})
	})
}
