package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/trajguard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.Line.MaxValue, convey.ShouldEqual, 100.0)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TRAJGUARD_ADDR", ":8080")
			_ = os.Setenv("TRAJGUARD_QUEUE_SIZE", "500")
			_ = os.Setenv("TRAJGUARD_UNITS_PER_MM", "3.5")
			_ = os.Setenv("TRAJGUARD_VALIDATORS__INST_SPEED__MAX_SPEED", "900")
			_ = os.Setenv("TRAJGUARD_LINE__UNDIRECTED", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults, including nested keys", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.UnitsPerMM, convey.ShouldEqual, 3.5)
				convey.So(cfg.Validators.InstSpeed.MaxSpeed, convey.ShouldEqual, 900.0)
				convey.So(cfg.Validators.InstSpeed.MinSpeed, convey.ShouldEqual, 20.0)
				convey.So(cfg.Line.Undirected, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9090"
worker_count: 3
trial:
  min_movement_time: 0.4
validators:
  global_speed:
    enabled: true
    milestones:
      - time: 0.25
        distance: 0.1
      - time: 0.75
        distance: 0.9
  zigzag:
    max_curves_per_trial: 2
line:
  orientation: vertical
  mid_x: 300
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TRAJGUARD_CONFIG", tmpFile)
			_ = os.Setenv("TRAJGUARD_WORKER_COUNT", "7")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the file is merged with defaults and env wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 7)
				convey.So(cfg.Trial.MinMovementTime, convey.ShouldEqual, 0.4)
				convey.So(cfg.Trial.MaxDuration, convey.ShouldEqual, 4.0)
				convey.So(cfg.Validators.GlobalSpeed.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Validators.GlobalSpeed.Milestones, convey.ShouldHaveLength, 2)
				convey.So(cfg.Validators.GlobalSpeed.Milestones[1].DistanceFraction, convey.ShouldEqual, 0.9)
				convey.So(cfg.Validators.Zigzag.MaxCurvesPerTrial, convey.ShouldEqual, 2)
				convey.So(cfg.Validators.Zigzag.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Line.Orientation, convey.ShouldEqual, "vertical")
				convey.So(cfg.Line.MidX, convey.ShouldEqual, 300.0)
				convey.So(cfg.Line.MidY, convey.ShouldEqual, 600.0)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("TRAJGUARD_CONFIG", "/nonexistent/trajguard.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the YAML is malformed", func() {
			tmpFile := createTempConfigFile("addr: [unterminated\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TRAJGUARD_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a numeric env var does not parse", func() {
			_ = os.Setenv("TRAJGUARD_QUEUE_SIZE", "lots")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the addr is cleared", func() {
			_ = os.Setenv("TRAJGUARD_ADDR", "")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"TRAJGUARD_CONFIG",
		"TRAJGUARD_ADDR",
		"TRAJGUARD_QUEUE_SIZE",
		"TRAJGUARD_WORKER_COUNT",
		"TRAJGUARD_UNITS_PER_MM",
		"TRAJGUARD_VALIDATORS__INST_SPEED__MAX_SPEED",
		"TRAJGUARD_LINE__UNDIRECTED",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "trajguard-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
