package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/winchain/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(cfg.PageSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.LazyBuild, convey.ShouldBeTrue)
			convey.So(cfg.RebuildOnStart, convey.ShouldBeFalse)
			convey.So(cfg.RefreshInterval(), convey.ShouldEqual, time.Duration(0))
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with a single bad setting", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"zero page size":     func(c *config.Config) { c.PageSize = 0 },
			"negative progress":  func(c *config.Config) { c.ProgressEvery = -1 },
			"zero queue":         func(c *config.Config) { c.RefreshQueueSize = 0 },
			"zero dedupe":        func(c *config.Config) { c.DedupeSize = 0 },
			"negative interval":  func(c *config.Config) { c.RefreshIntervalSec = -5 },
			"no snapshot dir":    func(c *config.Config) { c.SnapshotDir = "" },
			"unknown driver":     func(c *config.Config) { c.StorageDriver = "mongo" },
			"sqlite without dsn": func(c *config.Config) { c.StorageDSN = "" },
			"unknown log format": func(c *config.Config) { c.LogFormat = "xml" },
		}

		convey.Convey("Then each should be rejected as invalid", func() {
			for _, mutate := range cases {
				cfg := config.New()
				mutate(cfg)

				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When the memory driver has no dsn", func() {
			cfg := config.New()
			cfg.StorageDriver = config.DriverMemory
			cfg.StorageDSN = ""

			convey.Convey("Then it should be accepted", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the snapshot is in memory without a dir", func() {
			cfg := config.New()
			cfg.SnapshotInMemory = true
			cfg.SnapshotDir = ""

			convey.Convey("Then it should be accepted", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
