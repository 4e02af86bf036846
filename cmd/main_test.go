package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/winchain/internal/domain/types"
)

// execute runs the root command with args and returns what it printed.
func execute(ctx context.Context, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func useTempStorage(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WINCHAIN_CONFIG", "")
	t.Setenv("WINCHAIN_STORAGE_DRIVER", "sqlite")
	t.Setenv("WINCHAIN_STORAGE_DSN", "file:"+filepath.Join(dir, "winchain.db")+"?_pragma=busy_timeout(5000)")
	t.Setenv("WINCHAIN_SNAPSHOT_DIR", filepath.Join(dir, "snapshot"))
	t.Setenv("WINCHAIN_SNAPSHOT_IN_MEMORY", "false")
	t.Setenv("WINCHAIN_LOG_LEVEL", "error")
	t.Setenv("WINCHAIN_PROGRESS_EVERY", "0")
	t.Setenv("WINCHAIN_ADDR", "127.0.0.1:0")
}

func TestCommands(t *testing.T) {
	convey.Convey("Given an empty SQLite database", t, func() {
		useTempStorage(t)
		ctx := context.Background()

		convey.Convey("When it is seeded and rebuilt", func() {
			out, err := execute(ctx, "seed", "--players", "10", "--games", "200", "--seed", "3")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "seeded 10 players")

			out, err = execute(ctx, "rebuild")
			convey.So(err, convey.ShouldBeNil)
			var stats types.Stats
			convey.So(json.Unmarshal([]byte(out), &stats), convey.ShouldBeNil)
			convey.So(stats.State, convey.ShouldEqual, "LOADED")
			convey.So(stats.Rebuilds, convey.ShouldEqual, 1)
			convey.So(stats.WinNodes, convey.ShouldBeGreaterThan, 1)
			convey.So(stats.NetNodes, convey.ShouldEqual, stats.WinNodes)

			convey.Convey("Then chain resolves from the persisted snapshot", func() {
				out, err := execute(ctx, "chain", "1", "1", "--json")
				convey.So(err, convey.ShouldBeNil)
				var res types.ChainResult
				convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
				convey.So(res.Found, convey.ShouldBeTrue)
				convey.So(len(res.Chain), convey.ShouldEqual, 1)
				convey.So(res.Chain[0].Name, convey.ShouldNotBeEmpty)

				out, err = execute(ctx, "chain", "1", "999", "--count-all")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "no connection from ")
				convey.So(out, convey.ShouldContainSubstring, "(#1, ")
				convey.So(out, convey.ShouldContainSubstring, " to 999")
			})
		})

		convey.Convey("When chain gets a non-numeric id", func() {
			_, err := execute(ctx, "chain", "one", "2")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "invalid player id")
		})

		convey.Convey("When chain gets the wrong number of ids", func() {
			_, err := execute(ctx, "chain", "1")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the server runs until its context ends", func() {
			sctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
			defer cancel()
			_, err := execute(sctx, "serve")
			convey.So(err, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given the memory driver", t, func() {
		useTempStorage(t)
		t.Setenv("WINCHAIN_STORAGE_DRIVER", "memory")

		convey.Convey("Then seeding is refused", func() {
			_, err := execute(context.Background(), "seed")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then chain builds lazily and finds nothing", func() {
			out, err := execute(context.Background(), "chain", "1", "2")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "no connection from 1 to 2")
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		useTempStorage(t)
		t.Setenv("WINCHAIN_PAGE_SIZE", "0")

		_, err := execute(context.Background(), "rebuild")
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "load config")
	})
}

func TestFormatChain(t *testing.T) {
	convey.Convey("formatChain renders names when known", t, func() {
		res := types.ChainResult{Found: true, Chain: []types.ChainLink{
			{ID: 1, Name: "Anna", Rating: 1500},
			{ID: 7},
		}}
		convey.So(formatChain(res), convey.ShouldEqual, "Anna (#1, 1500) -> 7")
		convey.So(formatChain(types.ChainResult{}), convey.ShouldEqual, "no connection found")

		res = types.ChainResult{
			From:  &types.ChainLink{ID: 3},
			To:    &types.ChainLink{ID: 1, Name: "Anna", Rating: 1500},
			Chain: []types.ChainLink{},
		}
		convey.So(formatChain(res), convey.ShouldEqual, "no connection from 3 to Anna (#1, 1500)")
	})

	convey.Convey("The metrics updaters run without a service loop", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
