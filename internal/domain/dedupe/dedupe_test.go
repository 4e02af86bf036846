package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/winchain/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When it is created", func() {
			Convey("Then it should be empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a job id is new", func() {
			seen := d.SeenAndRecord(ctx, "job-1")

			Convey("Then it should return false and record it", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And it is recorded again", func() {
				seen := d.SeenAndRecord(ctx, "job-1")

				Convey("Then it should be reported as seen", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And it is unrecorded", func() {
				d.Unrecord(ctx, "job-1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
				})
			})
		})

		Convey("When an unknown id is unrecorded", func() {
			d.Unrecord(ctx, "ghost")

			Convey("Then nothing should change", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestDeduperEviction(t *testing.T) {
	Convey("Given a deduper bounded to three ids", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 4; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i))
		}

		Convey("Then the oldest id should have been evicted", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "job-4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "job-2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "job-1"), ShouldBeFalse)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i))
		}

		Convey("Then every id should be kept", func() {
			So(d.Size(), ShouldEqual, 1000)
			So(d.SeenAndRecord(ctx, "job-0"), ShouldBeTrue)
		})
	})
}

func TestDeduperConcurrency(t *testing.T) {
	Convey("Given many goroutines recording the same ids", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		var fresh atomic.Int64
		var wg sync.WaitGroup

		for g := 0; g < 16; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i)) {
						fresh.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id should be fresh exactly once", func() {
			So(fresh.Load(), ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
