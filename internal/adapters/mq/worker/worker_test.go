package worker_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/winchain/internal/adapters/mq/queue"
	worker "github.com/okian/winchain/internal/adapters/mq/worker"
	model "github.com/okian/winchain/internal/domain/model"
	logging "github.com/okian/winchain/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// mockRebuilder records rebuild calls and can block them until released.
type mockRebuilder struct {
	mu      sync.Mutex
	reasons []string
	err     error
	gate    chan struct{} // nil means never block
	started chan struct{}
}

func newMockRebuilder() *mockRebuilder {
	return &mockRebuilder{started: make(chan struct{}, 16)}
}

func (m *mockRebuilder) Rebuild(ctx context.Context, reason string) error {
	m.mu.Lock()
	m.reasons = append(m.reasons, reason)
	gate := m.gate
	err := m.err
	m.mu.Unlock()

	m.started <- struct{}{}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *mockRebuilder) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reasons...)
}

func req(id string) model.RefreshRequest {
	return model.RefreshRequest{JobID: id, Reason: "ingest", RequestedAt: time.Now()}
}

// syncBuffer is a bytes.Buffer safe for the worker goroutine to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) records() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		var rec map[string]any
		if json.Unmarshal([]byte(line), &rec) == nil {
			out = append(out, rec)
		}
	}
	return out
}

func waitStarted(m *mockRebuilder) bool {
	select {
	case <-m.started:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func TestRefreshWorker(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a refresh worker on an in-memory queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		rb := newMockRebuilder()
		w := worker.NewRefreshWorker(q, rb, worker.WithName("test-worker"))
		go w.Run(ctx)

		convey.Convey("When one request is queued", func() {
			convey.So(q.Enqueue(ctx, req("job-1")), convey.ShouldBeNil)

			convey.Convey("Then exactly one rebuild should run", func() {
				convey.So(waitStarted(rb), convey.ShouldBeTrue)
				convey.So(rb.calls(), convey.ShouldResemble, []string{worker.ReasonRefresh})
			})
		})

		convey.Convey("When requests arrive during a rebuild", func() {
			gate := make(chan struct{})
			rb.mu.Lock()
			rb.gate = gate
			rb.mu.Unlock()

			convey.So(q.Enqueue(ctx, req("job-1")), convey.ShouldBeNil)
			convey.So(waitStarted(rb), convey.ShouldBeTrue)
			for i := 2; i <= 4; i++ {
				convey.So(q.Enqueue(ctx, req(fmt.Sprintf("job-%d", i))), convey.ShouldBeNil)
			}
			close(gate)

			convey.Convey("Then they should be folded into one follow-up rebuild", func() {
				convey.So(waitStarted(rb), convey.ShouldBeTrue)
				time.Sleep(50 * time.Millisecond)
				convey.So(rb.calls(), convey.ShouldHaveLength, 2)
				convey.So(q.Len(ctx), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a rebuild fails", func() {
			rb.mu.Lock()
			rb.err = errors.New("storage down")
			rb.mu.Unlock()
			convey.So(q.Enqueue(ctx, req("job-1")), convey.ShouldBeNil)
			convey.So(waitStarted(rb), convey.ShouldBeTrue)

			convey.Convey("Then the worker should keep serving requests", func() {
				convey.So(q.Enqueue(ctx, req("job-2")), convey.ShouldBeNil)
				convey.So(waitStarted(rb), convey.ShouldBeTrue)
				convey.So(rb.calls(), convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then Run should return and a second shutdown should not panic", func() {
				convey.So(err, convey.ShouldBeNil)
				_, open := <-w.Done()
				convey.So(open, convey.ShouldBeFalse)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is closed", func() {
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then the worker should stop", func() {
				select {
				case <-w.Done():
				case <-time.After(2 * time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestRefreshWorkerSchedule(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a worker with a short rebuild interval", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rb := newMockRebuilder()
		w := worker.NewRefreshWorker(queue.NewInMemoryQueue(), rb, worker.WithInterval(20*time.Millisecond))
		go w.Run(ctx)

		convey.Convey("Then scheduled rebuilds should run without requests", func() {
			convey.So(waitStarted(rb), convey.ShouldBeTrue)
			convey.So(rb.calls()[0], convey.ShouldEqual, worker.ReasonSchedule)
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestRefreshWorkerShutdownTimeout(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a worker stuck in a rebuild", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		q := queue.NewInMemoryQueue()
		rb := newMockRebuilder()
		rb.gate = make(chan struct{})
		w := worker.NewRefreshWorker(q, rb)
		go w.Run(ctx)
		convey.So(q.Enqueue(ctx, req("slow")), convey.ShouldBeNil)
		convey.So(waitStarted(rb), convey.ShouldBeTrue)

		convey.Convey("When shutdown has a short deadline", func() {
			sctx, scancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer scancel()
			err := w.Shutdown(sctx)

			convey.Convey("Then it should report the timeout", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
				cancel()
				<-w.Done()
			})
		})
	})
}

func TestRefreshWorkerName(t *testing.T) {
	convey.Convey("Given a named worker logging as json", t, func() {
		out := &syncBuffer{}
		convey.So(logging.Init(logging.WithFormat("json"), logging.WithOutput(out)), convey.ShouldBeNil)
		defer func() { _ = logging.Init() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue()
		rb := newMockRebuilder()
		w := worker.NewRefreshWorker(q, rb, worker.WithName("nightly"))
		go w.Run(ctx)

		convey.So(q.Enqueue(ctx, req("job-1")), convey.ShouldBeNil)
		convey.So(waitStarted(rb), convey.ShouldBeTrue)
		convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)

		convey.Convey("Then every worker log line should carry the name", func() {
			msgs := map[string]bool{}
			for _, rec := range out.records() {
				convey.So(rec["worker"], convey.ShouldEqual, "nightly")
				convey.So(rec["component"], convey.ShouldEqual, "refresh-worker")
				msgs[rec["msg"].(string)] = true
			}
			convey.So(msgs["refresh worker started"], convey.ShouldBeTrue)
			convey.So(msgs["rebuild requested"], convey.ShouldBeTrue)
			convey.So(msgs["refresh worker stopped"], convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a worker without a name", t, func() {
		out := &syncBuffer{}
		convey.So(logging.Init(logging.WithFormat("json"), logging.WithOutput(out)), convey.ShouldBeNil)
		defer func() { _ = logging.Init() }()

		w := worker.NewRefreshWorker(queue.NewInMemoryQueue(), newMockRebuilder(), worker.WithName(""))
		go w.Run(context.Background())
		convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)

		convey.Convey("Then it should log under the default name", func() {
			recs := out.records()
			convey.So(recs, convey.ShouldNotBeEmpty)
			convey.So(recs[0]["worker"], convey.ShouldEqual, "refresh-worker")
		})
	})
}
