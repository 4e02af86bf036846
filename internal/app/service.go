// Package app owns the live win and net-margin graphs: it loads or builds
// them, swaps in rebuilt snapshots and answers chain queries.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/okian/winchain/internal/adapters/mq/queue"
	"github.com/okian/winchain/internal/adapters/mq/worker"
	"github.com/okian/winchain/internal/adapters/repository"
	"github.com/okian/winchain/internal/adapters/snapshot"
	"github.com/okian/winchain/internal/domain/dedupe"
	"github.com/okian/winchain/internal/domain/types"
	"github.com/okian/winchain/internal/domain/wingraph"
	"github.com/okian/winchain/pkg/logger"
	"github.com/okian/winchain/pkg/metrics"
)

// Rebuild reasons besides the worker's refresh and schedule.
const (
	ReasonStartup = "startup"
	ReasonLazy    = "lazy"
	ReasonCLI     = "cli"
)

// SnapshotStore persists committed snapshots. Load returns
// snapshot.ErrNotFound when nothing was saved yet.
type SnapshotStore interface {
	Save(ctx context.Context, snap *wingraph.Snapshot) (winsBytes, netBytes int, err error)
	Load(ctx context.Context) (*wingraph.Snapshot, error)
}

// Service holds the current graphs behind an atomic pointer. Readers never
// block on a rebuild; they see the old snapshot until the new one is swapped
// in.
type Service struct {
	source    wingraph.GameSource
	players   repository.PlayerLookup
	snapshots SnapshotStore

	current atomic.Pointer[wingraph.Snapshot]
	state   atomic.Int32

	rebuildMu sync.Mutex
	initGroup singleflight.Group

	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	worker  *worker.RefreshWorker

	pageSize        int
	progressEvery   int
	lazyBuild       bool
	rebuildOnStart  bool
	queueSize       int
	dedupeSize      int
	refreshInterval time.Duration
	now             func() time.Time

	statsMu        sync.Mutex
	lastRebuild    time.Duration
	lastError      string
	rebuilds       int64
	failedRebuilds int64

	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New creates a Service reading games from source. players may be nil, in
// which case resolved chains carry ids only.
func New(source wingraph.GameSource, players repository.PlayerLookup, opts ...Option) *Service {
	s := &Service{
		source:        source,
		players:       players,
		pageSize:      defaultPageSize,
		progressEvery: defaultProgressEvery,
		lazyBuild:     true,
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		now:           time.Now,
		logger:        logger.Get().Named("graph-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	metrics.UpdateServiceState(int(StateUninitialized))
	return s
}

// Start runs the refresh worker and tries to load the persisted snapshot.
// A startup rebuild is queued when configured, or when nothing could be
// loaded and lazy building is off.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting graph service",
		logger.Int("page_size", s.pageSize),
		logger.Bool("lazy_build", s.lazyBuild),
		logger.Bool("rebuild_on_start", s.rebuildOnStart),
		logger.Int("refresh_queue_size", s.queueSize),
		logger.Duration("refresh_interval", s.refreshInterval),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.worker = worker.NewRefreshWorker(s.queue, s,
		worker.WithName("graph-refresh"),
		worker.WithInterval(s.refreshInterval),
		worker.WithLogger(s.logger.Named("refresh-worker")),
	)
	go s.worker.Run(runCtx)
	s.started = true

	loadErr := s.Load(ctx)
	if loadErr != nil {
		s.logger.Info(ctx, "no usable snapshot at startup", logger.Error(loadErr))
	}

	if s.rebuildOnStart || (loadErr != nil && !s.lazyBuild) {
		r := queue.Request{JobID: uuid.NewString(), Reason: ReasonStartup, RequestedAt: s.now()}
		if err := s.queue.Enqueue(ctx, r); err != nil {
			return fmt.Errorf("queue startup rebuild: %w", err)
		}
	}
	return nil
}

// Stop shuts the worker down, waiting for an in-flight rebuild until ctx
// expires, and closes the refresh queue.
func (s *Service) Stop(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	s.logger.Info(ctx, "stopping graph service")
	err := s.worker.Shutdown(ctx)
	s.cancel()
	if cerr := s.queue.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Load replaces the live graphs with the persisted snapshot. It waits for
// any running rebuild so a stale snapshot never replaces a newer one.
func (s *Service) Load(ctx context.Context) error {
	return s.load(ctx, false)
}

// load reads the persisted snapshot under rebuildMu. With onlyIfEmpty set it
// leaves an already published snapshot alone.
func (s *Service) load(ctx context.Context, onlyIfEmpty bool) error {
	if s.snapshots == nil {
		metrics.RecordSnapshotLoad("missing")
		return snapshot.ErrNotFound
	}

	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	if onlyIfEmpty && s.current.Load() != nil {
		return nil
	}

	snap, err := s.snapshots.Load(ctx)
	switch {
	case err == nil:
		metrics.RecordSnapshotLoad("ok")
	case errors.Is(err, snapshot.ErrNotFound):
		metrics.RecordSnapshotLoad("missing")
		return err
	case errors.Is(err, wingraph.ErrSnapshotCorrupt):
		metrics.RecordSnapshotLoad("corrupt")
		metrics.RecordErrorByComponent("snapshot", "corrupt")
		s.logger.Warn(ctx, "persisted snapshot is corrupt", logger.Error(err))
		return err
	default:
		metrics.RecordSnapshotLoad("error")
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.publish(snap)
	s.logger.Info(ctx, "snapshot loaded",
		logger.String("generation", snap.Meta.Generation),
		logger.Int("win_nodes", snap.Meta.WinNodes),
		logger.Int("win_edges", snap.Meta.WinEdges),
		logger.Int("net_edges", snap.Meta.NetEdges),
	)
	return nil
}

// Rebuild scans storage, builds both graphs, persists them and swaps them in.
// Rebuilds are serialized. On any failure the previous snapshot stays live
// and durable.
func (s *Service) Rebuild(ctx context.Context, reason string) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	if s.state.CompareAndSwap(int32(StateLoaded), int32(StateRebuilding)) {
		metrics.UpdateServiceState(int(StateRebuilding))
		defer func() {
			s.state.Store(int32(StateLoaded))
			metrics.UpdateServiceState(int(StateLoaded))
		}()
	}

	start := time.Now()
	s.logger.Info(ctx, "rebuilding graphs", logger.String("reason", reason))

	opts := []wingraph.Option{wingraph.WithClock(s.now)}
	if s.progressEvery > 0 {
		opts = append(opts, wingraph.WithProgress(s.progressEvery, func(scanned int64) {
			s.logger.Info(ctx, "build progress", logger.Int64("games_scanned", scanned))
		}))
	}

	snap, err := wingraph.Build(ctx, s.source, s.pageSize, opts...)
	if err != nil {
		return s.rebuildFailed(ctx, reason, start, fmt.Errorf("build graphs: %w", err))
	}

	if s.snapshots != nil {
		winsBytes, netBytes, err := s.snapshots.Save(ctx, snap)
		if err != nil {
			return s.rebuildFailed(ctx, reason, start, fmt.Errorf("persist snapshot: %w", err))
		}
		metrics.RecordSnapshotWrite(winsBytes, netBytes)
	}

	s.publish(snap)
	took := time.Since(start)

	s.statsMu.Lock()
	s.rebuilds++
	s.lastRebuild = took
	s.lastError = ""
	s.statsMu.Unlock()

	metrics.RecordRebuild(true, float64(took.Milliseconds()))
	metrics.AddGamesScanned(int(snap.Meta.GamesScanned))
	s.logger.Info(ctx, "graphs rebuilt",
		logger.String("reason", reason),
		logger.String("generation", snap.Meta.Generation),
		logger.Int64("games_scanned", snap.Meta.GamesScanned),
		logger.Int64("games_skipped", snap.Meta.GamesSkipped),
		logger.Int("win_edges", snap.Meta.WinEdges),
		logger.Int("net_edges", snap.Meta.NetEdges),
		logger.Duration("took", took),
	)
	return nil
}

func (s *Service) rebuildFailed(ctx context.Context, reason string, start time.Time, err error) error {
	took := time.Since(start)

	s.statsMu.Lock()
	s.failedRebuilds++
	s.lastRebuild = took
	s.lastError = err.Error()
	s.statsMu.Unlock()

	metrics.RecordRebuild(false, float64(took.Milliseconds()))
	metrics.RecordErrorByComponent("service", "rebuild_failed")
	s.logger.Error(ctx, "rebuild failed, keeping previous snapshot",
		logger.String("reason", reason),
		logger.Duration("took", took),
		logger.Error(err),
	)
	return err
}

// publish makes snap the live snapshot.
func (s *Service) publish(snap *wingraph.Snapshot) {
	s.current.Store(snap)
	if s.state.CompareAndSwap(int32(StateUninitialized), int32(StateLoaded)) {
		metrics.UpdateServiceState(int(StateLoaded))
	}
	metrics.UpdateGraphSize(string(wingraph.KindWins), snap.Wins.Order(), snap.Wins.Size())
	metrics.UpdateGraphSize(string(wingraph.KindNet), snap.Net.Order(), snap.Net.Size())
	metrics.MarkSwap(snap.Meta.BuiltAt)
}

// ensure returns the live snapshot, loading or building it on first use.
// Concurrent first callers share one initialization.
func (s *Service) ensure(ctx context.Context) (*wingraph.Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}

	v, err, _ := s.initGroup.Do("init", func() (any, error) {
		if snap := s.current.Load(); snap != nil {
			return snap, nil
		}
		// One caller going away must not fail the others.
		ictx := context.WithoutCancel(ctx)

		loadErr := s.load(ictx, true)
		if loadErr == nil {
			return s.current.Load(), nil
		}
		if !s.lazyBuild {
			return nil, fmt.Errorf("%w: %w", ErrGraphUnavailable, loadErr)
		}
		if snap := s.current.Load(); snap != nil {
			return snap, nil
		}
		if err := s.Rebuild(ictx, ReasonLazy); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGraphUnavailable, err)
		}
		return s.current.Load(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*wingraph.Snapshot), nil
}

// FindChain returns the shortest chain of player ids from -> to on the win
// graph, or on the net-margin graph when useNetMargin is set. found is false
// when either player is unknown or no path exists.
func (s *Service) FindChain(ctx context.Context, from, to int64, useNetMargin bool) ([]int64, bool, error) {
	kind := string(wingraph.KindWins)
	if useNetMargin {
		kind = string(wingraph.KindNet)
	}
	start := time.Now()
	defer func() {
		metrics.RecordChainLatency(kind, float64(time.Since(start).Microseconds())/1000)
	}()

	snap, err := s.ensure(ctx)
	if err != nil {
		metrics.RecordChainQuery(kind, "unavailable")
		return nil, false, err
	}

	chain, found, err := snap.FindChain(from, to, useNetMargin)
	if err != nil {
		metrics.RecordChainQuery(kind, "error")
		return nil, false, fmt.Errorf("find chain: %w", err)
	}
	if !found {
		g := snap.Select(useNetMargin)
		if !g.HasNode(from) || !g.HasNode(to) {
			metrics.RecordChainQuery(kind, "unknown_player")
		} else {
			metrics.RecordChainQuery(kind, "no_path")
		}
		return nil, false, nil
	}
	metrics.RecordChainQuery(kind, "found")
	metrics.RecordChainLength(kind, len(chain))
	return chain, true, nil
}

// Chain resolves a chain and attaches player display data. Players missing
// from storage appear with their id only.
func (s *Service) Chain(ctx context.Context, from, to int64, countAll bool) (types.ChainResult, error) {
	res := types.ChainResult{CountAll: countAll, Chain: []types.ChainLink{}}

	ids, found, err := s.FindChain(ctx, from, to, countAll)
	if err != nil {
		return res, err
	}

	fromLink, err := s.link(ctx, from)
	if err != nil {
		return res, err
	}
	toLink, err := s.link(ctx, to)
	if err != nil {
		return res, err
	}
	if !found {
		res.From, res.To = &fromLink, &toLink
		return res, nil
	}

	chain := make([]types.ChainLink, 0, len(ids))
	for _, id := range ids {
		var l types.ChainLink
		switch id {
		case from:
			l = fromLink
		case to:
			l = toLink
		default:
			if l, err = s.link(ctx, id); err != nil {
				return res, err
			}
		}
		chain = append(chain, l)
	}
	res.Found = true
	res.From, res.To = &fromLink, &toLink
	res.Chain = chain
	return res, nil
}

// link describes one player. Players missing from storage keep only their id.
func (s *Service) link(ctx context.Context, id int64) (types.ChainLink, error) {
	l := types.ChainLink{ID: id}
	if s.players == nil {
		return l, nil
	}
	p, err := s.players.Player(ctx, id)
	switch {
	case err == nil:
		l.Name = p.Name
		l.Rating = p.Rating
	case errors.Is(err, repository.ErrNotFound):
	default:
		return l, fmt.Errorf("lookup player %d: %w", id, err)
	}
	return l, nil
}

// RequestRefresh queues a rebuild for an ingestion job. An empty jobID gets
// a generated one. A job id seen before is acknowledged as a duplicate and
// queues nothing. queue.ErrFull reports backpressure.
func (s *Service) RequestRefresh(ctx context.Context, jobID string) (types.RefreshStatus, error) {
	s.runMu.Lock()
	started := s.started
	s.runMu.Unlock()
	if !started {
		return types.RefreshStatus{}, ErrNotStarted
	}

	if jobID == "" {
		jobID = uuid.NewString()
	}
	status := types.RefreshStatus{JobID: jobID}

	if s.deduper.SeenAndRecord(ctx, jobID) {
		metrics.RecordRefreshDuplicate()
		s.logger.Debug(ctx, "duplicate refresh request", logger.String("job_id", jobID))
		status.Duplicate = true
		return status, nil
	}

	r := queue.Request{JobID: jobID, Reason: worker.ReasonRefresh, RequestedAt: s.now()}
	if err := s.queue.Enqueue(ctx, r); err != nil {
		// Let the caller retry the same job id.
		s.deduper.Unrecord(ctx, jobID)
		return types.RefreshStatus{}, fmt.Errorf("enqueue refresh %s: %w", jobID, err)
	}
	return status, nil
}

// State returns the lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Snapshot returns the live snapshot, or nil before the first load or build.
func (s *Service) Snapshot() *wingraph.Snapshot {
	return s.current.Load()
}

// GetStats returns counters describing the live graphs and the rebuild
// history.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	st := types.Stats{
		State:            s.State().String(),
		RefreshQueueSize: s.queue.Len(ctx),
	}
	if snap := s.current.Load(); snap != nil {
		builtAt := snap.Meta.BuiltAt
		st.Generation = snap.Meta.Generation
		st.WinNodes = snap.Wins.Order()
		st.WinEdges = snap.Wins.Size()
		st.NetNodes = snap.Net.Order()
		st.NetEdges = snap.Net.Size()
		st.GamesScanned = snap.Meta.GamesScanned
		st.BuiltAt = &builtAt
	}

	s.statsMu.Lock()
	st.LastRebuildMs = s.lastRebuild.Milliseconds()
	st.LastError = s.lastError
	st.Rebuilds = s.rebuilds
	st.FailedRebuilds = s.failedRebuilds
	s.statsMu.Unlock()
	return st
}
