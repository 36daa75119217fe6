package sw

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"rr-sync/internal/model"
)

// ErrCycleInProgress is returned by RunCycle while another cycle is running.
var ErrCycleInProgress = errors.New("replay cycle already in progress")

// CycleReport summarizes one replay cycle.
type CycleReport struct {
	Cycle     int64 `json:"cycle"`
	Attempted int   `json:"attempted"`
	Replayed  int   `json:"replayed"`
	Failed    int   `json:"failed"`
	Skipped   int   `json:"skipped"`
}

type tally struct {
	mu     sync.Mutex
	report CycleReport
}

func (t *tally) add(fn func(*CycleReport)) {
	t.mu.Lock()
	fn(&t.report)
	t.mu.Unlock()
}

// Replayer sends queued favorites and reviews to the Data API. It shares the
// SyncEngine's store, API and per-restaurant locks.
type Replayer struct {
	store       Store
	api         API
	locks       *KeyedMutex
	logger      Logger
	interval    time.Duration
	concurrency int

	running atomic.Bool
	cycles  atomic.Int64
}

// NewReplayer creates a Replayer for the mutations queued by engine.
func NewReplayer(engine *SyncEngine, interval time.Duration, concurrency int, logger Logger) *Replayer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Replayer{
		store:       engine.store,
		api:         engine.api,
		locks:       engine.locks,
		logger:      logger,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Cycles returns the number of completed cycles.
func (r *Replayer) Cycles() int64 { return r.cycles.Load() }

// Run runs a cycle on every tick until ctx is done.
func (r *Replayer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := r.RunCycle(ctx)
			switch {
			case errors.Is(err, ErrCycleInProgress):
				r.logger.Debug("replay tick skipped, cycle still running")
			case err != nil:
				r.logger.Warn("replay cycle failed", "error", err)
			case report.Attempted > 0 || report.Skipped > 0:
				r.logger.Info("replay cycle finished",
					"cycle", report.Cycle,
					"attempted", report.Attempted,
					"replayed", report.Replayed,
					"failed", report.Failed,
					"skipped", report.Skipped)
			}
		}
	}
}

// RunCycle replays every queued mutation once. Each item succeeds or fails
// on its own; the returned error is only ErrCycleInProgress.
func (r *Replayer) RunCycle(ctx context.Context) (CycleReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer r.running.Store(false)

	favorites, err := r.store.ListPendingFavorites(ctx)
	if err != nil {
		r.logger.Warn("listing pending favorites failed", "error", err)
	}
	reviews, err := r.store.ListPendingReviews(ctx)
	if err != nil {
		r.logger.Warn("listing pending reviews failed", "error", err)
	}

	var t tally
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, p := range favorites {
		g.Go(func() error {
			r.replayFavorite(ctx, p, &t)
			return nil
		})
	}
	for _, review := range reviews {
		g.Go(func() error {
			r.replayReview(ctx, review, &t)
			return nil
		})
	}
	_ = g.Wait()

	report := t.report
	report.Cycle = r.cycles.Add(1)
	return report, nil
}

func (r *Replayer) replayFavorite(ctx context.Context, p model.PendingFavorite, t *tally) {
	id := p.RestaurantID
	if id <= 0 {
		r.logger.Warn("skipping malformed pending favorite", "restaurant_id", id, "seq", p.Seq)
		t.add(func(c *CycleReport) { c.Skipped++ })
		return
	}
	if !r.locks.TryLock(id) {
		r.logger.Debug("favorite busy, replaying next cycle", "restaurant_id", id)
		t.add(func(c *CycleReport) { c.Skipped++ })
		return
	}
	defer r.locks.Unlock(id)

	// The entry may have been confirmed or replaced since it was listed.
	current, err := r.store.GetPendingFavorite(ctx, id)
	if err != nil {
		r.logger.Warn("reading pending favorite failed", "restaurant_id", id, "error", err)
		t.add(func(c *CycleReport) { c.Failed++ })
		return
	}
	if current == nil {
		t.add(func(c *CycleReport) { c.Skipped++ })
		return
	}

	t.add(func(c *CycleReport) { c.Attempted++ })
	if _, err := r.api.SetFavorite(ctx, id, current.IsFavorite); err != nil {
		r.logger.Debug("favorite replay failed", "restaurant_id", id, "seq", current.Seq, "error", err)
		t.add(func(c *CycleReport) { c.Failed++ })
		return
	}
	if err := r.store.ConfirmFavorite(ctx, id, current.Seq); err != nil {
		r.logger.Warn("confirming replayed favorite failed", "restaurant_id", id, "error", err)
		t.add(func(c *CycleReport) { c.Failed++ })
		return
	}
	r.logger.Info("favorite replayed", "restaurant_id", id, "is_favorite", current.IsFavorite, "seq", current.Seq)
	t.add(func(c *CycleReport) { c.Replayed++ })
}

func (r *Replayer) replayReview(ctx context.Context, review model.Review, t *tally) {
	if review.PlaceholderID == "" || review.RestaurantID <= 0 {
		r.logger.Warn("skipping malformed pending review",
			"placeholder_id", review.PlaceholderID, "restaurant_id", review.RestaurantID)
		t.add(func(c *CycleReport) { c.Skipped++ })
		return
	}

	t.add(func(c *CycleReport) { c.Attempted++ })
	server, err := r.api.CreateReview(ctx, review.Input())
	if err != nil {
		r.logger.Debug("review replay failed", "placeholder_id", review.PlaceholderID, "error", err)
		t.add(func(c *CycleReport) { c.Failed++ })
		return
	}
	confirmed := *server
	confirmed.State = model.Confirmed
	confirmed.PlaceholderID = ""
	if err := r.store.ReplacePendingReview(ctx, review.PlaceholderID, confirmed); err != nil {
		r.logger.Error("reconciling replayed review failed",
			"placeholder_id", review.PlaceholderID, "review_id", confirmed.ID, "error", err)
		t.add(func(c *CycleReport) { c.Failed++ })
		return
	}
	r.logger.Info("review replayed", "placeholder_id", review.PlaceholderID, "review_id", confirmed.ID)
	t.add(func(c *CycleReport) { c.Replayed++ })
}
