package sw

import (
	"context"
	"fmt"
	"strings"

	"rr-sync/internal/model"
)

// Worker lifecycle event kinds.
const (
	EventInstall  = "install"
	EventActivate = "activate"
	EventReplay   = "replay"
)

// Worker event statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Worker ties the sync components into the service worker lifecycle:
// install precaches the app shell, activate drops old cache generations,
// and replay drains the mutation queue. Each step is recorded in the store.
type Worker struct {
	store    Store
	engine   *SyncEngine
	assets   *AssetHandler
	replayer *Replayer
	router   *Router
	storage  CacheStorage
	logger   Logger
}

// NewWorker creates a Worker from its wired components.
func NewWorker(store Store, storage CacheStorage, engine *SyncEngine, assets *AssetHandler, replayer *Replayer, router *Router, logger Logger) *Worker {
	return &Worker{
		store:    store,
		engine:   engine,
		assets:   assets,
		replayer: replayer,
		router:   router,
		storage:  storage,
		logger:   logger,
	}
}

// Engine returns the worker's SyncEngine.
func (w *Worker) Engine() *SyncEngine { return w.engine }

// Router returns the worker's request router.
func (w *Worker) Router() *Router { return w.router }

// Replayer returns the worker's replayer.
func (w *Worker) Replayer() *Replayer { return w.replayer }

// Install precaches the app shell into the live cache generation.
func (w *Worker) Install(ctx context.Context) error {
	return w.record(ctx, EventInstall, w.assets.CacheName(), func() (string, error) {
		if err := w.assets.Precache(ctx); err != nil {
			return "", fmt.Errorf("installing %s: %w", w.assets.CacheName(), err)
		}
		return "", nil
	})
}

// Activate deletes the stale cache generations and returns their names.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	var deleted []string
	err := w.record(ctx, EventActivate, w.assets.CacheName(), func() (string, error) {
		var err error
		deleted, err = w.assets.PurgeStale(ctx)
		if err != nil {
			return "", fmt.Errorf("activating %s: %w", w.assets.CacheName(), err)
		}
		return strings.Join(deleted, ","), nil
	})
	return deleted, err
}

// Start installs and then activates. Activation is skipped if install fails.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Install(ctx); err != nil {
		return err
	}
	_, err := w.Activate(ctx)
	return err
}

// Replay runs one replay cycle and records it.
func (w *Worker) Replay(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	err := w.record(ctx, EventReplay, "", func() (string, error) {
		var err error
		report, err = w.replayer.RunCycle(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("attempted=%d replayed=%d failed=%d skipped=%d",
			report.Attempted, report.Replayed, report.Failed, report.Skipped), nil
	})
	return report, err
}

// record runs step inside a worker event. A store failure while recording
// is logged and never fails the step.
func (w *Worker) record(ctx context.Context, kind, detail string, step func() (string, error)) error {
	ev, err := w.store.CreateWorkerEvent(ctx, kind, detail)
	if err != nil {
		w.logger.Warn("recording worker event failed", "kind", kind, "error", err)
	}

	summary, stepErr := step()

	status := StatusSuccess
	if stepErr != nil {
		status = StatusError
		w.logger.Error("worker step failed", "kind", kind, "error", stepErr)
	} else {
		w.logger.Info("worker step finished", "kind", kind, "detail", detail, "summary", summary)
	}
	if ev != nil {
		if err := w.store.FinishWorkerEvent(ctx, ev.ID, status); err != nil {
			w.logger.Warn("finishing worker event failed", "kind", kind, "error", err)
		}
	}
	return stepErr
}

// PendingMutations lists what is waiting for replay.
type PendingMutations struct {
	Favorites []model.PendingFavorite `json:"favorites"`
	Reviews   []model.Review          `json:"reviews"`
}

// Pending returns the queued favorites and reviews.
func (w *Worker) Pending(ctx context.Context) (PendingMutations, error) {
	favorites, err := w.store.ListPendingFavorites(ctx)
	if err != nil {
		return PendingMutations{}, fmt.Errorf("listing pending favorites: %w", err)
	}
	reviews, err := w.store.ListPendingReviews(ctx)
	if err != nil {
		return PendingMutations{}, fmt.Errorf("listing pending reviews: %w", err)
	}
	return PendingMutations{Favorites: favorites, Reviews: reviews}, nil
}

// Status is a snapshot of the worker's state.
type Status struct {
	CacheName        string   `json:"cache_name"`
	Caches           []string `json:"caches"`
	ReplayCycles     int64    `json:"replay_cycles"`
	PendingFavorites int      `json:"pending_favorites"`
	PendingReviews   int      `json:"pending_reviews"`
}

// Status reports the cache generations and queue sizes.
func (w *Worker) Status(ctx context.Context) (Status, error) {
	caches, err := w.storage.Keys(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("listing caches: %w", err)
	}
	pending, err := w.Pending(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		CacheName:        w.assets.CacheName(),
		Caches:           caches,
		ReplayCycles:     w.replayer.Cycles(),
		PendingFavorites: len(pending.Favorites),
		PendingReviews:   len(pending.Reviews),
	}, nil
}

// History returns the most recent lifecycle steps, newest first.
func (w *Worker) History(ctx context.Context, limit int) ([]model.WorkerEvent, error) {
	events, err := w.store.ListWorkerEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing worker history: %w", err)
	}
	return events, nil
}
