package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

const (
	TriggerStartup = "startup"
	TriggerCron    = "cron"
	TriggerReload  = "reload"
	TriggerCLI     = "cli"
)

type CatalogLister interface {
	Listing(ctx context.Context) ([]mapping.CatalogEntry, error)
}

// CronRegistrar is the part of *cron.Cron the reconciler needs.
type CronRegistrar interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
}

// Reconciler keeps the mapping table in sync with the store and fills in
// catalog ids from the catalog listing.
type Reconciler struct {
	store    mapping.Store
	table    *mapping.Table
	catalog  CatalogLister
	cron     CronRegistrar
	cronExpr string
	now      func() time.Time

	group singleflight.Group
	runMu sync.Mutex

	lastMu sync.RWMutex
	last   *mapping.ReconcileRun
}

type ReconcilerOption func(*Reconciler)

// WithCron schedules reconciliation on expr. An empty expr disables it.
func WithCron(c CronRegistrar, expr string) ReconcilerOption {
	return func(r *Reconciler) {
		r.cron = c
		r.cronExpr = expr
	}
}

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func NewReconciler(store mapping.Store, table *mapping.Table, catalog CatalogLister, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:   store,
		table:   table,
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) CronExpr() string {
	return r.cronExpr
}

// Schedule registers the periodic reconcile with the cron engine.
func (r *Reconciler) Schedule(ctx context.Context) error {
	if r.cron == nil || r.cronExpr == "" {
		log.Info("Reconcile schedule disabled")
		return nil
	}
	log.Info("Scheduling reconcile at %q", r.cronExpr)

	_, err := r.cron.AddFunc(r.cronExpr, func() {
		if _, err := r.Run(ctx, TriggerCron); err != nil {
			LogError(err)
		}
	})
	return err
}

// Load replaces the table with the store contents. On failure the current
// table is kept.
func (r *Reconciler) Load(ctx context.Context) error {
	mappings, err := r.store.Load(ctx)
	if err != nil {
		log.Error("Error loading title mappings: %v", err)
		return WrapError(err, ErrStore, "Unable to load mappings")
	}
	r.table.ReplaceAll(mappings)
	log.Info("Title mappings loaded: %d", len(mappings))
	return nil
}

// Reload loads the table from the store, then reconciles it.
func (r *Reconciler) Reload(ctx context.Context, trigger string) (mapping.ReconcileRun, error) {
	return r.do(ctx, "reload", trigger, true)
}

// Run reconciles the current table against the catalog. Concurrent calls
// share one pass.
func (r *Reconciler) Run(ctx context.Context, trigger string) (mapping.ReconcileRun, error) {
	return r.do(ctx, "reconcile", trigger, false)
}

type runOutcome struct {
	run mapping.ReconcileRun
	err error
}

func (r *Reconciler) do(ctx context.Context, key, trigger string, reload bool) (mapping.ReconcileRun, error) {
	v, _, _ := r.group.Do(key, func() (any, error) {
		r.runMu.Lock()
		defer r.runMu.Unlock()

		if reload {
			// A failed load keeps the current table and still reconciles it.
			_ = r.Load(ctx)
		}
		run, err := r.reconcile(ctx, trigger)
		return runOutcome{run: run, err: err}, nil
	})
	outcome := v.(runOutcome)
	return outcome.run, outcome.err
}

func (r *Reconciler) reconcile(ctx context.Context, trigger string) (mapping.ReconcileRun, error) {
	run := mapping.ReconcileRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: r.now(),
	}
	err := r.apply(ctx, &run)
	run.FinishedAt = r.now()
	if err != nil {
		run.Error = err.Error()
	}
	r.record(ctx, run)
	return run, err
}

func (r *Reconciler) apply(ctx context.Context, run *mapping.ReconcileRun) error {
	listing, err := r.catalog.Listing(ctx)
	if err != nil {
		log.Error("Error fetching series from catalog: %v", err)
		return WrapError(err, ErrUpstream, "Unable to fetch catalog listing").
			WithContext("operation", "reconcile")
	}

	result := mapping.Reconcile(r.table.All(), listing)
	for _, m := range result.Resolved {
		log.Info("Found catalog id for %q: %d", m.CanonicalTitle, *m.CatalogID)
	}
	for _, m := range result.Unresolved {
		log.Warn("Series not found in catalog for title %q", m.CanonicalTitle)
	}
	run.Resolved = len(result.Resolved)
	run.Unresolved = len(result.Unresolved)

	if len(result.Mappings) == 0 {
		log.Error("No valid mappings to save")
		return NewError(ErrStore, "No valid mappings to save").WithContext("operation", "reconcile")
	}

	r.table.ReplaceAll(result.Mappings)
	if err := r.store.Save(ctx, result.Mappings); err != nil {
		log.Error("Error saving title mappings: %v", err)
		return WrapError(err, ErrStore, "Unable to save mappings").WithContext("operation", "reconcile")
	}
	run.Persisted = true
	log.Info("Updated title mappings with catalog ids (%d resolved, %d unresolved)", run.Resolved, run.Unresolved)
	return nil
}

func (r *Reconciler) record(ctx context.Context, run mapping.ReconcileRun) {
	r.lastMu.Lock()
	r.last = &run
	r.lastMu.Unlock()

	recorder, ok := r.store.(mapping.RunRecorder)
	if !ok {
		return
	}
	if err := recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("Failed to record reconcile run %s: %v", run.ID, err)
	}
}

// LastRun returns the most recent reconcile run of this process.
func (r *Reconciler) LastRun() (mapping.ReconcileRun, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return mapping.ReconcileRun{}, false
	}
	return *r.last, true
}

// RecentRuns returns stored run history when the store keeps it, otherwise
// just the last run.
func (r *Reconciler) RecentRuns(ctx context.Context, limit int) ([]mapping.ReconcileRun, error) {
	if recorder, ok := r.store.(mapping.RunRecorder); ok {
		return recorder.RecentRuns(ctx, limit)
	}
	if run, ok := r.LastRun(); ok {
		return []mapping.ReconcileRun{run}, nil
	}
	return []mapping.ReconcileRun{}, nil
}
