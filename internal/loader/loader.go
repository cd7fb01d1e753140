// Package loader enforces the engine's central resource invariant: at most
// one model's weights reside in accelerator memory at any instant. All
// accelerator-bound work, across all concurrent requests, serializes through
// a single Loader.
package loader

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	xrt "xrayd/internal/runtime"
	"xrayd/pkg/types"
)

var (
	residentGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "xrayd",
		Subsystem: "loader",
		Name:      "resident_models",
		Help:      "Models currently resident in accelerator memory (never above 1)",
	})
	loadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xrayd",
		Subsystem: "loader",
		Name:      "loads_total",
		Help:      "Model load attempts by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(residentGauge, loadsTotal)
}

const defaultMaxWait = 30 * time.Second

// Loader mediates exclusive access to accelerator memory. Concurrent
// requests queue on the single residency slot rather than racing.
type Loader struct {
	rt       xrt.Runtime
	budgetMB int
	marginMB int
	maxWait  time.Duration

	slot  chan struct{} // capacity 1: the residency slot
	inUse atomic.Int32  // instrumentation; must never exceed 1
}

// New constructs a Loader over the given runtime. budgetMB <= 0 means
// unlimited; maxWait <= 0 applies the package default.
func New(rt xrt.Runtime, budgetMB, marginMB int, maxWait time.Duration) *Loader {
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Loader{
		rt:       rt,
		budgetMB: budgetMB,
		marginMB: marginMB,
		maxWait:  maxWait,
		slot:     make(chan struct{}, 1),
	}
}

// Handle is an acquired model. It must be released on every exit path;
// prefer With over manual Acquire/Release.
type Handle struct {
	spec types.ModelSpec
	sess xrt.Session
	l    *Loader
	once sync.Once
}

// Spec returns the spec the handle was acquired for.
func (h *Handle) Spec() types.ModelSpec { return h.spec }

// Session returns the live model session.
func (h *Handle) Session() xrt.Session { return h.sess }

// Acquire blocks until the residency slot is free, then loads the model.
// Blocking is bounded by maxWait (TooBusy) and by ctx. On return with a nil
// error the model is the only one resident.
func (l *Loader) Acquire(ctx context.Context, spec types.ModelSpec) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, tooBusyError{modelID: spec.ID}
	}
	// Slot held from here; every failure path must give it back.
	h, err := l.loadLocked(ctx, spec)
	if err != nil {
		<-l.slot
		loadsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	l.inUse.Add(1)
	residentGauge.Set(1)
	loadsTotal.WithLabelValues("ok").Inc()
	return h, nil
}

func (l *Loader) loadLocked(ctx context.Context, spec types.ModelSpec) (*Handle, error) {
	// Static estimate check: a model that cannot fit under budget+margin is
	// rejected before touching the accelerator.
	if l.budgetMB > 0 && spec.MemoryMB+l.marginMB > l.budgetMB {
		return nil, outOfMemoryError{modelID: spec.ID, requiredMB: spec.MemoryMB + l.marginMB, budgetMB: l.budgetMB}
	}
	sess, err := l.rt.Load(ctx, spec)
	if err != nil && xrt.IsOutOfMemory(err) {
		// Forced release-and-retry: nothing of ours is resident (the slot
		// guarantees that), so reclaim what the Go side can and try once
		// more before declaring exhaustion.
		debug.FreeOSMemory()
		sess, err = l.rt.Load(ctx, spec)
		if err != nil && xrt.IsOutOfMemory(err) {
			return nil, outOfMemoryError{modelID: spec.ID, requiredMB: spec.MemoryMB, budgetMB: l.budgetMB}
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if xrt.IsUnavailable(err) {
			return nil, err
		}
		return nil, weightLoadError{modelID: spec.ID, cause: err}
	}
	return &Handle{spec: spec, sess: sess, l: l}, nil
}

// Release frees all accelerator memory associated with the handle and opens
// the slot for the next acquisition. Idempotent.
func (h *Handle) Release() {
	h.once.Do(func() {
		_ = h.sess.Close()
		h.l.inUse.Add(-1)
		residentGauge.Set(0)
		<-h.l.slot
	})
}

// With is the scoped-acquisition form: the handle is released on every exit
// path, including panics, before control returns.
func (l *Loader) With(ctx context.Context, spec types.ModelSpec, fn func(*Handle) error) error {
	h, err := l.Acquire(ctx, spec)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h)
}

// InUse reports how many models are currently resident. Exposed for status
// reporting and invariant checks; the value is 0 or 1 by construction.
func (l *Loader) InUse() int { return int(l.inUse.Load()) }

// BudgetMB returns the configured memory budget.
func (l *Loader) BudgetMB() int { return l.budgetMB }

// MarginMB returns the configured reserved margin.
func (l *Loader) MarginMB() int { return l.marginMB }

func outcome(err error) string {
	switch {
	case IsOutOfMemory(err):
		return "oom"
	case IsWeightLoad(err):
		return "weight_load"
	case IsTooBusy(err):
		return "busy"
	default:
		return "error"
	}
}
