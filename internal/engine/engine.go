// Package engine orchestrates the multi-model diagnostic ensemble: it runs
// every registered model strictly sequentially under the memory-bounded
// loader, tolerates individual model failure, aggregates the survivors into
// a consensus, and attaches best-effort explainability.
package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"sync/atomic"
	"time"

	"xrayd/internal/explain"
	"xrayd/internal/loader"
	"xrayd/internal/preprocess"
	"xrayd/internal/registry"
	xrt "xrayd/internal/runtime"
	"xrayd/pkg/types"
)

// Stage is the per-request lifecycle state.
type Stage string

const (
	StagePending       Stage = "pending"
	StagePreprocessing Stage = "preprocessing"
	StageRunning       Stage = "running"
	StageAggregating   Stage = "aggregating"
	StageExplaining    Stage = "explaining"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// Config encapsulates all tunables for Engine construction.
type Config struct {
	Registry     *registry.Registry
	Preprocessor *preprocess.Preprocessor
	Loader       *loader.Loader
	// Minimum successful models for a valid consensus. <=0 means half the
	// registry, rounded up.
	Quorum int
	// Per-model budget covering acquire + predict. <=0 disables.
	ModelTimeout time.Duration
	// Inputs below this side length are rejected.
	MinImageDim int
	// Equalize applies histogram equalization during preprocessing.
	Equalize bool
	// Publisher receives lifecycle events; nil installs a no-op.
	Publisher EventPublisher
}

// Engine is the diagnostic ensemble. Safe for concurrent use: the only
// shared mutable resource, accelerator memory, is mediated by the loader.
type Engine struct {
	specs        []types.ModelSpec
	reg          *registry.Registry
	pre          *preprocess.Preprocessor
	ld           *loader.Loader
	quorum       int
	modelTimeout time.Duration
	minImageDim  int
	equalize     bool
	publisher    EventPublisher

	inflight  atomic.Int64
	requests  atomic.Int64
	failures  atomic.Int64
	startTime time.Time
}

// New constructs an Engine from Config.
func New(cfg Config) *Engine {
	e := &Engine{
		specs:        cfg.Registry.Models(),
		reg:          cfg.Registry,
		pre:          cfg.Preprocessor,
		ld:           cfg.Loader,
		quorum:       cfg.Quorum,
		modelTimeout: cfg.ModelTimeout,
		minImageDim:  cfg.MinImageDim,
		equalize:     cfg.Equalize,
		publisher:    cfg.Publisher,
	}
	if e.quorum <= 0 {
		e.quorum = (len(e.specs) + 1) / 2
	}
	if e.quorum < 1 {
		e.quorum = 1
	}
	if e.publisher == nil {
		e.publisher = noopPublisher{}
	}
	e.startTime = time.Now()
	return e
}

// Options are the per-request knobs exposed to the caller.
type Options struct {
	// Explain requests a heatmap for the best model.
	Explain bool
	// TargetSize overrides each model's declared input size when positive.
	TargetSize int
}

// Quorum returns the resolved minimum.
func (e *Engine) Quorum() int { return e.quorum }

// Ready reports whether the engine can serve requests.
func (e *Engine) Ready() bool { return len(e.specs) > 0 }

// ListModels returns the registered specs in registry order.
func (e *Engine) ListModels() []types.ModelSpec { return e.reg.Models() }

// Predict runs the full ensemble over raw image bytes.
//
// Lifecycle: pending -> preprocessing -> running(model i) -> aggregating ->
// explaining -> done, with failed reachable from any stage. Per-model
// failures are recorded in the breakdown and never abort the loop; the
// request fails only on invalid input, cancellation, or quorum loss.
func (e *Engine) Predict(ctx context.Context, raw []byte, opts Options) (*types.ConsensusResult, error) {
	e.inflight.Add(1)
	start := time.Now()
	defer func() {
		e.inflight.Add(-1)
		e.requests.Add(1)
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	fail := func(outcome string, err error) (*types.ConsensusResult, error) {
		e.failures.Add(1)
		requestsTotal.WithLabelValues(outcome).Inc()
		e.publisher.Publish(Event{Name: "request_failed", Fields: map[string]any{"stage": outcome, "error": err.Error()}})
		return nil, err
	}

	// preprocessing: validate and normalize once up front. Later per-model
	// runs for other input sizes are served from the cache.
	base, err := e.pre.Run(ctx, raw, e.ppOptions(e.specs[0], opts))
	if err != nil {
		if preprocess.IsInvalidImage(err) {
			return fail("invalid_image", err)
		}
		return fail("canceled", err)
	}
	e.publisher.Publish(Event{Name: "preprocess_done", Fields: map[string]any{"hash": base.Hash}})

	// running: strictly sequential, never overlapping two models' residency.
	results := make([]types.ModelResult, 0, len(e.specs))
	successes := 0
	for _, spec := range e.specs {
		// cancellation is honored at iteration boundaries; a model run is
		// an atomic unit of work.
		if err := ctx.Err(); err != nil {
			return fail("canceled", err)
		}
		res := e.runModel(ctx, spec, raw, opts)
		results = append(results, res)
		if res.OK {
			successes++
			modelRunsTotal.WithLabelValues(spec.ID, "ok").Inc()
		} else {
			modelRunsTotal.WithLabelValues(spec.ID, "failed").Inc()
		}
	}

	// aggregating
	if successes < e.quorum {
		return fail("insufficient_models", ErrInsufficientModels(successes, e.quorum))
	}
	cons, err := aggregate(results)
	if err != nil {
		return fail("insufficient_models", err)
	}
	cons.ImageHash = base.Hash
	agreementCount.Observe(float64(cons.AgreementCount))
	e.publisher.Publish(Event{Name: "aggregate_done", ModelID: cons.BestModelID, Fields: map[string]any{
		"diagnosis": cons.Diagnosis, "agreement": cons.AgreementCount, "successes": successes,
	}})

	// explaining: best-effort, never fatal.
	if opts.Explain {
		e.explainInto(ctx, cons, raw, opts)
	}

	requestsTotal.WithLabelValues("ok").Inc()
	return cons, nil
}

// runModel executes one model under the loader with the per-model timeout.
// Every outcome becomes a ModelResult; errors are isolated here.
func (e *Engine) runModel(ctx context.Context, spec types.ModelSpec, raw []byte, opts Options) types.ModelResult {
	start := time.Now()
	mctx := ctx
	if e.modelTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, e.modelTimeout)
		defer cancel()
	}
	res := types.ModelResult{ModelID: spec.ID}

	img, err := e.pre.Run(mctx, raw, e.ppOptions(spec, opts))
	if err == nil {
		var pred xrt.Prediction
		err = e.ld.With(mctx, spec, func(h *loader.Handle) error {
			p, perr := h.Session().Predict(mctx, img)
			if perr != nil {
				return perr
			}
			pred = p
			return nil
		})
		if err == nil {
			_, label, conf := pred.TopLabel(spec.Labels)
			res.Label = label
			res.Confidence = conf
			res.Scores = pred.Scores
			res.OK = true
		}
	}
	res.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = errors.New("model timed out")
		}
		res.Error = err.Error()
		e.publisher.Publish(Event{Name: "model_failed", ModelID: spec.ID, Fields: map[string]any{"error": res.Error}})
		return res
	}
	e.publisher.Publish(Event{Name: "model_done", ModelID: spec.ID, Fields: map[string]any{
		"label": res.Label, "confidence": res.Confidence, "ms": res.DurationMS,
	}})
	return res
}

// explainInto re-acquires the best model briefly and attaches a heatmap.
// Any failure degrades to a warning; the consensus stands.
func (e *Engine) explainInto(ctx context.Context, cons *types.ConsensusResult, raw []byte, opts Options) {
	warn := func(err error) {
		cons.Warnings = append(cons.Warnings, "explainability unavailable: "+err.Error())
		e.publisher.Publish(Event{Name: "explain_failed", ModelID: cons.BestModelID, Fields: map[string]any{"error": err.Error()}})
	}
	spec, ok := e.reg.Get(cons.BestModelID)
	if !ok {
		warn(errors.New("best model missing from registry"))
		return
	}
	img, err := e.pre.Run(ctx, raw, e.ppOptions(spec, opts))
	if err != nil {
		warn(err)
		return
	}
	mctx := ctx
	if e.modelTimeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, e.modelTimeout)
		defer cancel()
	}
	err = e.ld.With(mctx, spec, func(h *loader.Handle) error {
		ex, ok := h.Session().(xrt.Explainer)
		if !ok {
			return errors.New("model architecture has no instrumented layers")
		}
		act, aerr := ex.Activations(mctx, img)
		if aerr != nil {
			return aerr
		}
		hm, herr := explain.Generate(act, img)
		if herr != nil {
			return herr
		}
		cons.Explainability = &types.ExplainabilityArtifact{
			ModelID:    spec.ID,
			HeatmapPNG: base64.StdEncoding.EncodeToString(hm.PNG),
			Width:      hm.Width,
			Height:     hm.Height,
		}
		return nil
	})
	if err != nil {
		warn(err)
		return
	}
	e.publisher.Publish(Event{Name: "explain_done", ModelID: spec.ID, Fields: map[string]any{}})
}

func (e *Engine) ppOptions(spec types.ModelSpec, opts Options) preprocess.Options {
	size := spec.InputSize()
	if opts.TargetSize > 0 {
		size = opts.TargetSize
	}
	return preprocess.Options{
		TargetSize:   size,
		MinDimension: e.minImageDim,
		Equalize:     e.equalize,
	}
}
