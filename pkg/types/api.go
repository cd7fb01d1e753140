package types

// ModelResult is one model's verdict for a single request. Immutable after
// creation; a failed run is recorded with OK=false and the failure reason.
type ModelResult struct {
	// ID of the model that produced this result.
	// example: densenet121-chest
	ModelID string `json:"model_id" example:"densenet121-chest"`
	// Predicted label. Empty when OK is false.
	// example: COVID
	Label string `json:"label,omitempty" example:"COVID"`
	// Confidence in the predicted label, percent.
	// example: 93.4
	Confidence float64 `json:"confidence" example:"93.4"`
	// Raw per-class scores in label-space order, percent.
	Scores []float64 `json:"scores,omitempty"`
	// Wall-clock inference duration in milliseconds, including load time.
	// example: 812
	DurationMS int64 `json:"duration_ms" example:"812"`
	// Whether the model completed successfully.
	// example: true
	OK bool `json:"ok" example:"true"`
	// Failure reason when OK is false.
	// example: weight load: file missing
	Error string `json:"error,omitempty" example:"weight load: file missing"`
}

// ExplainabilityArtifact is a rendered class-activation heatmap for the best
// model of a consensus. Lifetime is bound to the response it accompanies.
type ExplainabilityArtifact struct {
	// ID of the model the heatmap was computed from.
	ModelID string `json:"model_id" example:"densenet121-chest"`
	// PNG heatmap overlay, base64-encoded.
	HeatmapPNG string `json:"heatmap_png"`
	// Heatmap pixel dimensions.
	Width  int `json:"width" example:"224"`
	Height int `json:"height" example:"224"`
}

// ConsensusResult is the aggregate returned to the caller.
type ConsensusResult struct {
	// Final diagnosis label chosen by the ensemble.
	// example: COVID
	Diagnosis string `json:"diagnosis" example:"COVID"`
	// Consensus confidence: mean confidence of the models that predicted
	// the winning label, percent.
	// example: 85.75
	Confidence float64 `json:"confidence" example:"85.75"`
	// Number of successful models that agreed with the final label.
	// example: 4
	AgreementCount int `json:"agreement_count" example:"4"`
	// ID of the highest-confidence model within the winning group.
	// example: densenet121-chest
	BestModelID string `json:"best_model_id" example:"densenet121-chest"`
	// Per-model breakdown in registry order, failures included.
	Results []ModelResult `json:"results"`
	// Optional heatmap for the best model; absent when explainability was
	// not requested or failed softly.
	Explainability *ExplainabilityArtifact `json:"explainability,omitempty"`
	// Non-fatal warnings accumulated during the request.
	Warnings []string `json:"warnings,omitempty"`
	// Content hash of the preprocessed input, for idempotence checks.
	ImageHash string `json:"image_hash,omitempty"`
}

// ModelsResponse wraps the list of registered models returned by GET /models.
type ModelsResponse struct {
	Models []ModelSpec `json:"models"`
}

// StatusResponse summarizes engine state for GET /status.
type StatusResponse struct {
	// Accelerator memory budget in MB (0 = unlimited).
	BudgetMB int `json:"budget_mb" example:"6144"`
	// Reserved margin in MB kept free under the budget.
	MarginMB int `json:"margin_mb" example:"512"`
	// Number of registered models.
	Models int `json:"models" example:"6"`
	// Minimum successful models required for a consensus.
	Quorum int `json:"quorum" example:"3"`
	// Whether a model is currently resident on the accelerator.
	ModelResident bool `json:"model_resident" example:"false"`
	// Requests currently inside the engine.
	Inflight int `json:"inflight" example:"1"`
	// Completed requests since start.
	RequestsTotal int64 `json:"requests_total" example:"42"`
	// Requests that ended in a fatal error since start.
	FailuresTotal int64 `json:"failures_total" example:"2"`
	// Preprocessing cache occupancy and capacity.
	CacheEntries  int `json:"cache_entries" example:"12"`
	CacheCapacity int `json:"cache_capacity" example:"64"`
	// Seconds since the engine started.
	UptimeSec int64 `json:"uptime_sec" example:"3600"`
}

// ErrorResponse is a consistent JSON error payload. Kind is the stable
// machine-readable error taxonomy name callers switch on.
type ErrorResponse struct {
	// Error message.
	// example: image too small: 48x48 below minimum 64
	Error string `json:"error" example:"invalid image"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Stable error kind: invalid_image, insufficient_models, configuration,
	// out_of_memory, too_busy, runtime_unavailable, internal.
	// example: invalid_image
	Kind string `json:"kind,omitempty" example:"invalid_image"`
}
