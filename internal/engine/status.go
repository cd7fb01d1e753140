package engine

import (
	"time"

	"xrayd/pkg/types"
)

// Status builds a detailed status response for /status.
func (e *Engine) Status() types.StatusResponse {
	resp := types.StatusResponse{
		BudgetMB:      e.ld.BudgetMB(),
		MarginMB:      e.ld.MarginMB(),
		Models:        len(e.specs),
		Quorum:        e.quorum,
		ModelResident: e.ld.InUse() > 0,
		Inflight:      int(e.inflight.Load()),
		RequestsTotal: e.requests.Load(),
		FailuresTotal: e.failures.Load(),
		UptimeSec:     int64(time.Since(e.startTime).Seconds()),
	}
	if c := e.pre.Cache(); c != nil {
		resp.CacheEntries = c.Len()
		resp.CacheCapacity = c.Capacity()
	}
	return resp
}
