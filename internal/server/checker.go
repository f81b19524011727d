package server

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/jittakal/ringstore/pkg/ring"
)

// RingLister reports the rings held by the service.
type RingLister interface {
	Draining() bool
	Stats() []ring.Stats
}

// ServiceHealth tracks the source connection and the ring states.
// The service is ready once the source is up and until any ring drains.
type ServiceHealth struct {
	rings    RingLister
	sourceUp atomic.Bool
	failed   atomic.Bool
}

// NewServiceHealth creates a health checker over the given rings.
func NewServiceHealth(rings RingLister) *ServiceHealth {
	return &ServiceHealth{rings: rings}
}

// SetSourceUp records whether the source is delivering messages.
func (h *ServiceHealth) SetSourceUp(up bool) {
	h.sourceUp.Store(up)
}

// MarkFailed makes liveness fail. A restart is the only way back.
func (h *ServiceHealth) MarkFailed() {
	h.failed.Store(true)
}

// Liveness reports whether the process should keep running.
func (h *ServiceHealth) Liveness() bool {
	return !h.failed.Load()
}

// Readiness reports whether the service accepts new input.
func (h *ServiceHealth) Readiness(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return h.IsHealthy()
}

// IsHealthy reports liveness, a live source and no draining ring.
func (h *ServiceHealth) IsHealthy() bool {
	return h.Liveness() && h.sourceUp.Load() && !h.rings.Draining()
}

// GetStatus returns the individual checks.
func (h *ServiceHealth) GetStatus() map[string]string {
	source := "down"
	if h.sourceUp.Load() {
		source = "up"
	}

	stats := h.rings.Stats()
	frozen := 0
	for _, s := range stats {
		if s.Frozen {
			frozen++
		}
	}

	return map[string]string{
		"source":       source,
		"rings":        strconv.Itoa(len(stats)),
		"rings_frozen": strconv.Itoa(frozen),
		"draining":     strconv.FormatBool(h.rings.Draining()),
	}
}
