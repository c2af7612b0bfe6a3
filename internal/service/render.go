package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/machiavelli/internal/repository"
)

// RenderJob asks the map renderer to draw the board after a phase.
type RenderJob struct {
	GameID      string    `json:"game_id"`
	PhaseID     string    `json:"phase_id"`
	Year        int       `json:"year"`
	Season      string    `json:"season"`
	Phase       string    `json:"phase"`
	RequestedAt time.Time `json:"requested_at"`
}

// MapRenderer accepts map render requests. Rendering happens elsewhere.
type MapRenderer interface {
	RequestRender(ctx context.Context, job RenderJob) error
}

// QueueRenderer pushes render jobs onto the cache's render queue.
type QueueRenderer struct {
	cache repository.GameCache
}

// NewQueueRenderer creates a QueueRenderer.
func NewQueueRenderer(cache repository.GameCache) *QueueRenderer {
	return &QueueRenderer{cache: cache}
}

// RequestRender enqueues the job.
func (r *QueueRenderer) RequestRender(ctx context.Context, job RenderJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal render job: %w", err)
	}
	return r.cache.EnqueueRender(ctx, data)
}

// NoopRenderer drops render requests.
type NoopRenderer struct{}

func (NoopRenderer) RequestRender(context.Context, RenderJob) error { return nil }
