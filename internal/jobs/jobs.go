// Package jobs keeps the state of extraction jobs so callers can poll them.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
)

var ErrNotFound = errors.New("job not found")

type Job struct {
	ID        string                  `json:"id"`
	State     model.State             `json:"state"`
	Reason    string                  `json:"reason,omitempty"`
	Layer     string                  `json:"layer,omitempty"`
	Format    model.Format            `json:"format,omitempty"`
	Result    *model.ExtractionResult `json:"result,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type Store interface {
	Put(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
}

// Tracker records state transitions and results into a Store. A failing
// store is logged and never fails the extraction.
type Tracker struct {
	log   *slog.Logger
	store Store
	now   func() time.Time
}

func NewTracker(log *slog.Logger, store Store) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{log: log, store: store, now: time.Now}
}

// Start registers a job for req in the requested state.
func (t *Tracker) Start(ctx context.Context, req model.ExtractionRequest) {
	now := t.now()
	t.put(ctx, Job{
		ID:        req.JobID,
		State:     model.StateRequested,
		Layer:     req.Layer,
		Format:    req.Format,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (t *Tracker) Transition(ctx context.Context, tr model.Transition) {
	job, err := t.store.Get(ctx, tr.JobID)
	if errors.Is(err, ErrNotFound) {
		job = Job{ID: tr.JobID, CreatedAt: t.now()}
	} else if err != nil {
		t.log.WarnContext(ctx, "job store read failed", "job_id", tr.JobID, "err", err)
		return
	}
	if job.State.Terminal() {
		return
	}
	job.State = tr.State
	job.Reason = tr.Reason
	job.UpdatedAt = t.now()
	t.put(ctx, job)
}

// Finish attaches the result of a finished extraction.
func (t *Tracker) Finish(ctx context.Context, res model.ExtractionResult) {
	job, err := t.store.Get(ctx, res.JobID)
	if err != nil {
		t.log.WarnContext(ctx, "job store read failed", "job_id", res.JobID, "err", err)
		return
	}
	job.Result = &res
	job.UpdatedAt = t.now()
	t.put(ctx, job)
}

func (t *Tracker) Get(ctx context.Context, id string) (Job, error) {
	return t.store.Get(ctx, id)
}

func (t *Tracker) put(ctx context.Context, job Job) {
	if err := t.store.Put(ctx, job); err != nil {
		t.log.WarnContext(ctx, "job store write failed", "job_id", job.ID, "state", job.State, "err", err)
	}
}
