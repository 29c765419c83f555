package extract

import (
	"context"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
)

// StateObserver is told about every state an extraction enters.
type StateObserver interface {
	Transition(ctx context.Context, t model.Transition)
}

type ObserverFunc func(ctx context.Context, t model.Transition)

func (f ObserverFunc) Transition(ctx context.Context, t model.Transition) { f(ctx, t) }

// Observers fans a transition out to several observers in order.
type Observers []StateObserver

func (o Observers) Transition(ctx context.Context, t model.Transition) {
	for _, obs := range o {
		if obs != nil {
			obs.Transition(ctx, t)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Transition(context.Context, model.Transition) {}
