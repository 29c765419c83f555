package extract

import (
	"context"
	"log/slog"
	"sync"
)

// abortSink is the progress handed to writers. The first exception a
// writer reports fails the extraction even if the writer returns nil.
type abortSink struct {
	ctx context.Context
	log *slog.Logger

	mu       sync.Mutex
	err      error
	warnings int
}

func newAbortSink(ctx context.Context, log *slog.Logger) *abortSink {
	return &abortSink{ctx: ctx, log: log}
}

func (s *abortSink) Warning(msg string) {
	s.mu.Lock()
	s.warnings++
	s.mu.Unlock()
	s.log.WarnContext(s.ctx, "writer warning", "msg", msg)
}

func (s *abortSink) ExceptionOccurred(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *abortSink) Canceled() bool {
	return s.ctx.Err() != nil || s.Err() != nil
}

func (s *abortSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *abortSink) Warnings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnings
}
