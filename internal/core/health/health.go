// Package health serves the liveness and readiness endpoints of the extractor.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}

// Check tests one dependency of the extractor. A nil error means usable.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

type readyBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Readiness runs every check within timeout and answers 503 as soon as one
// of them fails. No checks means ready.
func Readiness(timeout time.Duration, checks ...Check) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := readyBody{Status: "ready"}
		code := http.StatusOK
		for _, c := range checks {
			if out.Checks == nil {
				out.Checks = make(map[string]string, len(checks))
			}
			if err := c.Run(ctx); err != nil {
				out.Checks[c.Name] = err.Error()
				out.Status = "not_ready"
				code = http.StatusServiceUnavailable
				continue
			}
			out.Checks[c.Name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(out)
	}
}

// OutputDir checks that extraction results can be written under dir.
func OutputDir(dir string) Check {
	return Check{Name: "output_dir", Run: func(context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".ready-*")
		if err != nil {
			return err
		}
		name := f.Name()
		return errors.Join(f.Close(), os.Remove(name))
	}}
}

// PartitionReporter is satisfied by the queue runner.
type PartitionReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Queue is ready once the consumer holds at least one partition.
func Queue(q PartitionReporter) Check {
	return Check{Name: "queue", Run: func(context.Context) error {
		ok, parts := q.Readiness()
		if !ok || len(parts) == 0 {
			return errors.New("no partitions assigned")
		}
		return nil
	}}
}

// Ping wraps a connectivity test such as the job store's.
func Ping(name string, ping func(context.Context) error) Check {
	return Check{Name: name, Run: func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		return nil
	}}
}
