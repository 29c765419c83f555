// Package output defines the writers that turn a feature collection into
// files, and the registry that selects one per output format.
package output

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/crs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
)

// Progress receives writer diagnostics. A writer that hits an internal
// error it cannot return reports it through ExceptionOccurred.
type Progress interface {
	Warning(msg string)
	ExceptionOccurred(err error)
	Canceled() bool
}

// Job is everything a writer needs to produce its files.
type Job struct {
	Progress Progress
	Format   model.Format
	Schema   model.LayerSchema
	Dir      string
	// file name without extension
	BaseName   string
	Features   *geojson.FeatureCollection
	Projection *crs.CRS
}

type Writer interface {
	// GenerateFiles writes job and returns the paths it created.
	GenerateFiles(ctx context.Context, job Job) ([]string, error)
}

type WriterFunc func(ctx context.Context, job Job) ([]string, error)

func (f WriterFunc) GenerateFiles(ctx context.Context, job Job) ([]string, error) {
	return f(ctx, job)
}

type Registry struct {
	mu      sync.RWMutex
	writers map[model.Format]Writer
}

func NewRegistry() *Registry {
	return &Registry{writers: map[model.Format]Writer{}}
}

func (r *Registry) Register(f model.Format, w Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[f] = w
}

// Lookup parses format case-insensitively and returns its writer. Unknown
// or unregistered formats fail with errs.ErrUnsupportedFormat.
func (r *Registry) Lookup(format string) (model.Format, Writer, error) {
	f, err := model.ParseFormat(format)
	if err != nil {
		return "", nil, err
	}
	r.mu.RLock()
	w, ok := r.writers[f]
	r.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: no writer registered for %q", errs.ErrUnsupportedFormat, f)
	}
	return f, w, nil
}

func (r *Registry) Formats() []model.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Format, 0, len(r.writers))
	for f := range r.writers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
