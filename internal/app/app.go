// Package app wires the extraction pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/config"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/executor"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/gate"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/health"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/wfs"
	"github.com/mohammed-shakir/wfs-extractor/internal/extract"
	"github.com/mohammed-shakir/wfs-extractor/internal/jobs"
	"github.com/mohammed-shakir/wfs-extractor/internal/output"
	"github.com/mohammed-shakir/wfs-extractor/internal/output/ogr"
	"github.com/mohammed-shakir/wfs-extractor/internal/output/shp"
)

const memoryJobs = 4096

// Service runs extractions and keeps track of their jobs.
type Service struct {
	log       *slog.Logger
	extractor *extract.Extractor
	tracker   *jobs.Tracker
	checks    []health.Check
	closers   []func() error
}

// Deps overrides pieces of the pipeline, mostly for tests. Nil fields are
// built from the config.
type Deps struct {
	Fetcher   executor.Fetcher
	Converter ogr.Converter
	Store     jobs.Store
}

// Writers registers the native shapefile writer and the converter backed
// formats.
func Writers(log *slog.Logger, conv ogr.Converter) *output.Registry {
	reg := output.NewRegistry()
	reg.Register(model.FormatShp, shp.New(log))
	ow := ogr.New(log, conv)
	for _, f := range []model.Format{model.FormatMif, model.FormatTab, model.FormatKml} {
		reg.Register(f, ow)
	}
	return reg
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger, deps Deps) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{log: log, checks: []health.Check{health.OutputDir(cfg.OutputDir)}}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = executor.New(log, executor.NewHTTPClient(cfg.WFSTimeout))
	}
	conv := deps.Converter
	if conv == nil {
		conv = ogr.Exec{Path: cfg.Ogr2ogrPath}
	}

	store := deps.Store
	if store == nil {
		if cfg.JobsEnabled && cfg.RedisAddr != "" {
			rs, err := jobs.NewRedisStore(ctx, cfg.RedisAddr, cfg.JobTTL)
			if err != nil {
				return nil, fmt.Errorf("job store: %w", err)
			}
			s.closers = append(s.closers, rs.Close)
			s.checks = append(s.checks, health.Ping("job_store", rs.Ping))
			store = rs
			log.Info("job store", "driver", "redis", "addr", cfg.RedisAddr)
		} else {
			store = jobs.NewMemoryStore(memoryJobs, cfg.JobTTL)
			log.Info("job store", "driver", "memory")
		}
	}
	s.tracker = jobs.NewTracker(log, store)

	sec := cfg.Security()
	g := gate.New(log, fetcher, sec.Admin, cfg.CapabilitiesTimeout)
	source := wfs.NewClient(log, fetcher, wfs.Options{CacheSize: cfg.SchemaCacheSize, CacheTTL: cfg.SchemaCacheTTL})

	s.extractor = extract.New(log,
		extract.Config{Security: sec, OutputDir: cfg.OutputDir},
		g, source, Writers(log, conv), s.tracker)
	return s, nil
}

// Run extracts req and records the job. The job id is assigned here when
// the caller left it empty.
func (s *Service) Run(ctx context.Context, req model.ExtractionRequest) (model.ExtractionResult, error) {
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if err := model.ValidateJobID(req.JobID); err != nil {
		return model.ExtractionResult{}, err
	}
	s.tracker.Start(ctx, req)
	res, err := s.extractor.Extract(ctx, req)
	s.tracker.Finish(ctx, res)
	return res, err
}

func (s *Service) Job(ctx context.Context, id string) (jobs.Job, error) {
	return s.tracker.Get(ctx, id)
}

func (s *Service) Formats() []model.Format { return s.extractor.Formats() }

// Checks are the readiness checks of the pipeline's own dependencies.
func (s *Service) Checks() []health.Check { return s.checks }

func (s *Service) Close() error {
	var errList []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
