// Package extract runs one extraction end to end: permission check, schema,
// query, feature retrieval, then the features and bounding box writers.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/observability"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/query"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/security"
	"github.com/mohammed-shakir/wfs-extractor/internal/logger"
	"github.com/mohammed-shakir/wfs-extractor/internal/output"
	"github.com/mohammed-shakir/wfs-extractor/internal/output/bbox"
)

type PermissionChecker interface {
	CheckPermission(ctx context.Context, req model.ExtractionRequest, securedHost, username string, roles []string) error
}

type FeatureSource interface {
	Schema(ctx context.Context, conn security.ConnectionParams, typeName string) (model.LayerSchema, error)
	GetFeatures(ctx context.Context, conn security.ConnectionParams, q *query.SpatialQuery) (*geojson.FeatureCollection, error)
}

type Config struct {
	Security security.Config
	// extractions land in <OutputDir>/<jobID>/<layer>_<format>_<hash>
	OutputDir string
}

type Extractor struct {
	log      *slog.Logger
	cfg      Config
	gate     PermissionChecker
	source   FeatureSource
	builder  *query.Builder
	writers  *output.Registry
	bbox     bbox.Writer
	observer StateObserver
	now      func() time.Time
}

func New(log *slog.Logger, cfg Config, gate PermissionChecker, source FeatureSource, writers *output.Registry, observer StateObserver) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Extractor{
		log:      log,
		cfg:      cfg,
		gate:     gate,
		source:   source,
		builder:  query.NewBuilder(log),
		writers:  writers,
		observer: observer,
		now:      time.Now,
	}
}

// Formats lists the formats a request may ask for.
func (e *Extractor) Formats() []model.Format { return e.writers.Formats() }

// Extract runs req. A request for a protocol family other than WFS is not
// an error: the result comes back with Skipped set.
func (e *Extractor) Extract(ctx context.Context, req model.ExtractionRequest) (res model.ExtractionResult, err error) {
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if err := model.ValidateJobID(req.JobID); err != nil {
		return res, err
	}
	ctx = logger.WithLayer(logger.WithJobID(ctx, req.JobID), req.Layer)
	res.JobID = req.JobID

	started := e.now()
	state := model.StateRequested
	formatLabel := "unknown"
	e.observer.Transition(ctx, model.Transition{JobID: req.JobID, State: state})
	defer func() {
		outcome := errs.Kind(err)
		if res.Skipped {
			outcome = "skipped"
		}
		observability.ObserveExtraction(formatLabel, outcome)
		if err != nil {
			e.log.WarnContext(ctx, "extraction failed", "state", state, "kind", errs.Kind(err), "err", err)
			e.observer.Transition(ctx, model.Transition{JobID: req.JobID, State: model.StateFailed, Reason: err.Error()})
			return
		}
		final := model.StateCompleted
		if res.Skipped {
			final = model.StateSkipped
		}
		e.observer.Transition(ctx, model.Transition{JobID: req.JobID, State: final})
		e.log.InfoContext(ctx, "extraction done",
			"state", final,
			"features", res.FeatureCount,
			"files", len(res.Files),
			"duration", e.now().Sub(started).String())
	}()

	stageStart := e.now()
	advance := func(s model.State) {
		observability.ObserveStage(string(s), e.now().Sub(stageStart).Seconds())
		stageStart = e.now()
		state = s
		e.observer.Transition(ctx, model.Transition{JobID: req.JobID, State: s})
	}

	// format first, before any network or file work
	format, writer, err := e.writers.Lookup(string(req.Format))
	if err != nil {
		return res, err
	}
	req.Format = format
	formatLabel = string(format)

	if req.OWSType != model.OWSTypeWFS {
		// decided before any call: a coverage layer is never in the WFS capabilities
		if _, err := e.builder.CreateQuery(req, model.LayerSchema{}); errors.Is(err, errs.ErrUnsupportedProtocol) {
			e.log.InfoContext(ctx, "protocol family not extracted", "ows_type", req.OWSType)
			res.Skipped = true
			return res, nil
		}
	}

	if err := e.gate.CheckPermission(ctx, req, e.cfg.Security.SecuredHost, req.Security.Username, req.Security.Roles); err != nil {
		return res, err
	}
	advance(model.StatePermissionChecked)

	conn := security.ConnectionFor(req, e.cfg.Security)
	schema, err := e.source.Schema(ctx, conn, req.Layer)
	if err != nil {
		return res, err
	}
	advance(model.StateSchemaFetched)

	q, err := e.builder.CreateQuery(req, schema)
	if errors.Is(err, errs.ErrUnsupportedProtocol) {
		res.Skipped = true
		return res, nil
	}
	if err != nil {
		return res, err
	}
	advance(model.StateQueryBuilt)

	fc, err := e.source.GetFeatures(ctx, conn, q)
	if err != nil {
		return res, err
	}
	res.FeatureCount = len(fc.Features)
	advance(model.StateFeaturesRetrieved)

	dir := filepath.Join(e.cfg.OutputDir, req.JobID, output.DirName(req))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	res.Dir = dir

	sink := newAbortSink(ctx, e.log)
	files, err := writer.GenerateFiles(ctx, output.Job{
		Progress:   sink,
		Format:     format,
		Schema:     schema,
		Dir:        dir,
		BaseName:   baseName(req),
		Features:   fc,
		Projection: q.OutputCRS,
	})
	if err == nil {
		err = sink.Err()
	}
	if err != nil {
		return res, fmt.Errorf("write %s features: %w", format, err)
	}
	res.Files = append(res.Files, files...)
	observability.AddFeaturesWritten(string(format), res.FeatureCount)
	advance(model.StateFeaturesWritten)

	boxFiles, err := e.bbox.Write(ctx, writer, sink, format, dir, req.BBox, req.Projection)
	if err == nil {
		err = sink.Err()
	}
	if err != nil {
		return res, fmt.Errorf("write bounding box: %w", err)
	}
	res.Files = append(res.Files, boxFiles...)
	advance(model.StateBBoxWritten)

	return res, nil
}

// baseName names the feature files. The bounding box files own
// bbox.BaseName, so a layer of that name gets a suffix.
func baseName(req model.ExtractionRequest) string {
	n := output.SanitizeName(req.LocalLayerName())
	switch {
	case n == "":
		return "layer"
	case strings.EqualFold(n, bbox.BaseName):
		return n + "_layer"
	}
	return n
}
