package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/config"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/wfs/wfstest"
	"github.com/mohammed-shakir/wfs-extractor/internal/jobs"
	"github.com/mohammed-shakir/wfs-extractor/internal/output/ogr"
)

type touchConverter struct{}

func (touchConverter) Convert(_ context.Context, _, dst string, _ ogr.Driver, _ string) error {
	return os.WriteFile(dst, []byte("converted"), 0o644)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		OutputDir:           t.TempDir(),
		WFSTimeout:          5 * time.Second,
		CapabilitiesTimeout: 5 * time.Second,
		SchemaCacheSize:     8,
		SchemaCacheTTL:      time.Minute,
		JobTTL:              time.Hour,
	}
}

func request(url string, f model.Format) model.ExtractionRequest {
	return model.ExtractionRequest{
		ServiceURL: url + "/geoserver/wfs",
		OWSType:    model.OWSTypeWFS,
		Layer:      "topp:parcels",
		Format:     f,
		BBox:       model.BBox{X1: 9, Y1: 9, X2: 16, Y2: 16, SRID: "EPSG:4326"},
		Projection: "EPSG:4326",
	}
}

func TestService_RunRecordsCompletedJob(t *testing.T) {
	srv := wfstest.NewParcels()
	defer srv.Close()

	s, err := New(context.Background(), testConfig(t), discard(), Deps{Converter: touchConverter{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	res, err := s.Run(context.Background(), request(srv.URL, model.FormatKml))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.JobID == "" || res.FeatureCount != 3 {
		t.Fatalf("unexpected result %+v", res)
	}

	job, err := s.Job(context.Background(), res.JobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job.State != model.StateCompleted || job.Result == nil || job.Result.Dir != res.Dir {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Format != model.FormatKml || job.Layer != "topp:parcels" {
		t.Fatalf("job header %+v", job)
	}
}

func TestService_FailedJobKeepsReason(t *testing.T) {
	srv := wfstest.NewParcels()
	defer srv.Close()
	srv.Capabilities = `<WFS_Capabilities><FeatureTypeList></FeatureTypeList></WFS_Capabilities>`

	s, err := New(context.Background(), testConfig(t), discard(), Deps{Converter: touchConverter{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := request(srv.URL, model.FormatShp)
	req.JobID = "denied-1"
	if _, err := s.Run(context.Background(), req); !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("err=%v want ErrAccessDenied", err)
	}
	job, err := s.Job(context.Background(), "denied-1")
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job.State != model.StateFailed || job.Reason == "" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestService_RedisJobStore(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := wfstest.NewParcels()
	defer srv.Close()

	cfg := testConfig(t)
	cfg.JobsEnabled = true
	cfg.RedisAddr = mr.Addr()
	s, err := New(context.Background(), cfg, discard(), Deps{Converter: touchConverter{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	res, err := s.Run(context.Background(), request(srv.URL, model.FormatShp))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("redis keys=%v want one job", mr.Keys())
	}
	job, err := s.Job(context.Background(), res.JobID)
	if err != nil || job.State != model.StateCompleted {
		t.Fatalf("job=%+v err=%v", job, err)
	}
	if _, err := s.Job(context.Background(), "missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}

	checks := s.Checks()
	if len(checks) != 2 || checks[0].Name != "output_dir" || checks[1].Name != "job_store" {
		t.Fatalf("checks=%v", checks)
	}
	for _, c := range checks {
		if err := c.Run(context.Background()); err != nil {
			t.Fatalf("%s: %v", c.Name, err)
		}
	}
	mr.SetError("ERR job store unavailable")
	if err := checks[1].Run(context.Background()); err == nil {
		t.Fatalf("job store check must fail while redis errors")
	}
}

func TestService_RejectsUnsafeJobIDBeforeTracking(t *testing.T) {
	srv := wfstest.NewParcels()
	defer srv.Close()

	s, err := New(context.Background(), testConfig(t), discard(), Deps{Converter: touchConverter{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	req := request(srv.URL, model.FormatShp)
	req.JobID = "../../escaped"
	if _, err := s.Run(context.Background(), req); !errors.Is(err, model.ErrInvalidJobID) {
		t.Fatalf("err=%v want ErrInvalidJobID", err)
	}
	if _, err := s.Job(context.Background(), req.JobID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("unsafe id must not be tracked, err=%v", err)
	}
	if len(srv.Requests()) != 0 {
		t.Fatalf("no upstream call expected")
	}
}

func TestWriters_RegistersAllFormats(t *testing.T) {
	got := Writers(discard(), touchConverter{}).Formats()
	if len(got) != 4 {
		t.Fatalf("formats=%v", got)
	}
}
