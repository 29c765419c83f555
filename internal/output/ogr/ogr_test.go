package ogr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/crs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/output"
)

type progress struct {
	warnings []string
	errs     []error
}

func (p *progress) Warning(msg string)          { p.warnings = append(p.warnings, msg) }
func (p *progress) ExceptionOccurred(err error) { p.errs = append(p.errs, err) }
func (p *progress) Canceled() bool              { return false }

type fakeConverter struct {
	src, dst, srs string
	driver        Driver
	staged        []byte
	write         bool
}

func (f *fakeConverter) Convert(_ context.Context, src, dst string, driver Driver, srs string) error {
	f.src, f.dst, f.driver, f.srs = src, dst, driver, srs
	f.staged, _ = os.ReadFile(src)
	if !f.write {
		return nil
	}
	return os.WriteFile(dst, []byte("converted"), 0o644)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func job(t *testing.T, f model.Format) output.Job {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{2.35, 48.85}))
	lambert, err := crs.FromEPSG(2154)
	if err != nil {
		t.Fatalf("FromEPSG: %v", err)
	}
	return output.Job{
		Progress: &progress{}, Format: f, Dir: t.TempDir(), BaseName: "parcels",
		Features: fc, Projection: lambert,
	}
}

func TestDriverFor(t *testing.T) {
	cases := []struct {
		f    model.Format
		name string
		ext  string
		opts int
	}{
		{model.FormatMif, "MapInfo File", ".mif", 1},
		{model.FormatTab, "MapInfo File", ".tab", 0},
		{model.FormatKml, "KML", ".kml", 0},
	}
	for _, tc := range cases {
		d, err := DriverFor(tc.f)
		if err != nil {
			t.Fatalf("DriverFor(%s): %v", tc.f, err)
		}
		if d.Name != tc.name || d.Extension != tc.ext || len(d.Options) != tc.opts {
			t.Fatalf("DriverFor(%s)=%+v", tc.f, d)
		}
	}
	if _, err := DriverFor(model.FormatShp); !errors.Is(err, errs.ErrUnsupportedFormat) {
		t.Fatalf("shp has a native writer, err=%v", err)
	}
}

func TestGenerateFiles_StagesAndCleansUp(t *testing.T) {
	conv := &fakeConverter{write: true}
	j := job(t, model.FormatKml)

	files, err := New(discard(), conv).GenerateFiles(context.Background(), j)
	if err != nil {
		t.Fatalf("GenerateFiles: %v", err)
	}
	if len(files) != 1 || files[0] != filepath.Join(j.Dir, "parcels.kml") {
		t.Fatalf("files=%v", files)
	}
	if conv.srs != "EPSG:2154" || conv.driver.Name != "KML" {
		t.Fatalf("converter got srs=%q driver=%+v", conv.srs, conv.driver)
	}
	if !strings.Contains(string(conv.staged), `"FeatureCollection"`) {
		t.Fatalf("staging file was not GeoJSON: %s", conv.staged)
	}
	if _, err := os.Stat(conv.src); !os.IsNotExist(err) {
		t.Fatalf("staging file must be removed, stat err=%v", err)
	}
}

func TestGenerateFiles_NoOutputIsException(t *testing.T) {
	conv := &fakeConverter{}
	j := job(t, model.FormatTab)

	_, err := New(discard(), conv).GenerateFiles(context.Background(), j)
	if err == nil {
		t.Fatalf("expected error when converter wrote nothing")
	}
	if p := j.Progress.(*progress); len(p.errs) != 1 {
		t.Fatalf("exception must be reported to progress, got %v", p.errs)
	}
}

func TestExec_InvokesOgr2ogr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ogr2ogr")
	body := "#!/bin/sh\nprintf '%s\\n' \"$@\" > \"$(dirname \"$0\")/args.txt\"\nfor a; do prev2=$prev; prev=$a; done\n: > \"$prev2\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	dst := filepath.Join(dir, "out.mif")
	drv, _ := DriverFor(model.FormatMif)
	if err := (Exec{Path: script}).Convert(context.Background(), "in.geojson", dst, drv, "EPSG:4326"); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	want := strings.Join([]string{"-f", "MapInfo File", "-overwrite", "-dsco", "FORMAT=MIF", "-a_srs", "EPSG:4326", dst, "in.geojson"}, "\n") + "\n"
	if string(args) != want {
		t.Fatalf("args got\n%s\nwant\n%s", args, want)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("dst not created: %v", err)
	}
}

func TestExec_FailureCarriesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "ogr2ogr")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'FAILURE: bad driver' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	err := (Exec{Path: script}).Convert(context.Background(), "a", "b", Driver{Name: "KML"}, "")
	if err == nil || !strings.Contains(err.Error(), "FAILURE: bad driver") {
		t.Fatalf("err=%v want stderr in message", err)
	}
}
