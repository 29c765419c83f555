// Package ogr writes formats the service has no native writer for by
// converting a GeoJSON staging file with an external converter.
package ogr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/output"
)

// Driver names an OGR output driver and its dataset creation options.
type Driver struct {
	Name      string
	Extension string
	Options   []string
}

// DriverFor maps an output format to its OGR driver.
func DriverFor(f model.Format) (Driver, error) {
	switch f {
	case model.FormatMif:
		return Driver{Name: "MapInfo File", Extension: ".mif", Options: []string{"FORMAT=MIF"}}, nil
	case model.FormatTab:
		return Driver{Name: "MapInfo File", Extension: ".tab"}, nil
	case model.FormatKml:
		return Driver{Name: "KML", Extension: ".kml"}, nil
	default:
		return Driver{}, fmt.Errorf("%w: no converter driver for %q", errs.ErrUnsupportedFormat, f)
	}
}

// Converter turns the GeoJSON file src into dst with driver. srs is the
// EPSG identifier of the coordinates and may be empty.
type Converter interface {
	Convert(ctx context.Context, src, dst string, driver Driver, srs string) error
}

// Exec runs the ogr2ogr executable.
type Exec struct {
	Path string
}

func (e Exec) Convert(ctx context.Context, src, dst string, driver Driver, srs string) error {
	path := e.Path
	if path == "" {
		path = "ogr2ogr"
	}
	args := []string{"-f", driver.Name, "-overwrite"}
	for _, o := range driver.Options {
		args = append(args, "-dsco", o)
	}
	if srs != "" {
		args = append(args, "-a_srs", srs)
	}
	args = append(args, dst, src)

	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", path, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

type Writer struct {
	log       *slog.Logger
	converter Converter
}

func New(log *slog.Logger, converter Converter) *Writer {
	if log == nil {
		log = slog.Default()
	}
	if converter == nil {
		converter = Exec{}
	}
	return &Writer{log: log, converter: converter}
}

// GenerateFiles stages the features as GeoJSON next to the output and
// converts them. The staging file is always removed.
func (w *Writer) GenerateFiles(ctx context.Context, job output.Job) ([]string, error) {
	driver, err := DriverFor(job.Format)
	if err != nil {
		return nil, err
	}

	fc := job.Features
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode staging collection: %w", err)
	}
	staging := filepath.Join(job.Dir, "."+job.BaseName+".staging.geojson")
	if err := os.WriteFile(staging, data, 0o600); err != nil {
		return nil, fmt.Errorf("write staging file: %w", err)
	}
	defer func() {
		if err := os.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
			job.Progress.Warning(fmt.Sprintf("remove staging file: %v", err))
		}
	}()

	var srs string
	if job.Projection != nil {
		srs = job.Projection.Identifier()
	}
	dst := filepath.Join(job.Dir, job.BaseName+driver.Extension)
	if err := w.converter.Convert(ctx, staging, dst, driver, srs); err != nil {
		return nil, fmt.Errorf("convert to %s: %w", driver.Name, err)
	}

	files, err := produced(job.Dir, job.BaseName)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		err := fmt.Errorf("converter reported success but wrote no %s file for %s", driver.Name, job.BaseName)
		job.Progress.ExceptionOccurred(err)
		return nil, err
	}
	w.log.DebugContext(ctx, "converted", "driver", driver.Name, "files", len(files))
	return files, nil
}

// produced lists the files named base.* in dir; MapInfo writes several
// companions (.dat, .id, .map, .mid) next to the main file.
func produced(dir, base string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(base)+".*"))
	if err != nil {
		return nil, fmt.Errorf("list converter output: %w", err)
	}
	return matches, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}
