// Package shp writes features as ESRI shapefiles. A shapefile holds a
// single shape type, so layers of mixed geometry are split per bucket.
package shp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	goshp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/geomtype"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/output"
)

const (
	maxFieldName = 10
	maxString    = 254
)

type Writer struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{log: log}
}

// GenerateFiles writes one shapefile for the layer bucket, or one per
// present bucket (<base>_point, <base>_line, <base>_polygon) when the layer
// geometry is generic.
func (w *Writer) GenerateFiles(ctx context.Context, job output.Job) ([]string, error) {
	geom, ok := job.Schema.PrimaryGeometry()
	if !ok {
		return nil, fmt.Errorf("layer %s has no geometry property", job.Schema.TypeName)
	}
	bucket, err := geomtype.Classify(geom.Binding)
	if err != nil {
		return nil, err
	}

	var features []*geojson.Feature
	if job.Features != nil {
		features = job.Features.Features
	}

	if bucket != geomtype.BucketGeometry {
		return w.writeBucket(ctx, job, job.BaseName, bucket, features)
	}

	split := map[geomtype.Bucket][]*geojson.Feature{}
	for i, f := range features {
		b, err := geomtype.BucketOf(f.Geometry)
		if err != nil || b == geomtype.BucketGeometry {
			job.Progress.Warning(fmt.Sprintf("feature %d: geometry %T cannot be stored in a shapefile", i, f.Geometry))
			continue
		}
		split[b] = append(split[b], f)
	}
	var files []string
	for _, b := range []geomtype.Bucket{geomtype.BucketPoint, geomtype.BucketLine, geomtype.BucketPolygon} {
		if len(split[b]) == 0 {
			continue
		}
		out, err := w.writeBucket(ctx, job, job.BaseName+"_"+b.String(), b, split[b])
		if err != nil {
			return files, err
		}
		files = append(files, out...)
	}
	return files, nil
}

func shapeType(b geomtype.Bucket) goshp.ShapeType {
	switch b {
	case geomtype.BucketPoint:
		return goshp.MULTIPOINT
	case geomtype.BucketLine:
		return goshp.POLYLINE
	default:
		return goshp.POLYGON
	}
}

func (w *Writer) writeBucket(ctx context.Context, job output.Job, base string, bucket geomtype.Bucket, features []*geojson.Feature) ([]string, error) {
	shpPath := filepath.Join(job.Dir, base+".shp")
	sw, err := goshp.Create(shpPath, shapeType(bucket))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", shpPath, err)
	}
	closed := false
	defer func() {
		if !closed {
			sw.Close()
		}
	}()

	attrs := job.Schema.Attributes()
	fields := dbfFields(attrs)
	if len(fields) == 0 {
		// dbf needs at least one column
		fields = []goshp.Field{goshp.NumberField("ID", 10)}
	}
	if err := sw.SetFields(fields); err != nil {
		return nil, fmt.Errorf("set fields on %s: %w", shpPath, err)
	}

	row := 0
	for i, f := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if job.Progress.Canceled() {
			return nil, context.Canceled
		}
		shape, ok := toShape(f.Geometry, bucket)
		if !ok {
			job.Progress.Warning(fmt.Sprintf("feature %d: %T does not fit a %s shapefile", i, f.Geometry, bucket))
			continue
		}
		sw.Write(shape)
		if len(attrs) == 0 {
			if err := sw.WriteAttribute(row, 0, row+1); err != nil {
				return nil, fmt.Errorf("write id %d: %w", row, err)
			}
		}
		for col, a := range attrs {
			v, ok := attributeValue(f.Properties[a.Name], fields[col])
			if !ok {
				continue
			}
			if err := sw.WriteAttribute(row, col, v); err != nil {
				// value wider than the column, the cell stays empty
				job.Progress.Warning(fmt.Sprintf("feature %d attribute %s: %v", i, a.Name, err))
			}
		}
		row++
	}
	sw.Close()
	closed = true

	dbf, err := placeDBF(job.Dir, base)
	if err != nil {
		return nil, err
	}
	files := []string{shpPath, filepath.Join(job.Dir, base+".shx"), dbf}
	if job.Projection != nil && job.Projection.WKT() != "" {
		prj := filepath.Join(job.Dir, base+".prj")
		if err := os.WriteFile(prj, []byte(job.Projection.WKT()), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", prj, err)
		}
		files = append(files, prj)
	}
	cpg := filepath.Join(job.Dir, base+".cpg")
	if err := os.WriteFile(cpg, []byte("UTF-8"), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", cpg, err)
	}
	files = append(files, cpg)
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("shapefile part missing: %w", err)
		}
	}

	w.log.DebugContext(ctx, "shapefile written", "file", shpPath, "bucket", bucket.String(), "rows", row)
	return files, nil
}

// placeDBF moves the table go-shp writes as "<base>dbf" to "<base>.dbf".
func placeDBF(dir, base string) (string, error) {
	want := filepath.Join(dir, base+".dbf")
	got := filepath.Join(dir, base+"dbf")
	if _, err := os.Stat(got); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return want, nil
		}
		return "", fmt.Errorf("stat %s: %w", got, err)
	}
	if err := os.Rename(got, want); err != nil {
		return "", fmt.Errorf("rename %s: %w", got, err)
	}
	return want, nil
}

// FieldNames truncates attribute names to the 10 characters a dbf allows,
// suffixing digits to keep them unique.
func FieldNames(names []string) []string {
	out := make([]string, len(names))
	seen := map[string]bool{}
	for i, n := range names {
		cand := truncate(n, maxFieldName)
		for k := 1; seen[strings.ToUpper(cand)]; k++ {
			suffix := strconv.Itoa(k)
			cand = truncate(n, maxFieldName-len(suffix)) + suffix
		}
		seen[strings.ToUpper(cand)] = true
		out[i] = cand
	}
	return out
}

func dbfFields(attrs []model.PropertyDescriptor) []goshp.Field {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	names = FieldNames(names)

	fields := make([]goshp.Field, len(attrs))
	for i, a := range attrs {
		switch strings.ToLower(a.Type) {
		case "int", "integer", "long", "short", "byte", "nonnegativeinteger", "positiveinteger":
			fields[i] = goshp.NumberField(names[i], 18)
		case "double", "float", "decimal":
			fields[i] = goshp.FloatField(names[i], 33, 15)
		case "boolean":
			fields[i] = goshp.StringField(names[i], 5)
		default:
			n := maxString
			if a.MaxLength > 0 && a.MaxLength < maxString {
				n = a.MaxLength
			}
			fields[i] = goshp.StringField(names[i], uint8(n))
		}
	}
	return fields
}

// attributeValue converts a GeoJSON property to the value type go-shp
// accepts for the field. ok is false for null values.
func attributeValue(v any, f goshp.Field) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch f.Fieldtype {
	case 'N':
		switch n := v.(type) {
		case float64:
			return int(n), true
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i, true
			}
		case bool:
			if n {
				return 1, true
			}
			return 0, true
		}
		return nil, false
	case 'F':
		switch n := v.(type) {
		case float64:
			return n, true
		case string:
			if x, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return x, true
			}
		}
		return nil, false
	default:
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(x)
		default:
			s = fmt.Sprint(x)
		}
		return truncate(s, int(f.Size)), true
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func toShape(g orb.Geometry, bucket geomtype.Bucket) (goshp.Shape, bool) {
	switch bucket {
	case geomtype.BucketPoint:
		var pts orb.MultiPoint
		switch v := g.(type) {
		case orb.Point:
			pts = orb.MultiPoint{v}
		case orb.MultiPoint:
			pts = v
		default:
			return nil, false
		}
		out := make([]goshp.Point, len(pts))
		for i, p := range pts {
			out[i] = goshp.Point{X: p[0], Y: p[1]}
		}
		return &goshp.MultiPoint{Box: goshp.BBoxFromPoints(out), NumPoints: int32(len(out)), Points: out}, true
	case geomtype.BucketLine:
		var lines orb.MultiLineString
		switch v := g.(type) {
		case orb.LineString:
			lines = orb.MultiLineString{v}
		case orb.Ring:
			lines = orb.MultiLineString{orb.LineString(v)}
		case orb.MultiLineString:
			lines = v
		default:
			return nil, false
		}
		parts := make([][]goshp.Point, len(lines))
		for i, ls := range lines {
			parts[i] = points(ls)
		}
		return goshp.NewPolyLine(parts), true
	case geomtype.BucketPolygon:
		var polys orb.MultiPolygon
		switch v := g.(type) {
		case orb.Polygon:
			polys = orb.MultiPolygon{v}
		case orb.MultiPolygon:
			polys = v
		case orb.Bound:
			polys = orb.MultiPolygon{v.ToPolygon()}
		default:
			return nil, false
		}
		var parts [][]goshp.Point
		for _, poly := range polys {
			for i, r := range poly {
				// outer rings clockwise, holes counter clockwise
				want := orb.CW
				if i > 0 {
					want = orb.CCW
				}
				ring := orb.Ring(append([]orb.Point(nil), r...))
				if ring.Orientation() != want {
					ring.Reverse()
				}
				parts = append(parts, points(ring))
			}
		}
		p := goshp.Polygon(*goshp.NewPolyLine(parts))
		return &p, true
	}
	return nil, false
}

func points[T ~[]orb.Point](ps T) []goshp.Point {
	out := make([]goshp.Point, len(ps))
	for i, p := range ps {
		out[i] = goshp.Point{X: p[0], Y: p[1]}
	}
	return out
}
