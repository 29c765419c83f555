// Package bbox writes the companion file describing the extraction area.
package bbox

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/crs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/geomtype"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/output"
)

const (
	BaseName           = "bounding_box"
	GeometryProperty   = "the_geom"
	ProjectionProperty = "projection"
)

// samples per edge when moving the bbox into the output projection
const densify = 10

// Schema is the layer schema of the bounding box file.
func Schema() model.LayerSchema {
	return model.LayerSchema{
		TypeName:         BaseName,
		GeometryProperty: GeometryProperty,
		Properties: []model.PropertyDescriptor{
			{Name: GeometryProperty, Geometry: true, Binding: geomtype.Polygon},
			{Name: ProjectionProperty, Type: "string", MaxLength: 64},
		},
	}
}

// Collection returns the one-feature collection holding box expressed in
// projection. An empty projection keeps the bbox CRS.
func Collection(box model.BBox, projection string) (*geojson.FeatureCollection, *crs.CRS, error) {
	from, err := crs.Parse(box.SRID)
	if err != nil {
		return nil, nil, fmt.Errorf("bbox CRS: %w", err)
	}
	to := from
	if projection != "" {
		if to, err = crs.Parse(projection); err != nil {
			return nil, nil, fmt.Errorf("output projection: %w", err)
		}
	}
	b, err := crs.TransformBound(box.Bound(), from, to, densify)
	if err != nil {
		return nil, nil, err
	}
	f := geojson.NewFeature(b.ToPolygon())
	f.Properties[ProjectionProperty] = to.Identifier()
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, to, nil
}

// Writer emits the bounding box through the writer chosen for the features
// so both files share a format.
type Writer struct{}

func (Writer) Write(ctx context.Context, w output.Writer, progress output.Progress, format model.Format, dir string, box model.BBox, projection string) ([]string, error) {
	fc, to, err := Collection(box, projection)
	if err != nil {
		return nil, err
	}
	return w.GenerateFiles(ctx, output.Job{
		Progress:   progress,
		Format:     format,
		Schema:     Schema(),
		Dir:        dir,
		BaseName:   BaseName,
		Features:   fc,
		Projection: to,
	})
}
