// Package query turns an extraction request and a layer schema into the
// spatial query sent to the feature service.
package query

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/crs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
)

// samples per envelope edge when reprojecting the request bbox
const reprojectionPoints = 10

// Intersects is the spatial predicate: Property intersects Geometry, whose
// coordinates are expressed in SRS.
type Intersects struct {
	Property string
	Geometry orb.Polygon
	SRS      string
}

type SpatialQuery struct {
	TypeName   string
	Filter     Intersects
	Equals     []model.PropertyFilter
	Properties []string
	// CRS of the filter literal, also the CRS features are requested in
	FilterCRS *crs.CRS
	// CRS features are delivered in
	OutputCRS   *crs.CRS
	MaxFeatures int
}

type Builder struct {
	log *slog.Logger
}

func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// CreateQuery builds the query for req against schema. Protocol families
// other than WFS yield errs.ErrUnsupportedProtocol and no query.
func (b *Builder) CreateQuery(req model.ExtractionRequest, schema model.LayerSchema) (*SpatialQuery, error) {
	switch req.OWSType {
	case model.OWSTypeWFS:
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedProtocol, req.OWSType)
	}

	bboxCRS, err := crs.Parse(req.BBox.SRID)
	if err != nil {
		return nil, fmt.Errorf("request bbox: %w", err)
	}

	// the bbox may not be in the data projection
	filterCRS := bboxCRS
	bound := req.BBox.Bound()
	if schema.NativeCRS != "" {
		native, err := crs.Parse(schema.NativeCRS)
		if err != nil {
			return nil, fmt.Errorf("layer %s native CRS: %w", schema.TypeName, err)
		}
		if !native.Equivalent(bboxCRS) {
			bound, err = crs.TransformBound(bound, bboxCRS, native, reprojectionPoints)
			if err != nil {
				return nil, err
			}
			b.log.Debug("reprojected request bbox",
				"from", bboxCRS.Identifier(), "to", native.Identifier(),
				"min", bound.Min, "max", bound.Max)
		}
		filterCRS = native
	}

	code, err := crs.LookupEPSG(filterCRS)
	if err != nil {
		return nil, err
	}

	geomProp := schema.GeometryProperty
	if _, ok := schema.PrimaryGeometry(); !ok || geomProp == "" {
		return nil, fmt.Errorf("%w: layer %s has no default geometry property",
			errs.ErrUnsupportedGeometryType, schema.TypeName)
	}

	outCRS := bboxCRS
	if req.Projection != "" {
		outCRS, err = crs.Parse(req.Projection)
		if err != nil {
			return nil, fmt.Errorf("output projection: %w", err)
		}
	}

	return &SpatialQuery{
		TypeName: schema.TypeName,
		Filter: Intersects{
			Property: geomProp,
			Geometry: bound.ToPolygon(),
			SRS:      fmt.Sprintf("EPSG:%d", code),
		},
		Equals:     append([]model.PropertyFilter(nil), req.Filters...),
		Properties: OutputProperties(schema),
		FilterCRS:  filterCRS,
		OutputCRS:  outCRS,
	}, nil
}

// OutputProperties lists every attribute plus the default geometry. Other
// geometry columns are dropped since single geometry formats cannot hold them.
func OutputProperties(schema model.LayerSchema) []string {
	out := make([]string, 0, len(schema.Properties))
	for _, p := range schema.Properties {
		if p.Geometry && p.Name != schema.GeometryProperty {
			continue
		}
		out = append(out, p.Name)
	}
	return out
}
