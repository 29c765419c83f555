// Package geomtype classifies geometry bindings into the buckets used to
// split output files that can only hold one kind of shape.
package geomtype

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
)

type Binding string

const (
	Point              Binding = "Point"
	MultiPoint         Binding = "MultiPoint"
	LineString         Binding = "LineString"
	LinearRing         Binding = "LinearRing"
	MultiLineString    Binding = "MultiLineString"
	Polygon            Binding = "Polygon"
	MultiPolygon       Binding = "MultiPolygon"
	Geometry           Binding = "Geometry"
	GeometryCollection Binding = "GeometryCollection"
)

type Bucket int

const (
	BucketPoint Bucket = iota + 1
	BucketLine
	BucketPolygon
	BucketGeometry
)

func (b Bucket) String() string {
	switch b {
	case BucketPoint:
		return "point"
	case BucketLine:
		return "line"
	case BucketPolygon:
		return "polygon"
	case BucketGeometry:
		return "geometry"
	default:
		return "unknown"
	}
}

// Classify maps a binding to its bucket. Single and multi variants share a
// bucket since writers always store the multi variant.
func Classify(b Binding) (Bucket, error) {
	switch b {
	case Polygon, MultiPolygon:
		return BucketPolygon, nil
	case LineString, LinearRing, MultiLineString:
		return BucketLine, nil
	case Point, MultiPoint:
		return BucketPoint, nil
	case Geometry, GeometryCollection:
		return BucketGeometry, nil
	default:
		return 0, fmt.Errorf("%w: %q is not a recognized geometry type", errs.ErrUnsupportedGeometryType, string(b))
	}
}

var aliases = map[string]Binding{
	"point":              Point,
	"multipoint":         MultiPoint,
	"line":               LineString,
	"linestring":         LineString,
	"curve":              LineString,
	"linearring":         LinearRing,
	"multilinestring":    MultiLineString,
	"multiline":          MultiLineString,
	"multicurve":         MultiLineString,
	"polygon":            Polygon,
	"surface":            Polygon,
	"multipolygon":       MultiPolygon,
	"multisurface":       MultiPolygon,
	"geometry":           Geometry,
	"geometrycollection": GeometryCollection,
	"multigeometry":      GeometryCollection,
}

// ParseBinding accepts plain names ("multipolygon") and GML property types
// ("gml:MultiPolygonPropertyType").
func ParseBinding(s string) (Binding, error) {
	n := strings.TrimSpace(s)
	if i := strings.LastIndexByte(n, ':'); i >= 0 {
		n = n[i+1:]
	}
	n = strings.TrimSuffix(n, "PropertyType")
	if b, ok := aliases[strings.ToLower(n)]; ok {
		return b, nil
	}
	return "", fmt.Errorf("%w: %q", errs.ErrUnsupportedGeometryType, s)
}

// IsGMLGeometryType reports whether an xsd element type refers to a GML geometry.
func IsGMLGeometryType(xsdType string) bool {
	t := strings.TrimSpace(xsdType)
	if !strings.HasPrefix(t, "gml:") || !strings.HasSuffix(t, "PropertyType") {
		return false
	}
	_, err := ParseBinding(t)
	return err == nil
}

// BindingOf returns the binding of a concrete geometry value.
func BindingOf(g orb.Geometry) (Binding, error) {
	switch g.(type) {
	case orb.Point:
		return Point, nil
	case orb.MultiPoint:
		return MultiPoint, nil
	case orb.LineString:
		return LineString, nil
	case orb.Ring:
		return LinearRing, nil
	case orb.MultiLineString:
		return MultiLineString, nil
	case orb.Polygon, orb.Bound:
		return Polygon, nil
	case orb.MultiPolygon:
		return MultiPolygon, nil
	case orb.Collection:
		return GeometryCollection, nil
	default:
		return "", fmt.Errorf("%w: %T", errs.ErrUnsupportedGeometryType, g)
	}
}

func BucketOf(g orb.Geometry) (Bucket, error) {
	b, err := BindingOf(g)
	if err != nil {
		return 0, err
	}
	return Classify(b)
}
