// Package crs resolves coordinate reference system identifiers and
// transforms coordinates and envelopes between them. Transformations come
// from the EPSG repository of wroge/wgs84, datum shifts included.
package crs

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
)

type CRS struct {
	Code       int
	Name       string
	Geographic bool

	wkt string
}

func (c *CRS) Identifier() string {
	return "EPSG:" + strconv.Itoa(c.Code)
}

func (c *CRS) String() string { return c.Identifier() }

// WKT returns the ESRI flavoured definition written to .prj files, or ""
// when none is known for the code.
func (c *CRS) WKT() string { return c.wkt }

// Equivalent reports whether coordinates in c and o need no transformation.
func (c *CRS) Equivalent(o *CRS) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.Code == o.Code
}

var identity orb.Projection = func(p orb.Point) orb.Point { return p }

var (
	repoOnce  sync.Once
	repo      = wgs84.EPSG()
	repoCodes map[int]bool
)

func known(code int) bool {
	repoOnce.Do(func() {
		repoCodes = map[int]bool{}
		for _, c := range repo.Codes() {
			repoCodes[c] = true
		}
	})
	return repoCodes[code]
}

// codes that are aliases of another registered system
var aliases = map[int]int{
	900913: 3857,
	3785:   3857,
	102100: 3857,
	102113: 3857,
}

// geographic systems among the ones a WFS commonly advertises
var geographic = map[int]bool{4326: true, 4258: true, 4269: true, 4171: true, 4167: true, 4283: true, 4314: true, 4277: true}

// FromEPSG returns the system registered under code.
func FromEPSG(code int) (*CRS, error) {
	if a, ok := aliases[code]; ok {
		code = a
	}
	if !known(code) {
		return nil, errs.Reprojection("no transform available for EPSG:%d", code)
	}
	name, wkt := describe(code)
	return &CRS{Code: code, Name: name, Geographic: geographic[code], wkt: wkt}, nil
}

// Parse resolves identifiers such as "EPSG:4326", "urn:ogc:def:crs:EPSG::2154",
// "http://www.opengis.net/gml/srs/epsg.xml#3857" and "CRS:84".
func Parse(id string) (*CRS, error) {
	s := strings.TrimSpace(id)
	if s == "" {
		return nil, errs.Reprojection("empty CRS identifier")
	}
	up := strings.ToUpper(s)
	if up == "CRS:84" || strings.HasSuffix(up, "OGC:1.3:CRS84") || strings.HasSuffix(up, "OGC::CRS84") {
		return FromEPSG(4326)
	}
	var digits string
	switch {
	case strings.HasPrefix(up, "EPSG:"):
		digits = s[len("EPSG:"):]
	case strings.HasPrefix(up, "URN:") && strings.Contains(up, ":EPSG:"):
		digits = s[strings.LastIndexByte(s, ':')+1:]
	case strings.Contains(up, "EPSG.XML#"):
		digits = s[strings.LastIndexByte(s, '#')+1:]
	case strings.HasPrefix(up, "HTTP://WWW.OPENGIS.NET/DEF/CRS/EPSG/"):
		digits = s[strings.LastIndexByte(s, '/')+1:]
	default:
		digits = s
	}
	code, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil {
		return nil, errs.Reprojection("cannot parse CRS identifier %q", id)
	}
	return FromEPSG(code)
}

// LookupEPSG returns the EPSG code of c. Systems without one are an error
// because filters are always sent with an explicit srsName.
func LookupEPSG(c *CRS) (int, error) {
	if c == nil || c.Code <= 0 {
		return 0, errs.Reprojection("unable to look up EPSG code for CRS %v", c)
	}
	return c.Code, nil
}

// Transformer returns a projection mapping coordinates in from to coordinates in to.
// Geographic coordinates are longitude first.
func Transformer(from, to *CRS) orb.Projection {
	if from.Equivalent(to) {
		return identity
	}
	fn := repo.Transform(from.Code, to.Code)
	return func(p orb.Point) orb.Point {
		x, y, _ := fn(p[0], p[1], 0)
		return orb.Point{x, y}
	}
}

// TransformPoint transforms a single coordinate and fails on non-finite output.
func TransformPoint(p orb.Point, from, to *CRS) (orb.Point, error) {
	out := Transformer(from, to)(p)
	if !finite(out) {
		return orb.Point{}, errs.Reprojection("point %v has no image from %s to %s", p, from, to)
	}
	return out, nil
}

// TransformBound reprojects an envelope. Each edge is sampled at n points
// so curved images of straight edges are enclosed by the result.
func TransformBound(b orb.Bound, from, to *CRS, n int) (orb.Bound, error) {
	if from.Equivalent(to) {
		return b, nil
	}
	if n < 1 {
		n = 1
	}
	tr := Transformer(from, to)
	var out orb.Bound
	first := true
	add := func(p orb.Point) error {
		q := tr(p)
		if !finite(q) {
			return errs.Reprojection("envelope %v cannot be transformed from %s to %s", b, from, to)
		}
		if first {
			out = orb.Bound{Min: q, Max: q}
			first = false
			return nil
		}
		out = out.Extend(q)
		return nil
	}
	dx := (b.Max[0] - b.Min[0]) / float64(n)
	dy := (b.Max[1] - b.Min[1]) / float64(n)
	for i := 0; i <= n; i++ {
		x := b.Min[0] + float64(i)*dx
		y := b.Min[1] + float64(i)*dy
		for _, p := range []orb.Point{
			{x, b.Min[1]}, {x, b.Max[1]},
			{b.Min[0], y}, {b.Max[0], y},
		} {
			if err := add(p); err != nil {
				return orb.Bound{}, err
			}
		}
	}
	return out, nil
}

// TransformGeometry returns a reprojected copy of g.
func TransformGeometry(g orb.Geometry, from, to *CRS) (orb.Geometry, error) {
	if g == nil || from.Equivalent(to) {
		return g, nil
	}
	out := project.Geometry(orb.Clone(g), Transformer(from, to))
	bad := false
	walkPoints(out, func(p orb.Point) {
		if !finite(p) {
			bad = true
		}
	})
	if bad {
		return nil, errs.Reprojection("geometry cannot be transformed from %s to %s", from, to)
	}
	return out, nil
}

func walkPoints(g orb.Geometry, fn func(orb.Point)) {
	switch v := g.(type) {
	case orb.Point:
		fn(v)
	case orb.MultiPoint:
		for _, p := range v {
			fn(p)
		}
	case orb.LineString:
		for _, p := range v {
			fn(p)
		}
	case orb.Ring:
		for _, p := range v {
			fn(p)
		}
	case orb.MultiLineString:
		for _, ls := range v {
			walkPoints(ls, fn)
		}
	case orb.Polygon:
		for _, r := range v {
			walkPoints(r, fn)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			walkPoints(p, fn)
		}
	case orb.Collection:
		for _, c := range v {
			walkPoints(c, fn)
		}
	case orb.Bound:
		fn(v.Min)
		fn(v.Max)
	}
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
