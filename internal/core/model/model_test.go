package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/geomtype"
)

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"shp", "SHP", " Kml ", "mif", "TAB"} {
		if _, err := ParseFormat(in); err != nil {
			t.Fatalf("ParseFormat(%q): %v", in, err)
		}
	}
	for _, in := range []string{"", "geojson", "gpkg"} {
		if _, err := ParseFormat(in); !errors.Is(err, errs.ErrUnsupportedFormat) {
			t.Fatalf("ParseFormat(%q) err=%v want ErrUnsupportedFormat", in, err)
		}
	}
}

func TestParseOWSType(t *testing.T) {
	if got, _ := ParseOWSType(""); got != OWSTypeWFS {
		t.Fatalf("empty type got %q want WFS", got)
	}
	if got, _ := ParseOWSType("wcs"); got != OWSTypeWCS {
		t.Fatalf("wcs got %q", got)
	}
	if _, err := ParseOWSType("WMS"); !errors.Is(err, errs.ErrUnsupportedProtocol) {
		t.Fatalf("WMS err=%v", err)
	}
}

func TestLayerNames(t *testing.T) {
	r := ExtractionRequest{Layer: "topp:parcels"}
	if r.Namespace() != "topp" || r.LocalLayerName() != "parcels" {
		t.Fatalf("got %q %q", r.Namespace(), r.LocalLayerName())
	}
	r.Layer = "parcels"
	if r.Namespace() != "" || r.LocalLayerName() != "parcels" {
		t.Fatalf("got %q %q", r.Namespace(), r.LocalLayerName())
	}
}

func TestRequestDoc_ToRequest(t *testing.T) {
	doc := RequestDoc{
		ServiceURL: " http://geo.example.org/wfs ",
		Layer:      "topp:parcels",
		Format:     "KML",
		BBox:       BBoxDoc{X1: 1, Y1: 2, X2: 3, Y2: 4, SRID: "EPSG:4326"},
	}
	req, err := doc.ToRequest(SecurityContext{Username: "alice"})
	if err != nil {
		t.Fatalf("ToRequest: %v", err)
	}
	if req.ServiceURL != "http://geo.example.org/wfs" || req.OWSType != OWSTypeWFS || req.Format != "KML" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.BBox.String() != "1.000000,2.000000,3.000000,4.000000,EPSG:4326" {
		t.Fatalf("bbox=%s", req.BBox)
	}

	bad := []RequestDoc{
		{Layer: "a", BBox: doc.BBox},
		{ServiceURL: "http://x", BBox: doc.BBox},
		{ServiceURL: "http://x", Layer: "a", OWSType: "WMS", BBox: doc.BBox},
		{ServiceURL: "http://x", Layer: "a", BBox: BBoxDoc{X1: 3, Y1: 2, X2: 1, Y2: 4, SRID: "EPSG:4326"}},
		{ServiceURL: "http://x", Layer: "a", BBox: BBoxDoc{X1: 1, Y1: 2, X2: 3, Y2: 4}},
	}
	for _, d := range bad {
		if _, err := d.ToRequest(SecurityContext{}); err == nil {
			t.Fatalf("expected error for %+v", d)
		}
	}
}

func TestValidateJobID(t *testing.T) {
	ok := []string{"6f1c2d7e-8a90-4b1e-9c3d-2f4a5b6c7d8e", "job_42", "A"}
	for _, id := range ok {
		if err := ValidateJobID(id); err != nil {
			t.Fatalf("ValidateJobID(%q): %v", id, err)
		}
	}
	bad := []string{"", ".", "..", "../../escaped", "a/b", `a\b`, "/abs", "-lead", "job id", "x.y", strings.Repeat("a", 129)}
	for _, id := range bad {
		if err := ValidateJobID(id); !errors.Is(err, ErrInvalidJobID) {
			t.Fatalf("ValidateJobID(%q) got %v want ErrInvalidJobID", id, err)
		}
	}
}

func TestRequestDoc_ToRequestRejectsTraversalJobID(t *testing.T) {
	doc := RequestDoc{
		JobID:      "../../escaped",
		ServiceURL: "http://geo.example.org/wfs",
		Layer:      "topp:parcels",
		BBox:       BBoxDoc{X1: 1, Y1: 2, X2: 3, Y2: 4, SRID: "EPSG:4326"},
	}
	if _, err := doc.ToRequest(SecurityContext{}); !errors.Is(err, ErrInvalidJobID) {
		t.Fatalf("got %v want ErrInvalidJobID", err)
	}
	doc.JobID = " job-1 "
	req, err := doc.ToRequest(SecurityContext{})
	if err != nil || req.JobID != "job-1" {
		t.Fatalf("got %q, %v want job-1", req.JobID, err)
	}
}

func TestParseRoles(t *testing.T) {
	got := ParseRoles(" ROLE_A;ROLE_B, ROLE_C;;")
	if len(got) != 3 || got[0] != "ROLE_A" || got[2] != "ROLE_C" {
		t.Fatalf("got %v", got)
	}
	if ParseRoles("") != nil {
		t.Fatalf("empty header must give no roles")
	}
	if h := (SecurityContext{Roles: got}).RolesHeader(); h != "ROLE_A;ROLE_B;ROLE_C" {
		t.Fatalf("header=%q", h)
	}
}

func TestLayerSchema(t *testing.T) {
	s := LayerSchema{
		GeometryProperty: "the_geom",
		Properties: []PropertyDescriptor{
			{Name: "centroid", Geometry: true, Binding: geomtype.Point},
			{Name: "owner", Type: "string"},
			{Name: "the_geom", Geometry: true, Binding: geomtype.MultiPolygon},
		},
	}
	p, ok := s.PrimaryGeometry()
	if !ok || p.Binding != geomtype.MultiPolygon {
		t.Fatalf("primary=%+v %v", p, ok)
	}
	if a := s.Attributes(); len(a) != 1 || a[0].Name != "owner" {
		t.Fatalf("attributes=%+v", a)
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateCompleted, StateSkipped, StateFailed} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
	if StateFeaturesWritten.Terminal() {
		t.Fatalf("features_written is not terminal")
	}
}
