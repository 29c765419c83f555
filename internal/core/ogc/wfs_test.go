package ogc

import (
	"net/url"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/geomtype"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/query"
)

func TestCapabilitiesURL(t *testing.T) {
	got, err := CapabilitiesURL("http://localhost:8080/geoserver/wfs", "WFS", "1.0.0")
	if err != nil {
		t.Fatalf("CapabilitiesURL: %v", err)
	}
	want := "http://localhost:8080/geoserver/wfs?SERVICE=WFS&VERSION=1.0.0&REQUEST=GetCapabilities"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCapabilitiesURL_ReplacesExistingParams(t *testing.T) {
	got, err := CapabilitiesURL("http://geo.example.org/ows?service=wms&request=GetMap&map=x", "WFS", "1.0.0")
	if err != nil {
		t.Fatalf("CapabilitiesURL: %v", err)
	}
	u, _ := url.Parse(got)
	q := u.Query()
	if q.Get("SERVICE") != "WFS" || q.Get("REQUEST") != "GetCapabilities" || q.Get("map") != "x" {
		t.Fatalf("unexpected query %v", q)
	}
	if _, ok := q["service"]; ok {
		t.Fatalf("lower case service param must be replaced: %v", q)
	}
}

func TestCapabilitiesURL_RejectsRelative(t *testing.T) {
	if _, err := CapabilitiesURL("/geoserver/wfs", "WFS", "1.0.0"); err == nil {
		t.Fatalf("expected error for relative url")
	}
}

func TestOWSEndpoint(t *testing.T) {
	base := "http://localhost:8080/geoserver/"
	want := "http://localhost:8080/geoserver/ows"
	if got := OWSEndpoint(base); got != want {
		t.Fatalf("OWSEndpoint got %q want %q", got, want)
	}
}

func TestFeatureTypeDeclared(t *testing.T) {
	caps := `<WFS_Capabilities><FeatureTypeList>
	<FeatureType><Name>ns:Roads</Name></FeatureType>
	<FeatureType xmlns:topp="http://topp">
		<Name>
			topp:states
		</Name>
	</FeatureType>
	<FeatureType><Name>rivers</Name></FeatureType>
	</FeatureTypeList></WFS_Capabilities>`

	cases := []struct {
		layer string
		want  bool
	}{
		{"Roads", true},
		{"ns:Roads", true},
		{"roads", false},
		{"Bridges", false},
		{"states", true},
		{"rivers", true},
		{"Road", false},
		{"Roads.*", false},
	}
	for _, tc := range cases {
		if got := FeatureTypeDeclared(caps, tc.layer); got != tc.want {
			t.Fatalf("FeatureTypeDeclared(%q)=%v want %v", tc.layer, got, tc.want)
		}
	}
}

func TestFeatureTypeDeclared_IgnoresNamesOutsideFeatureType(t *testing.T) {
	caps := `<Service><Name>Roads</Name></Service><FeatureType><Name>other</Name></FeatureType>`
	if FeatureTypeDeclared(caps, "Roads") {
		t.Fatalf("service name must not grant access")
	}
}

func TestParseFeatureTypes_AndFind(t *testing.T) {
	caps := []byte(`<?xml version="1.0"?>
<WFS_Capabilities version="1.0.0" xmlns="http://www.opengis.net/wfs">
  <FeatureTypeList>
    <FeatureType><Name>topp:parcels</Name><Title>Parcels</Title><SRS>EPSG:3857</SRS></FeatureType>
    <FeatureType><Name>topp:roads</Name><DefaultSRS>urn:ogc:def:crs:EPSG::2154</DefaultSRS></FeatureType>
  </FeatureTypeList>
</WFS_Capabilities>`)
	types, err := ParseFeatureTypes(caps)
	if err != nil {
		t.Fatalf("ParseFeatureTypes: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("got %d feature types", len(types))
	}
	ft, ok := FindFeatureType(types, "parcels")
	if !ok || ft.SRS != "EPSG:3857" || ft.Title != "Parcels" {
		t.Fatalf("parcels lookup: %+v %v", ft, ok)
	}
	ft, ok = FindFeatureType(types, "topp:roads")
	if !ok || ft.SRS != "urn:ogc:def:crs:EPSG::2154" {
		t.Fatalf("roads lookup: %+v %v", ft, ok)
	}
	if _, ok := FindFeatureType(types, "bridges"); ok {
		t.Fatalf("bridges must not be found")
	}
}

const parcelsXSD = `<?xml version="1.0" encoding="UTF-8"?>
<xsd:schema xmlns:gml="http://www.opengis.net/gml" xmlns:topp="http://topp" xmlns:xsd="http://www.w3.org/2001/XMLSchema" targetNamespace="http://topp">
  <xsd:import namespace="http://www.opengis.net/gml"/>
  <xsd:complexType name="parcelsType">
    <xsd:complexContent>
      <xsd:extension base="gml:AbstractFeatureType">
        <xsd:sequence>
          <xsd:element maxOccurs="1" minOccurs="0" name="centroid" nillable="true" type="gml:PointPropertyType"/>
          <xsd:element maxOccurs="1" minOccurs="0" name="the_geom" nillable="true" type="gml:MultiPolygonPropertyType"/>
          <xsd:element maxOccurs="1" minOccurs="0" name="owner" nillable="true">
            <xsd:simpleType><xsd:restriction base="xsd:string"><xsd:maxLength value="80"/></xsd:restriction></xsd:simpleType>
          </xsd:element>
          <xsd:element maxOccurs="1" minOccurs="0" name="area" nillable="true" type="xsd:double"/>
        </xsd:sequence>
      </xsd:extension>
    </xsd:complexContent>
  </xsd:complexType>
  <xsd:element name="parcels" substitutionGroup="gml:_Feature" type="topp:parcelsType"/>
</xsd:schema>`

func TestParseDescribeFeatureType(t *testing.T) {
	s, err := ParseDescribeFeatureType([]byte(parcelsXSD), "topp:parcels", "EPSG:3857")
	if err != nil {
		t.Fatalf("ParseDescribeFeatureType: %v", err)
	}
	if s.GeometryProperty != "centroid" {
		t.Fatalf("first geometry element is the default geometry, got %q", s.GeometryProperty)
	}
	if s.NativeCRS != "EPSG:3857" || s.TypeName != "topp:parcels" {
		t.Fatalf("unexpected schema header %+v", s)
	}
	if len(s.Properties) != 4 {
		t.Fatalf("got %d properties", len(s.Properties))
	}
	if p := s.Properties[1]; !p.Geometry || p.Binding != geomtype.MultiPolygon {
		t.Fatalf("the_geom descriptor %+v", p)
	}
	if p := s.Properties[2]; p.Geometry || p.Type != "string" || p.MaxLength != 80 {
		t.Fatalf("owner descriptor %+v", p)
	}
	if p := s.Properties[3]; p.Type != "double" {
		t.Fatalf("area descriptor %+v", p)
	}
}

func sampleQuery() *query.SpatialQuery {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1113194.5, 1118890}}
	return &query.SpatialQuery{
		TypeName:   "topp:parcels",
		Filter:     query.Intersects{Property: "the_geom", Geometry: b.ToPolygon(), SRS: "EPSG:3857"},
		Properties: []string{"the_geom", "owner"},
	}
}

func TestEncodeGetFeature(t *testing.T) {
	body, err := EncodeGetFeature(sampleQuery(), "EPSG:3857")
	if err != nil {
		t.Fatalf("EncodeGetFeature: %v", err)
	}
	s := string(body)
	for _, want := range []string{
		`<wfs:GetFeature service="WFS" version="1.0.0" outputFormat="application/json"`,
		`<wfs:Query typeName="topp:parcels" srsName="EPSG:3857">`,
		`<ogc:PropertyName>the_geom</ogc:PropertyName><ogc:PropertyName>owner</ogc:PropertyName>`,
		`<ogc:Intersects><ogc:PropertyName>the_geom</ogc:PropertyName><gml:Polygon srsName="EPSG:3857">`,
		`<gml:coordinates decimal="." cs="," ts=" ">0,0 1113194.5,0 1113194.5,1118890 0,1118890 0,0</gml:coordinates>`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in\n%s", want, s)
		}
	}
	if strings.Contains(s, "ogc:And") || strings.Contains(s, "maxFeatures") {
		t.Fatalf("unexpected And/maxFeatures in\n%s", s)
	}
}

func TestEncodeFilter_WithLegacyEquals(t *testing.T) {
	q := sampleQuery()
	q.Equals = []model.PropertyFilter{{Property: "owner", Value: "Dupont & fils"}, {Property: "zone", Value: "A"}}
	f, err := EncodeFilter(q)
	if err != nil {
		t.Fatalf("EncodeFilter: %v", err)
	}
	for _, want := range []string{
		`<ogc:Filter xmlns:ogc="http://www.opengis.net/ogc" xmlns:gml="http://www.opengis.net/gml"><ogc:And><ogc:Intersects>`,
		`<ogc:PropertyIsEqualTo><ogc:PropertyName>owner</ogc:PropertyName><ogc:Literal>Dupont &amp; fils</ogc:Literal></ogc:PropertyIsEqualTo>`,
		`<ogc:PropertyIsEqualTo><ogc:PropertyName>zone</ogc:PropertyName><ogc:Literal>A</ogc:Literal></ogc:PropertyIsEqualTo></ogc:And></ogc:Filter>`,
	} {
		if !strings.Contains(f, want) {
			t.Fatalf("missing %q in\n%s", want, f)
		}
	}
}

func TestGetFeatureURL(t *testing.T) {
	raw, err := GetFeatureURL("http://localhost/geoserver/wfs", "topp:parcels", []string{"the_geom", "owner"}, "EPSG:3857", "<ogc:Filter/>", 0)
	if err != nil {
		t.Fatalf("GetFeatureURL: %v", err)
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	if q.Get("REQUEST") != "GetFeature" || q.Get("TYPENAME") != "topp:parcels" ||
		q.Get("PROPERTYNAME") != "the_geom,owner" || q.Get("SRSNAME") != "EPSG:3857" ||
		q.Get("FILTER") != "<ogc:Filter/>" || q.Get("OUTPUTFORMAT") != OutputFormatJSON {
		t.Fatalf("unexpected query %v", q)
	}
	if _, ok := q["MAXFEATURES"]; ok {
		t.Fatalf("unbounded request must not send MAXFEATURES")
	}
}
