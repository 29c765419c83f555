package ogc

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/query"
)

const (
	nsWFS = "http://www.opengis.net/wfs"
	nsOGC = "http://www.opengis.net/ogc"
	nsGML = "http://www.opengis.net/gml"
)

type getFeatureXML struct {
	XMLName      xml.Name `xml:"wfs:GetFeature"`
	Service      string   `xml:"service,attr"`
	Version      string   `xml:"version,attr"`
	OutputFormat string   `xml:"outputFormat,attr"`
	MaxFeatures  string   `xml:"maxFeatures,attr,omitempty"`
	XmlnsWFS     string   `xml:"xmlns:wfs,attr"`
	XmlnsOGC     string   `xml:"xmlns:ogc,attr"`
	XmlnsGML     string   `xml:"xmlns:gml,attr"`
	Query        queryXML `xml:"wfs:Query"`
}

type queryXML struct {
	TypeName   string     `xml:"typeName,attr"`
	SrsName    string     `xml:"srsName,attr,omitempty"`
	Properties []string   `xml:"ogc:PropertyName"`
	Filter     *filterXML `xml:"ogc:Filter"`
}

type filterXML struct {
	XMLName    xml.Name       `xml:"ogc:Filter"`
	XmlnsOGC   string         `xml:"xmlns:ogc,attr,omitempty"`
	XmlnsGML   string         `xml:"xmlns:gml,attr,omitempty"`
	And        *andXML        `xml:"ogc:And,omitempty"`
	Intersects *intersectsXML `xml:"ogc:Intersects,omitempty"`
}

type andXML struct {
	Intersects *intersectsXML `xml:"ogc:Intersects"`
	Equals     []equalXML     `xml:"ogc:PropertyIsEqualTo"`
}

type intersectsXML struct {
	Property string     `xml:"ogc:PropertyName"`
	Polygon  polygonXML `xml:"gml:Polygon"`
}

type polygonXML struct {
	SrsName string    `xml:"srsName,attr"`
	Outer   ringXML   `xml:"gml:outerBoundaryIs>gml:LinearRing"`
	Inner   []ringXML `xml:"gml:innerBoundaryIs>gml:LinearRing"`
}

type ringXML struct {
	Coordinates coordinatesXML `xml:"gml:coordinates"`
}

type coordinatesXML struct {
	Decimal string `xml:"decimal,attr"`
	CS      string `xml:"cs,attr"`
	TS      string `xml:"ts,attr"`
	Value   string `xml:",chardata"`
}

type equalXML struct {
	Property string `xml:"ogc:PropertyName"`
	Literal  string `xml:"ogc:Literal"`
}

func encodeRing(r orb.Ring) ringXML {
	parts := make([]string, len(r))
	for i, p := range r {
		parts[i] = strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64)
	}
	return ringXML{Coordinates: coordinatesXML{Decimal: ".", CS: ",", TS: " ", Value: strings.Join(parts, " ")}}
}

func buildFilter(q *query.SpatialQuery, standalone bool) (*filterXML, error) {
	if len(q.Filter.Geometry) == 0 {
		return nil, fmt.Errorf("intersects filter on %q has no geometry", q.Filter.Property)
	}
	poly := polygonXML{SrsName: q.Filter.SRS, Outer: encodeRing(q.Filter.Geometry[0])}
	for _, r := range q.Filter.Geometry[1:] {
		poly.Inner = append(poly.Inner, encodeRing(r))
	}
	inter := &intersectsXML{Property: q.Filter.Property, Polygon: poly}

	f := &filterXML{}
	if standalone {
		f.XmlnsOGC, f.XmlnsGML = nsOGC, nsGML
	}
	if len(q.Equals) == 0 {
		f.Intersects = inter
		return f, nil
	}
	and := &andXML{Intersects: inter}
	for _, e := range q.Equals {
		and.Equals = append(and.Equals, equalXML{Property: e.Property, Literal: e.Value})
	}
	f.And = and
	return f, nil
}

// EncodeFilter returns the ogc:Filter element for the KVP FILTER parameter.
func EncodeFilter(q *query.SpatialQuery) (string, error) {
	f, err := buildFilter(q, true)
	if err != nil {
		return "", err
	}
	b, err := xml.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshal filter: %w", err)
	}
	return string(b), nil
}

// EncodeGetFeature returns the XML body of a GetFeature POST request asking
// for features in srsName.
func EncodeGetFeature(q *query.SpatialQuery, srsName string) ([]byte, error) {
	f, err := buildFilter(q, false)
	if err != nil {
		return nil, err
	}
	doc := getFeatureXML{
		Service:      ServiceWFS,
		Version:      VersionWFS,
		OutputFormat: OutputFormatJSON,
		XmlnsWFS:     nsWFS,
		XmlnsOGC:     nsOGC,
		XmlnsGML:     nsGML,
		Query: queryXML{
			TypeName:   q.TypeName,
			SrsName:    srsName,
			Properties: q.Properties,
			Filter:     f,
		},
	}
	if q.MaxFeatures > 0 {
		doc.MaxFeatures = strconv.Itoa(q.MaxFeatures)
	}
	b, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal GetFeature: %w", err)
	}
	return append([]byte(xml.Header), b...), nil
}
