// Package wfstest serves a minimal WFS 1.0.0 endpoint for tests.
package wfstest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Parcels is the XSD of topp:parcels: a multipolygon default geometry, an
// auxiliary point geometry and two attributes.
const ParcelsXSD = `<?xml version="1.0" encoding="UTF-8"?>
<xsd:schema xmlns:gml="http://www.opengis.net/gml" xmlns:topp="http://topp" xmlns:xsd="http://www.w3.org/2001/XMLSchema" targetNamespace="http://topp">
  <xsd:complexType name="parcelsType">
    <xsd:complexContent>
      <xsd:extension base="gml:AbstractFeatureType">
        <xsd:sequence>
          <xsd:element maxOccurs="1" minOccurs="0" name="the_geom" nillable="true" type="gml:MultiPolygonPropertyType"/>
          <xsd:element maxOccurs="1" minOccurs="0" name="centroid" nillable="true" type="gml:PointPropertyType"/>
          <xsd:element maxOccurs="1" minOccurs="0" name="owner" nillable="true" type="xsd:string"/>
          <xsd:element maxOccurs="1" minOccurs="0" name="area" nillable="true" type="xsd:double"/>
        </xsd:sequence>
      </xsd:extension>
    </xsd:complexContent>
  </xsd:complexType>
  <xsd:element name="parcels" substitutionGroup="gml:_Feature" type="topp:parcelsType"/>
</xsd:schema>`

const ParcelsCapabilities = `<?xml version="1.0"?>
<WFS_Capabilities version="1.0.0" xmlns="http://www.opengis.net/wfs">
  <FeatureTypeList>
    <FeatureType><Name>topp:parcels</Name><Title>Parcels</Title><SRS>EPSG:3857</SRS></FeatureType>
  </FeatureTypeList>
</WFS_Capabilities>`

// ParcelsFeatures holds three parcels in EPSG:3857 around (10,10) degrees.
const ParcelsFeatures = `{"type":"FeatureCollection","features":[
{"type":"Feature","id":"parcels.1","geometry":{"type":"MultiPolygon","coordinates":[[[[1113194.9,1118889.9],[1224514.4,1118889.9],[1224514.4,1232106.8],[1113194.9,1232106.8],[1113194.9,1118889.9]]]]},"properties":{"owner":"Dupont","area":12.5}},
{"type":"Feature","id":"parcels.2","geometry":{"type":"MultiPolygon","coordinates":[[[[1335833.8,1345708.4],[1447153.3,1345708.4],[1447153.3,1459640.0],[1335833.8,1459640.0],[1335833.8,1345708.4]]]]},"properties":{"owner":"Martin","area":7}},
{"type":"Feature","id":"parcels.3","geometry":{"type":"MultiPolygon","coordinates":[[[[1558472.9,1574216.5],[1669792.4,1574216.5],[1669792.4,1689200.1],[1558472.9,1689200.1],[1558472.9,1574216.5]]]]},"properties":{"owner":"Bernard","area":3.25}}
]}`

// Request is what the server saw for one call.
type Request struct {
	Method string
	Query  string
	Header http.Header
	Body   string
}

// Server answers GetCapabilities, DescribeFeatureType and GetFeature with
// the configured bodies and records every request.
type Server struct {
	*httptest.Server

	Capabilities string
	Schema       string
	Features     string

	mu       sync.Mutex
	requests []Request
}

func NewParcels() *Server {
	s := &Server{Capabilities: ParcelsCapabilities, Schema: ParcelsXSD, Features: ParcelsFeatures}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Query: r.URL.RawQuery, Header: r.Header.Clone(), Body: string(b)})
	s.mu.Unlock()

	if r.Method == http.MethodPost {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s.Features)
		return
	}
	switch strings.ToUpper(r.URL.Query().Get("REQUEST")) {
	case "GETCAPABILITIES":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, s.Capabilities)
	case "DESCRIBEFEATURETYPE":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, s.Schema)
	case "GETFEATURE":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s.Features)
	default:
		http.Error(w, "unsupported request", http.StatusBadRequest)
	}
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests named op (e.g. "GetFeature") were seen.
// POST bodies count as GetFeature.
func (s *Server) Count(op string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == http.MethodPost {
			if strings.EqualFold(op, "GetFeature") {
				n++
			}
			continue
		}
		if strings.Contains(strings.ToUpper(r.Query), "REQUEST="+strings.ToUpper(op)) {
			n++
		}
	}
	return n
}
