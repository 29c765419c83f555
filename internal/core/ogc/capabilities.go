package ogc

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// FeatureTypeDeclared reports whether capabilities lists layer as a
// FeatureType name. The match is case sensitive on the layer, tolerates
// whitespace around the elements and an optional namespace prefix.
func FeatureTypeDeclared(capabilities, layer string) bool {
	return featureTypePattern(layer).MatchString(capabilities)
}

func featureTypePattern(layer string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)<FeatureType[^>]*>(?:\\n|\s)*<Name>\s*(\w*:)?` +
		regexp.QuoteMeta(layer) + `\s*</Name>`)
}

type FeatureType struct {
	Name  string
	Title string
	SRS   string
}

type capabilitiesDoc struct {
	FeatureTypes []struct {
		Name       string `xml:"Name"`
		Title      string `xml:"Title"`
		SRS        string `xml:"SRS"`
		DefaultSRS string `xml:"DefaultSRS"`
		DefaultCRS string `xml:"DefaultCRS"`
	} `xml:"FeatureTypeList>FeatureType"`
}

// ParseFeatureTypes reads the FeatureTypeList of a WFS 1.0.0, 1.1.0 or
// 2.0.0 capabilities document.
func ParseFeatureTypes(body []byte) ([]FeatureType, error) {
	var doc capabilitiesDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse capabilities: %w", err)
	}
	out := make([]FeatureType, 0, len(doc.FeatureTypes))
	for _, ft := range doc.FeatureTypes {
		srs := ft.SRS
		if srs == "" {
			srs = ft.DefaultSRS
		}
		if srs == "" {
			srs = ft.DefaultCRS
		}
		out = append(out, FeatureType{
			Name:  strings.TrimSpace(ft.Name),
			Title: strings.TrimSpace(ft.Title),
			SRS:   strings.TrimSpace(srs),
		})
	}
	return out, nil
}

// FindFeatureType looks a type name up, accepting a missing namespace prefix
// on either side.
func FindFeatureType(types []FeatureType, typeName string) (FeatureType, bool) {
	local := localName(typeName)
	var fallback *FeatureType
	for i := range types {
		if types[i].Name == typeName {
			return types[i], true
		}
		if fallback == nil && localName(types[i].Name) == local {
			fallback = &types[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return FeatureType{}, false
}

func localName(s string) string {
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}
