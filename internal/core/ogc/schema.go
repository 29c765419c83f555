package ogc

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/geomtype"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
)

type xsdElement struct {
	Name     string `xml:"name,attr"`
	Type     string `xml:"type,attr"`
	Nillable bool   `xml:"nillable,attr"`
	Restrict struct {
		Base      string `xml:"base,attr"`
		MaxLength struct {
			Value string `xml:"value,attr"`
		} `xml:"maxLength"`
	} `xml:"simpleType>restriction"`
}

type xsdSchema struct {
	Elements []struct {
		Name string `xml:"name,attr"`
		Type string `xml:"type,attr"`
	} `xml:"element"`
	ComplexTypes []struct {
		Name     string       `xml:"name,attr"`
		Elements []xsdElement `xml:"complexContent>extension>sequence>element"`
	} `xml:"complexType"`
}

// ParseDescribeFeatureType reads the XSD returned by DescribeFeatureType
// into a layer schema. The first geometry element is the default geometry,
// srs is the native CRS advertised in the capabilities.
func ParseDescribeFeatureType(body []byte, typeName, srs string) (model.LayerSchema, error) {
	var doc xsdSchema
	if err := xml.Unmarshal(body, &doc); err != nil {
		return model.LayerSchema{}, fmt.Errorf("parse DescribeFeatureType: %w", err)
	}
	if len(doc.ComplexTypes) == 0 {
		return model.LayerSchema{}, fmt.Errorf("DescribeFeatureType for %s declares no feature type", typeName)
	}

	complexName := localName(typeName) + "Type"
	for _, el := range doc.Elements {
		if el.Name == localName(typeName) && el.Type != "" {
			complexName = localName(el.Type)
		}
	}
	idx := 0
	for i, ct := range doc.ComplexTypes {
		if ct.Name == complexName {
			idx = i
			break
		}
	}

	schema := model.LayerSchema{TypeName: typeName, NativeCRS: srs}
	for _, el := range doc.ComplexTypes[idx].Elements {
		p := model.PropertyDescriptor{Name: el.Name, Nillable: el.Nillable}
		typ := el.Type
		if typ == "" {
			typ = el.Restrict.Base
		}
		if geomtype.IsGMLGeometryType(typ) {
			b, err := geomtype.ParseBinding(typ)
			if err != nil {
				return model.LayerSchema{}, err
			}
			p.Geometry = true
			p.Binding = b
			if schema.GeometryProperty == "" {
				schema.GeometryProperty = el.Name
			}
		} else {
			p.Type = localName(typ)
			if n, err := strconv.Atoi(strings.TrimSpace(el.Restrict.MaxLength.Value)); err == nil {
				p.MaxLength = n
			}
		}
		schema.Properties = append(schema.Properties, p)
	}
	return schema, nil
}
