package model

import "github.com/mohammed-shakir/wfs-extractor/internal/core/geomtype"

type PropertyDescriptor struct {
	Name string
	// xsd type without prefix for attributes, e.g. "string", "int", "double"
	Type      string
	Geometry  bool
	Binding   geomtype.Binding
	Nillable  bool
	MaxLength int
}

type LayerSchema struct {
	TypeName         string
	GeometryProperty string
	NativeCRS        string
	Properties       []PropertyDescriptor
}

// PrimaryGeometry returns the descriptor of the default geometry column.
func (s LayerSchema) PrimaryGeometry() (PropertyDescriptor, bool) {
	for _, p := range s.Properties {
		if p.Geometry && p.Name == s.GeometryProperty {
			return p, true
		}
	}
	return PropertyDescriptor{}, false
}

// Attributes returns the non-geometry descriptors in schema order.
func (s LayerSchema) Attributes() []PropertyDescriptor {
	out := make([]PropertyDescriptor, 0, len(s.Properties))
	for _, p := range s.Properties {
		if !p.Geometry {
			out = append(out, p)
		}
	}
	return out
}
