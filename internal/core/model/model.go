// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
)

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.X1, b.Y1}, Max: orb.Point{b.X2, b.Y2}}
}

func (b BBox) Validate() error {
	if strings.TrimSpace(b.SRID) == "" {
		return fmt.Errorf("bbox: missing CRS")
	}
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return fmt.Errorf("bbox: coordinates must satisfy x2>x1 and y2>y1")
	}
	return nil
}

type OWSType string

const (
	OWSTypeWFS OWSType = "WFS"
	OWSTypeWCS OWSType = "WCS"
)

func ParseOWSType(s string) (OWSType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "WFS":
		return OWSTypeWFS, nil
	case "WCS":
		return OWSTypeWCS, nil
	default:
		return "", fmt.Errorf("%w: %q", errs.ErrUnsupportedProtocol, s)
	}
}

type Format string

const (
	FormatShp Format = "shp"
	FormatMif Format = "mif"
	FormatTab Format = "tab"
	FormatKml Format = "kml"
)

var formats = []Format{FormatShp, FormatMif, FormatTab, FormatKml}

func Formats() []Format { return append([]Format(nil), formats...) }

// ParseFormat accepts any case variant of a known format identifier.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a recognized vector format", errs.ErrUnsupportedFormat, s)
}

type SecurityContext struct {
	Username string
	Roles    []string
}

// RolesHeader joins roles the way the upstream security proxy expects them.
func (s SecurityContext) RolesHeader() string {
	return strings.Join(s.Roles, ";")
}

// PropertyFilter is one legacy equality clause; clauses are ANDed.
type PropertyFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type ExtractionRequest struct {
	JobID      string
	ServiceURL string
	OWSType    OWSType
	Layer      string
	Format     Format
	BBox       BBox
	Projection string
	Filters    []PropertyFilter
	Security   SecurityContext
}

// Namespace returns the prefix of a qualified layer name, if any.
func (r ExtractionRequest) Namespace() string {
	if i := strings.IndexByte(r.Layer, ':'); i > 0 {
		return r.Layer[:i]
	}
	return ""
}

// LocalLayerName strips the namespace prefix.
func (r ExtractionRequest) LocalLayerName() string {
	if i := strings.IndexByte(r.Layer, ':'); i >= 0 {
		return r.Layer[i+1:]
	}
	return r.Layer
}

type ExtractionResult struct {
	JobID        string   `json:"job_id,omitempty"`
	Dir          string   `json:"dir"`
	FeatureCount int      `json:"feature_count"`
	Files        []string `json:"files,omitempty"`
	Skipped      bool     `json:"skipped,omitempty"`
}
