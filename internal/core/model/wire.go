package model

import (
	"errors"
	"fmt"
	"strings"
)

// RequestDoc is the JSON form of an extraction request, shared by the HTTP
// API and the queue. The format is kept verbatim so that the extractor is
// the one rejecting unknown formats.
type RequestDoc struct {
	JobID      string           `json:"job_id,omitempty"`
	ServiceURL string           `json:"service_url"`
	OWSType    string           `json:"ows_type,omitempty"`
	Layer      string           `json:"layer"`
	Format     string           `json:"format"`
	BBox       BBoxDoc          `json:"bbox"`
	Projection string           `json:"projection,omitempty"`
	Filters    []PropertyFilter `json:"filters,omitempty"`
}

type BBoxDoc struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

// ToRequest validates d and attaches the caller identity.
func (d RequestDoc) ToRequest(sec SecurityContext) (ExtractionRequest, error) {
	if strings.TrimSpace(d.ServiceURL) == "" {
		return ExtractionRequest{}, errors.New("missing required field: service_url")
	}
	layer := strings.TrimSpace(d.Layer)
	if layer == "" {
		return ExtractionRequest{}, errors.New("missing required field: layer")
	}
	ows, err := ParseOWSType(d.OWSType)
	if err != nil {
		return ExtractionRequest{}, err
	}
	jobID := strings.TrimSpace(d.JobID)
	if jobID != "" {
		if err := ValidateJobID(jobID); err != nil {
			return ExtractionRequest{}, err
		}
	}
	bbox := BBox{X1: d.BBox.X1, Y1: d.BBox.Y1, X2: d.BBox.X2, Y2: d.BBox.Y2, SRID: strings.TrimSpace(d.BBox.SRID)}
	if err := bbox.Validate(); err != nil {
		return ExtractionRequest{}, fmt.Errorf("invalid bbox: %w", err)
	}
	return ExtractionRequest{
		JobID:      jobID,
		ServiceURL: strings.TrimSpace(d.ServiceURL),
		OWSType:    ows,
		Layer:      layer,
		Format:     Format(strings.TrimSpace(d.Format)),
		BBox:       bbox,
		Projection: strings.TrimSpace(d.Projection),
		Filters:    d.Filters,
		Security:   sec,
	}, nil
}

const maxJobID = 128

var ErrInvalidJobID = errors.New("invalid job id")

// ValidateJobID accepts ids usable as a single directory name: ASCII
// letters, digits, '_' and '-', starting with a letter or digit. UUIDs pass.
func ValidateJobID(id string) error {
	if id == "" || len(id) > maxJobID {
		return fmt.Errorf("%w: length must be 1..%d", ErrInvalidJobID, maxJobID)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case (c == '_' || c == '-') && i > 0:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidJobID, id)
		}
	}
	return nil
}

// ParseRoles splits a roles header value. Both ';' and ',' separate roles.
func ParseRoles(s string) []string {
	var out []string
	for _, r := range strings.FieldsFunc(s, func(c rune) bool { return c == ';' || c == ',' }) {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
