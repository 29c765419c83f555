package output

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
)

// DirName names the directory of one extraction:
// <layer>_<format>_<hash of the request parameters>.
func DirName(req model.ExtractionRequest) string {
	layer := SanitizeName(req.LocalLayerName())
	if layer == "" {
		layer = "layer"
	}
	var b strings.Builder
	b.WriteString(req.ServiceURL)
	b.WriteByte('|')
	b.WriteString(req.Layer)
	b.WriteByte('|')
	b.WriteString(string(req.Format))
	b.WriteByte('|')
	b.WriteString(req.BBox.String())
	b.WriteByte('|')
	b.WriteString(req.Projection)
	for _, f := range req.Filters {
		b.WriteByte('|')
		b.WriteString(f.Property)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return fmt.Sprintf("%s_%s_%016x", layer, req.Format, xxhash.Sum64String(b.String()))
}

// SanitizeName keeps letters, digits, '_' and '-' so the result is a safe
// file name on every platform. Runs of replaced runes collapse to one '-'.
func SanitizeName(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := r
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_', r == '-':
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}
