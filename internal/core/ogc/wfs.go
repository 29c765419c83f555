package ogc

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	ServiceWFS = "WFS"
	// capabilities and features are read with the 1.0.0 protocol so axis
	// order is always x/y
	VersionWFS = "1.0.0"

	OutputFormatJSON = "application/json"
)

func OWSEndpoint(geoServerBase string) string {
	return strings.TrimRight(geoServerBase, "/") + "/ows"
}

// withParams merges OGC request parameters into serviceURL. Keys already
// present on the URL are replaced whatever their case.
func withParams(serviceURL string, params [][2]string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serviceURL))
	if err != nil {
		return "", fmt.Errorf("parse service url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("service url %q must be absolute", serviceURL)
	}
	q := u.Query()
	for _, p := range params {
		for k := range q {
			if strings.EqualFold(k, p[0]) {
				q.Del(k)
			}
		}
	}
	// keep the conventional order SERVICE, VERSION, REQUEST first
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	if rest := q.Encode(); rest != "" {
		b.WriteByte('&')
		b.WriteString(rest)
	}
	u.RawQuery = b.String()
	return u.String(), nil
}

// CapabilitiesURL builds {serviceURL}?SERVICE=..&VERSION=..&REQUEST=GetCapabilities.
func CapabilitiesURL(serviceURL, service, version string) (string, error) {
	return withParams(serviceURL, [][2]string{
		{"SERVICE", service},
		{"VERSION", version},
		{"REQUEST", "GetCapabilities"},
	})
}

func DescribeFeatureTypeURL(serviceURL, typeName string) (string, error) {
	return withParams(serviceURL, [][2]string{
		{"SERVICE", ServiceWFS},
		{"VERSION", VersionWFS},
		{"REQUEST", "DescribeFeatureType"},
		{"TYPENAME", typeName},
	})
}

// GetFeatureURL is the KVP form of a GetFeature request. filterXML is an
// encoded ogc:Filter element.
func GetFeatureURL(serviceURL, typeName string, properties []string, srsName, filterXML string, maxFeatures int) (string, error) {
	params := [][2]string{
		{"SERVICE", ServiceWFS},
		{"VERSION", VersionWFS},
		{"REQUEST", "GetFeature"},
		{"TYPENAME", typeName},
		{"OUTPUTFORMAT", OutputFormatJSON},
	}
	if len(properties) > 0 {
		params = append(params, [2]string{"PROPERTYNAME", strings.Join(properties, ",")})
	}
	if srsName != "" {
		params = append(params, [2]string{"SRSNAME", srsName})
	}
	if filterXML != "" {
		params = append(params, [2]string{"FILTER", filterXML})
	}
	if maxFeatures > 0 {
		params = append(params, [2]string{"MAXFEATURES", strconv.Itoa(maxFeatures)})
	}
	return withParams(serviceURL, params)
}

// BaseURL strips OGC request parameters, leaving the endpoint used for POST.
func BaseURL(serviceURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serviceURL))
	if err != nil {
		return "", fmt.Errorf("parse service url: %w", err)
	}
	q := u.Query()
	for k := range q {
		switch strings.ToUpper(k) {
		case "SERVICE", "VERSION", "REQUEST", "TYPENAME", "TYPENAMES":
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
