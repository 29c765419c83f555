// Package wfs reads layer schemas and features from a WFS 1.0.0 service.
package wfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/crs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/executor"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/observability"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/ogc"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/query"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/security"
)

type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

type Client struct {
	log     *slog.Logger
	fetcher executor.Fetcher
	schemas *expirable.LRU[string, model.LayerSchema]
}

func NewClient(log *slog.Logger, fetcher executor.Fetcher, opts Options) *Client {
	if log == nil {
		log = slog.Default()
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 128
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		log:     log,
		fetcher: fetcher,
		schemas: expirable.NewLRU[string, model.LayerSchema](size, nil, ttl),
	}
}

// schemas read with admin credentials may list more than anonymous ones, so
// the credential class is part of the key
func schemaKey(conn security.ConnectionParams, typeName string) string {
	class := "anon"
	if conn.Credentials.Valid() {
		class = "user:" + conn.Credentials.Username
	}
	return conn.URL + "|" + class + "|" + typeName
}

// Schema describes typeName. The native CRS comes from the capabilities
// FeatureType entry and stays empty when the service does not declare one.
func (c *Client) Schema(ctx context.Context, conn security.ConnectionParams, typeName string) (model.LayerSchema, error) {
	key := schemaKey(conn, typeName)
	if s, ok := c.schemas.Get(key); ok {
		observability.IncSchemaCache(true)
		return s, nil
	}
	observability.IncSchemaCache(false)

	capsURL, err := ogc.CapabilitiesURL(conn.URL, ogc.ServiceWFS, ogc.VersionWFS)
	if err != nil {
		return model.LayerSchema{}, fmt.Errorf("capabilities url: %w", err)
	}
	capsBody, err := c.fetcher.Fetch(ctx, c.request(conn, "wfs_capabilities", capsURL))
	if err != nil {
		return model.LayerSchema{}, err
	}
	types, err := ogc.ParseFeatureTypes(capsBody)
	if err != nil {
		return model.LayerSchema{}, errs.Upstream("wfs_capabilities", err)
	}
	var srs string
	if ft, ok := ogc.FindFeatureType(types, typeName); ok {
		srs = ft.SRS
	}

	dftURL, err := ogc.DescribeFeatureTypeURL(conn.URL, typeName)
	if err != nil {
		return model.LayerSchema{}, fmt.Errorf("describe url: %w", err)
	}
	xsd, err := c.fetcher.Fetch(ctx, c.request(conn, "wfs_describe", dftURL))
	if err != nil {
		return model.LayerSchema{}, err
	}
	schema, err := ogc.ParseDescribeFeatureType(xsd, typeName, srs)
	if err != nil {
		return model.LayerSchema{}, errs.Upstream("wfs_describe", err)
	}

	c.schemas.Add(key, schema)
	c.log.DebugContext(ctx, "schema fetched",
		"type", typeName,
		"geometry", schema.GeometryProperty,
		"native_crs", srs,
		"properties", len(schema.Properties))
	return schema, nil
}

func (c *Client) request(conn security.ConnectionParams, op, u string) executor.Request {
	return executor.Request{
		Op:      op,
		URL:     u,
		Basic:   conn.Credentials,
		Timeout: conn.Timeout,
	}
}

// GetFeatures runs q and returns the features in q.OutputCRS.
func (c *Client) GetFeatures(ctx context.Context, conn security.ConnectionParams, q *query.SpatialQuery) (*geojson.FeatureCollection, error) {
	if q == nil || q.FilterCRS == nil {
		return nil, fmt.Errorf("get features: incomplete query")
	}
	srsName := q.FilterCRS.Identifier()
	if conn.MaxFeatures > 0 {
		cp := *q
		cp.MaxFeatures = conn.MaxFeatures
		q = &cp
	}

	req := c.request(conn, "wfs_getfeature", "")
	req.Accept = ogc.OutputFormatJSON
	if conn.ProtocolCompliant {
		base, err := ogc.BaseURL(conn.URL)
		if err != nil {
			return nil, err
		}
		body, err := ogc.EncodeGetFeature(q, srsName)
		if err != nil {
			return nil, err
		}
		req.Method = http.MethodPost
		req.URL = base
		req.Body = body
		req.ContentType = "text/xml"
	} else {
		filter, err := ogc.EncodeFilter(q)
		if err != nil {
			return nil, err
		}
		u, err := ogc.GetFeatureURL(conn.URL, q.TypeName, q.Properties, srsName, filter, q.MaxFeatures)
		if err != nil {
			return nil, err
		}
		req.URL = u
	}

	body, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	fc, err := c.decode(ctx, body, conn.Lenient)
	if err != nil {
		return nil, err
	}
	if q.OutputCRS != nil && !q.OutputCRS.Equivalent(q.FilterCRS) {
		if err := reproject(fc, q.FilterCRS, q.OutputCRS); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// decode parses a GeoJSON response one feature at a time so that a lenient
// connection can drop the features it cannot read.
func (c *Client) decode(ctx context.Context, body []byte, lenient bool) (*geojson.FeatureCollection, error) {
	var raw rawCollection
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.Upstream("wfs_getfeature", fmt.Errorf("decode response: %w", err))
	}
	if raw.Type != "FeatureCollection" {
		return nil, errs.Upstream("wfs_getfeature", fmt.Errorf("unexpected response type %q", raw.Type))
	}

	fc := geojson.NewFeatureCollection()
	skipped := 0
	for i, rf := range raw.Features {
		f, err := geojson.UnmarshalFeature(rf)
		if err == nil && f.Geometry == nil {
			err = errors.New("feature has no geometry")
		}
		if err != nil {
			if !lenient {
				return nil, errs.Upstream("wfs_getfeature", fmt.Errorf("feature %d: %w", i, err))
			}
			skipped++
			c.log.WarnContext(ctx, "skipping unreadable feature", "index", i, "err", err)
			continue
		}
		fc.Append(f)
	}
	if skipped > 0 {
		c.log.InfoContext(ctx, "features skipped", "skipped", skipped, "kept", len(fc.Features))
	}
	return fc, nil
}

func reproject(fc *geojson.FeatureCollection, from, to *crs.CRS) error {
	for i, f := range fc.Features {
		g, err := crs.TransformGeometry(f.Geometry, from, to)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		f.Geometry = g
	}
	return nil
}
