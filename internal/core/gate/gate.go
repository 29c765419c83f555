// Package gate checks that a caller may read a layer before anything is
// extracted from it.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/executor"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/ogc"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/security"
)

type Gate struct {
	log     *slog.Logger
	fetcher executor.Fetcher
	admin   security.Credentials
	timeout time.Duration
}

func New(log *slog.Logger, fetcher executor.Fetcher, admin security.Credentials, timeout time.Duration) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{log: log, fetcher: fetcher, admin: admin, timeout: timeout}
}

// CheckPermission reads the capabilities document of the request's service
// as seen by username and fails unless it declares the requested layer.
func (g *Gate) CheckPermission(ctx context.Context, req model.ExtractionRequest, securedHost, username string, roles []string) error {
	capsURL, err := ogc.CapabilitiesURL(req.ServiceURL, ogc.ServiceWFS, ogc.VersionWFS)
	if err != nil {
		return fmt.Errorf("capabilities url: %w", err)
	}
	sec := model.SecurityContext{Username: username, Roles: roles}
	opts := security.CapabilitiesOptions(req.ServiceURL, securedHost, sec, g.admin)

	body, err := g.fetcher.Fetch(ctx, executor.Request{
		Op:      "wfs_capabilities",
		URL:     capsURL,
		Headers: opts.Headers,
		Basic:   opts.Basic,
		Timeout: g.timeout,
	})
	if err != nil {
		return err
	}

	caps := string(body)
	if !ogc.FeatureTypeDeclared(caps, req.Layer) {
		g.log.InfoContext(ctx, "layer not in capabilities",
			"layer", req.Layer,
			"user", username,
			"impersonated", len(opts.Headers) > 0)
		return &errs.AccessDeniedError{Layer: req.Layer, Capabilities: caps}
	}
	return nil
}
