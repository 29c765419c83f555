// Package metrics owns the Prometheus registry served on /metrics: runtime
// collectors, the extractor's build and format info, and whatever the
// extraction pipeline and queue register.
package metrics

import (
	"net/http"
	"runtime/debug"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wfs_extractor"

// Build identifies the running binary. Empty fields are filled from the
// module build info embedded by the Go toolchain.
type Build struct {
	Version  string
	Revision string
	Date     string
}

type Config struct {
	Build Build
	// Formats are the output formats the writer registry serves.
	Formats []string
}

type Provider struct {
	reg *prometheus.Registry
}

// Init builds the registry. extra collectors, typically the pipeline's
// package level metrics, are registered alongside.
func Init(cfg Config, extra ...prometheus.Collector) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b := resolveBuild(cfg.Build, debug.ReadBuildInfo)
	build := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Build of the running extractor, always 1.",
		ConstLabels: prometheus.Labels{"version": b.Version, "revision": b.Revision, "build_date": b.Date},
	})
	build.Set(1)
	reg.MustRegister(build)

	formats := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "output_format_info",
		Help:      "Output formats accepted by this instance, always 1.",
	}, []string{"format"})
	fs := slices.Clone(cfg.Formats)
	slices.Sort(fs)
	for _, f := range slices.Compact(fs) {
		formats.WithLabelValues(f).Set(1)
	}
	reg.MustRegister(formats)

	reg.MustRegister(extra...)
	return &Provider{reg: reg}
}

func resolveBuild(b Build, read func() (*debug.BuildInfo, bool)) Build {
	info, ok := read()
	if ok && b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	if ok {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && b.Revision == "":
				b.Revision = s.Value
			case s.Key == "vcs.time" && b.Date == "":
				b.Date = s.Value
			}
		}
	}
	if b.Version == "" {
		b.Version = "dev"
	}
	return b
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}

// Registerer is handed to components that own their collectors, such as
// the queue runner.
func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
