package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for _, ln := range strings.Split(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: Build{Version: "test"}, Formats: []string{"shp", "kml"}}, observability.Collectors()...)

	observability.ObserveExtraction("kml", "ok")
	observability.ObserveExtraction("shp", "access_denied")
	observability.ObserveStage("schema_fetched", 0.004)
	observability.ObserveJobStoreOp("put", nil, 0.002)
	observability.IncSchemaCache(true)
	observability.IncQueueMessage("duplicate")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`extraction_stage_duration_seconds_bucket`,
		`job_store_operation_duration_seconds_count{op="put"} `,
		`schema_cache_total{outcome="hit"} `,
		`extract_queue_messages_total{result="duplicate"} `,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "extractions_total", `format="kml"`, `outcome="ok"`)
	assertHasMetricLine(t, body, "extractions_total", `format="shp"`, `outcome="access_denied"`)
	assertHasMetricLine(t, body, "job_store_op_total", `op="put"`, `result="ok"`)
	assertHasMetricLine(t, body, "wfs_extractor_build_info", `version="test"`)
	assertHasMetricLine(t, body, "wfs_extractor_output_format_info", `format="kml"`)
}
