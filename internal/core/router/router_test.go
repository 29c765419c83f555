package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/jobs"
)

type fakeService struct {
	lastReq model.ExtractionRequest
	calls   int
	err     error
	jobs    map[string]jobs.Job
}

func (f *fakeService) Run(_ context.Context, req model.ExtractionRequest) (model.ExtractionResult, error) {
	f.calls++
	f.lastReq = req
	res := model.ExtractionResult{JobID: "job-1"}
	if f.err != nil {
		return res, f.err
	}
	res.Dir = "/out/job-1/parcels_shp_0000000000000001"
	res.FeatureCount = 3
	return res, nil
}

func (f *fakeService) Job(_ context.Context, id string) (jobs.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return j, nil
}

func (f *fakeService) Formats() []model.Format { return model.Formats() }

func newHandler(svc ExtractionService) http.Handler {
	r := chi.NewRouter()
	r.Group(Routes(slog.New(slog.NewTextHandler(io.Discard, nil)), svc))
	return r
}

const body = `{"service_url":"http://geo.example.org/geoserver/wfs","layer":"topp:parcels","format":"shp",
"bbox":{"x1":9,"y1":9,"x2":16,"y2":16,"srid":"EPSG:4326"},"projection":"EPSG:2154",
"filters":[{"property":"owner","value":"Dupont"}]}`

func post(h http.Handler, b string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/extractions", strings.NewReader(b))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCreate_DispatchesRequestWithSecurityContext(t *testing.T) {
	svc := &fakeService{}
	rr := post(newHandler(svc), body, map[string]string{"sec-username": "alice", "sec-roles": "ROLE_A;ROLE_B"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	q := svc.lastReq
	if q.Layer != "topp:parcels" || q.Format != model.FormatShp || q.Projection != "EPSG:2154" || q.OWSType != model.OWSTypeWFS {
		t.Fatalf("unexpected request %+v", q)
	}
	if q.Security.Username != "alice" || len(q.Security.Roles) != 2 || q.Security.Roles[1] != "ROLE_B" {
		t.Fatalf("security=%+v", q.Security)
	}
	if len(q.Filters) != 1 || q.Filters[0].Value != "Dupont" {
		t.Fatalf("filters=%+v", q.Filters)
	}
	var res model.ExtractionResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.FeatureCount != 3 {
		t.Fatalf("result=%+v", res)
	}
}

func TestCreate_RejectsBadBody(t *testing.T) {
	svc := &fakeService{}
	h := newHandler(svc)
	for _, b := range []string{
		`{`,
		`{"service_url":"http://x/wfs","layer":"a","format":"shp","bbox":{"x1":2,"y1":0,"x2":1,"y2":1,"srid":"EPSG:4326"}}`,
		`{"layer":"a","format":"shp","bbox":{"x1":0,"y1":0,"x2":1,"y2":1,"srid":"EPSG:4326"}}`,
		`{"service_url":"http://x/wfs","layer":"a","format":"shp","unknown":1}`,
		`{"job_id":"../../escaped","service_url":"http://x/wfs","layer":"a","format":"shp","bbox":{"x1":0,"y1":0,"x2":1,"y2":1,"srid":"EPSG:4326"}}`,
	} {
		if rr := post(h, b, nil); rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d want 400", b, rr.Code)
		}
	}
	if svc.calls != 0 {
		t.Fatalf("service must not run, calls=%d", svc.calls)
	}
}

func TestCreate_ErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&errs.AccessDeniedError{Layer: "topp:parcels", Capabilities: "<secret/>"}, http.StatusForbidden},
		{errs.Upstream("GetFeature", errors.New("dial tcp")), http.StatusBadGateway},
		{fmt.Errorf("%w: %q", errs.ErrUnsupportedFormat, "geojson"), http.StatusBadRequest},
		{errs.ErrUnsupportedGeometryType, http.StatusBadRequest},
		{errs.Reprojection("no transform to %s", "EPSG:1"), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: %q", model.ErrInvalidJobID, ".."), http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &fakeService{err: tc.err}
		rr := post(newHandler(svc), body, nil)
		if rr.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, rr.Code, tc.want)
		}
		var eb struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &eb); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if eb.Kind != errs.Kind(tc.err) || eb.JobID != "job-1" {
			t.Fatalf("error body %+v", eb)
		}
		if strings.Contains(eb.Error, "secret") {
			t.Fatalf("capabilities body leaked: %s", eb.Error)
		}
	}
}

func TestGet_Job(t *testing.T) {
	svc := &fakeService{jobs: map[string]jobs.Job{"job-1": {ID: "job-1", State: model.StateCompleted}}}
	h := newHandler(svc)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/extractions/job-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var j jobs.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &j); err != nil || j.State != model.StateCompleted {
		t.Fatalf("job=%+v err=%v", j, err)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/extractions/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}

func TestFormats(t *testing.T) {
	rr := httptest.NewRecorder()
	newHandler(&fakeService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/formats", nil))
	if !strings.Contains(rr.Body.String(), `"kml"`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}
