package muxprom

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_Middleware_LabelsByPattern(t *testing.T) {
	assert := assert.New(t)
	reg := prometheus.NewRegistry()
	inst := NewInstrumentation(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"`+r.PathValue("id")+`"}`)
	})
	h := inst.Middleware(mux)

	for _, path := range []string{"/runs/a", "/runs/b", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(float64(2), testutil.ToFloat64(inst.reqTotal.WithLabelValues("200", http.MethodGet, "GET /runs/{id}")))
	assert.Equal(float64(1), testutil.ToFloat64(inst.reqTotal.WithLabelValues("404", http.MethodGet, unmatched)))

	n, err := testutil.GatherAndCount(reg, "dnacflow_http_requests_total")
	assert.NoError(err)
	assert.Equal(2, n)
}

func Test_EstimateRequestSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/apply", nil)
	req.Header.Set("Content-Type", "application/yaml")
	req.ContentLength = 100

	// POST + /apply + HTTP/1.1 + 4, header 12+16+2, body 100
	assert.Equal(t, int64(4+6+8+4+30+100), estimateRequestSize(req))
}
