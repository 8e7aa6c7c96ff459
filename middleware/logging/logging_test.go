package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func Test_LoggingHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	defer undo()

	var seen string
	h := LoggingHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"generated", ""},
		{"propagated", "trace-from-caller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			req := httptest.NewRequest(http.MethodGet, "/runs/abc", nil)
			if tt.header != "" {
				req.Header.Set(TraceIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(http.StatusTeapot, rr.Code)
			assert.NotEmpty(seen)
			assert.Equal(seen, rr.Header().Get(TraceIDHeader))
			if tt.header != "" {
				assert.Equal(tt.header, seen)
			} else {
				assert.Len(seen, 32)
			}
		})
	}

	entries := logs.FilterMessage("finished handling").All()
	if assert.Len(t, entries, 2) {
		fields := entries[0].ContextMap()
		assert.Equal(t, int64(http.StatusTeapot), fields["status"])
		assert.Equal(t, "/runs/abc", fields["url"])
	}
}
