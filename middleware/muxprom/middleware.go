/*
 * Copyright 2024 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package muxprom

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelCode   = "code"
	labelMethod = "method"
	labelRoute  = "route"

	unmatched = "unmatched"
)

// Instrumentation records request metrics for an http.ServeMux. Routes are
// labelled by the pattern the mux matched, not the raw path, so run ids do
// not create new series.
type Instrumentation struct {
	ReqDurationBuckets []float64
	Namespace          string
	Subsystem          string
	Labels             map[string]string
	Registerer         prometheus.Registerer
	reqTotal           *prometheus.CounterVec
	reqSizeBytes       *prometheus.SummaryVec
	reqDurationSecs    *prometheus.HistogramVec
	resSizeBytes       *prometheus.SummaryVec
}

// NewDefaultInstrumentation registers with the default registerer.
func NewDefaultInstrumentation() *Instrumentation {
	return NewInstrumentation(prometheus.DefaultRegisterer)
}

func NewInstrumentation(reg prometheus.Registerer) *Instrumentation {
	i := Instrumentation{
		Namespace: "dnacflow",
		Subsystem: "http",
		// playbook runs poll the controller and can take minutes
		ReqDurationBuckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		Registerer:         reg,
	}

	i.initMetrics()
	return &i
}

// Middleware must wrap the mux itself so the matched pattern is visible
// once the request has been served.
func (i *Instrumentation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		sResponseWriter := statusResponseWriter{ResponseWriter: w}

		next.ServeHTTP(&sResponseWriter, r)

		route := r.Pattern
		if route == "" {
			route = unmatched
		}
		if sResponseWriter.status == 0 {
			sResponseWriter.status = http.StatusOK
		}

		labelVals := []string{strconv.Itoa(sResponseWriter.status), r.Method, route}
		i.reqSizeBytes.WithLabelValues(labelVals...).Observe(float64(estimateRequestSize(r)))
		i.reqTotal.WithLabelValues(labelVals...).Inc()
		i.resSizeBytes.WithLabelValues(labelVals...).Observe(float64(sResponseWriter.size))
		i.reqDurationSecs.WithLabelValues(labelVals...).Observe(time.Since(startTime).Seconds())
	})
}

func (i *Instrumentation) initMetrics() {
	labels := []string{labelCode, labelMethod, labelRoute}

	i.reqTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "requests_total",
		Subsystem: i.Subsystem,
		Namespace: i.Namespace,
		Help:      "The total number of requests received",
	}, labels)

	i.reqSizeBytes = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:      "request_size_bytes",
		Subsystem: i.Subsystem,
		Namespace: i.Namespace,
		Help:      "Summary of request bytes received",
	}, labels)

	i.reqDurationSecs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "request_duration_seconds",
		Subsystem: i.Subsystem,
		Namespace: i.Namespace,
		Help:      "Histogram of the request duration",
		Buckets:   i.ReqDurationBuckets,
	}, labels)

	i.resSizeBytes = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:      "response_size_bytes",
		Subsystem: i.Subsystem,
		Namespace: i.Namespace,
		Help:      "Summary of response bytes sent",
	}, labels)

	reg := prometheus.WrapRegistererWith(i.Labels, i.Registerer)
	reg.MustRegister(
		i.reqTotal,
		i.reqSizeBytes,
		i.reqDurationSecs,
		i.resSizeBytes,
	)
}

// estimateRequestSize approximates the request length the way nginx
// does: request line, headers and the declared content length. The body
// itself is never read.
func estimateRequestSize(r *http.Request) int64 {
	var reqSize int64

	reqSize += int64(len(r.Method))
	if r.URL != nil {
		reqSize += int64(len(r.URL.Path))
	}
	reqSize += int64(len(r.Proto))
	reqSize += 4 // SP SP CRLF

	for key, vals := range r.Header {
		reqSize += int64(len(key))
		for _, v := range vals {
			reqSize += int64(len(v))
		}
		reqSize += 2
	}

	if r.ContentLength > 0 {
		reqSize += r.ContentLength
	}

	return reqSize
}
