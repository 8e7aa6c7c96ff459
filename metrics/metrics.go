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

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dnacflow"

var (
	APIRequests = newCounter("api_requests_total",
		"Number of requests sent to the controller by method, api family and status code. Transport errors use code 0.",
		[]string{"method", "family", "code"})

	TaskPolls = newCounter("task_polls_total",
		"Number of controller task or execution status polls by kind and outcome.",
		[]string{"kind", "outcome"})

	TaskWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_wait_seconds",
		Help:      "Time spent waiting for controller tasks to reach a terminal state.",
		Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{"kind", "outcome"})

	Reconciles = newCounter("reconcile_total",
		"Number of module runs by module and the action taken (changed, unchanged, failed).",
		[]string{"module", "action"})

	registerOnce sync.Once
)

func newCounter(metricName string, docString string, labelNames []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      metricName,
			Help:      docString,
		},
		labelNames,
	)
}

// Register adds the collectors to reg. Calling it more than once is a no-op.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(APIRequests, TaskPolls, TaskWaitSeconds, Reconciles)
	})
}

func ObserveAPIRequest(method, family string, code int) {
	APIRequests.WithLabelValues(method, family, strconv.Itoa(code)).Inc()
}

func ObservePoll(kind, outcome string) {
	TaskPolls.WithLabelValues(kind, outcome).Inc()
}

func ObserveTaskWait(kind, outcome string, start time.Time) {
	TaskWaitSeconds.WithLabelValues(kind, outcome).Observe(time.Since(start).Seconds())
}

// ObserveReconcile records the outcome of one module run.
func ObserveReconcile(module string, changed, failed bool) {
	action := "unchanged"
	switch {
	case failed:
		action = "failed"
	case changed:
		action = "changed"
	}
	Reconciles.WithLabelValues(module, action).Inc()
}
