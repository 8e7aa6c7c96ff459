package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_ObserveReconcile(t *testing.T) {
	assert := assert.New(t)

	ObserveReconcile("sda_auth_profile", false, false)
	ObserveReconcile("sda_auth_profile", true, false)
	ObserveReconcile("sda_auth_profile", true, true)
	ObserveReconcile("sda_auth_profile", true, false)

	assert.Equal(float64(1), testutil.ToFloat64(Reconciles.WithLabelValues("sda_auth_profile", "unchanged")))
	assert.Equal(float64(2), testutil.ToFloat64(Reconciles.WithLabelValues("sda_auth_profile", "changed")))
	assert.Equal(float64(1), testutil.ToFloat64(Reconciles.WithLabelValues("sda_auth_profile", "failed")))
}

func Test_ObserveAPIRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(APIRequests)

	ObserveAPIRequest("GET", "intent", 200)
	ObserveAPIRequest("GET", "intent", 200)
	ObserveAPIRequest("POST", "system", 401)

	expected := `
		# HELP dnacflow_api_requests_total Number of requests sent to the controller by method, api family and status code. Transport errors use code 0.
		# TYPE dnacflow_api_requests_total counter
		dnacflow_api_requests_total{code="200",family="intent",method="GET"} 2
		dnacflow_api_requests_total{code="401",family="system",method="POST"} 1
	`
	if err := testutil.CollectAndCompare(APIRequests, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected collecting result:\n%s", err)
	}
}

func Test_ObserveTaskWait(t *testing.T) {
	ObserveTaskWait("task", "succeeded", time.Now().Add(-3*time.Second))
	ObservePoll("task", "pending")

	assert.Equal(t, 1, testutil.CollectAndCount(TaskWaitSeconds, "dnacflow_task_wait_seconds"))
	assert.Equal(t, float64(1), testutil.ToFloat64(TaskPolls.WithLabelValues("task", "pending")))
}

func Test_Register_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		Register(reg)
		Register(reg)
	})
}
