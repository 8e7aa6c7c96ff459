package profiling_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/comcast/dnacflow/dnac/dnactest"
	"github.com/comcast/dnacflow/intent"
	"github.com/comcast/dnacflow/intent/profiling"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

const (
	rulesPath = "/dna/intent/api/v1/endpoint-analytics/profiling-rules"
	version   = "2.3.7.6"

	existing = `{
		"ruleId":"r-1",
		"ruleName":"printers",
		"ruleType":"Custom Rule",
		"rulePriority":10,
		"lastModifiedBy":"admin",
		"lastModifiedOn":1700000000000,
		"result":{"deviceType":["Printer"],"hardwareManufacturer":["HP"]},
		"conditionGroups":{"type":"condition","condition":{"attribute":"oui","operator":"equals","value":"HP"}}
	}`
)

type m = map[string]interface{}

func run(t *testing.T, srv *dnactest.Server, state string, params m) (*intent.Result, error) {
	t.Helper()
	return profiling.New().Run(context.Background(), srv.Client(t, version), intent.Task{
		Name:   profiling.Name,
		State:  state,
		Params: params,
	})
}

func Test_Present_CreatesMissingRule(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, rulesPath, http.StatusOK, `{"profilingRules":[]}`)
	srv.HandleJSON(http.MethodPost, rulesPath, http.StatusAccepted, `{"id":"r-9"}`)

	res, err := run(t, srv, "present", m{
		"ruleName":       "cameras",
		"rulePriority":   "5",
		"lastModifiedBy": "someone",
		"result":         m{"deviceType": []interface{}{"Camera"}},
	})

	assert.NoError(err)
	assert.True(res.Changed)
	assert.Equal("Object created", res.Msg)

	reqs := srv.Requests(http.MethodPost, rulesPath)
	if assert.Len(reqs, 1) {
		body := gjson.ParseBytes(reqs[0].Body)
		assert.Equal("cameras", body.Get("ruleName").String())
		assert.Equal(int64(5), body.Get("rulePriority").Int())
		assert.Equal("Camera", body.Get("result.deviceType.0").String())
		assert.False(body.Get("lastModifiedBy").Exists())
	}
}

func Test_Present_AlreadyPresent(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, rulesPath+"/r-1", http.StatusOK, existing)

	res, err := run(t, srv, "present", m{
		"ruleId":       "r-1",
		"rulePriority": 10,
		"result":       m{"deviceType": []interface{}{"Printer"}},
	})

	assert.NoError(err)
	assert.False(res.Changed)
	assert.Equal("Object already present", res.Msg)
	assert.Equal(0, srv.Calls(http.MethodPut, rulesPath+"/r-1"))
}

func Test_Present_UpdatesByName(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, rulesPath, http.StatusOK, `{"profilingRules":[`+existing+`]}`)
	srv.HandleJSON(http.MethodPut, rulesPath+"/r-1", http.StatusAccepted, `{"id":"r-1"}`)

	res, err := run(t, srv, "present", m{
		"ruleName":     "printers",
		"rulePriority": 20,
	})

	assert.NoError(err)
	assert.True(res.Changed)
	assert.Equal("Object updated", res.Msg)

	reqs := srv.Requests(http.MethodPut, rulesPath+"/r-1")
	if assert.Len(reqs, 1) {
		body := gjson.ParseBytes(reqs[0].Body)
		assert.Equal("r-1", body.Get("ruleId").String())
		assert.Equal(int64(20), body.Get("rulePriority").Int())
	}
}

func Test_Absent(t *testing.T) {
	tests := []struct {
		name    string
		get     string
		changed bool
		msg     string
		deletes int
	}{
		{"exists", existing, true, "Object deleted", 1},
		{"missing", `{}`, false, "Object already absent", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			srv := dnactest.New(t)
			srv.HandleJSON(http.MethodGet, rulesPath+"/r-1", http.StatusOK, tt.get)
			srv.HandleJSON(http.MethodDelete, rulesPath+"/r-1", http.StatusOK, `{}`)

			res, err := run(t, srv, "absent", m{"ruleId": "r-1"})

			assert.NoError(err)
			assert.Equal(tt.changed, res.Changed)
			assert.Equal(tt.msg, res.Msg)
			assert.Equal(tt.deletes, srv.Calls(http.MethodDelete, rulesPath+"/r-1"))
		})
	}
}

func Test_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		state  string
		params m
	}{
		{"bad state", "merged", m{"ruleName": "x"}},
		{"no identity", "present", m{"ruleType": "Custom Rule"}},
		{"unknown field", "present", m{"ruleName": "x", "colour": "red"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := dnactest.New(t)
			_, err := run(t, srv, tt.state, tt.params)

			var fe *intent.FailError
			assert.ErrorAs(t, err, &fe)
			assert.Equal(t, 0, srv.Auths())
		})
	}
}
