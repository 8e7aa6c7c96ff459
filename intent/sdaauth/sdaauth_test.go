package sdaauth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/comcast/dnacflow/dnac/dnactest"
	"github.com/comcast/dnacflow/intent"
	"github.com/comcast/dnacflow/intent/sdaauth"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

const (
	profilePath = "/dna/intent/api/v1/business/sda/authentication-profile"
	site        = "Global/San Jose/Building1"

	present = `{"siteNameHierarchy":"Global/San Jose/Building1","authenticateTemplateName":"Open Authentication","status":"success"}`
	missing = `{"status":"failed","description":"Authentication profile not found"}`
)

func run(t *testing.T, srv *dnactest.Server, state string, params map[string]interface{}) (*intent.Result, error) {
	t.Helper()
	return sdaauth.New().Run(context.Background(), srv.Client(t, "2.2.3.3"), intent.Task{
		Name:   sdaauth.Name,
		State:  state,
		Params: params,
	})
}

func Test_Query(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, profilePath, http.StatusOK, present)

	res, err := run(t, srv, "", map[string]interface{}{"siteNameHierarchy": site})

	assert.NoError(err)
	assert.False(res.Changed)
	assert.Equal(gjson.Parse(present).Value(), res.Response)
	assert.Equal(site, srv.Requests(http.MethodGet, profilePath)[0].Query.Get("siteNameHierarchy"))
}

func Test_Present(t *testing.T) {
	tests := []struct {
		name     string
		get      string
		template string
		changed  bool
		msg      string
		posts    int
	}{
		{"missing", missing, "Open Authentication", true, "Object created", 1},
		{"same template", present, "Open Authentication", false, "Object already present", 0},
		{"other template", present, "Closed Authentication", true, "Object created", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			srv := dnactest.New(t)
			srv.HandleJSON(http.MethodGet, profilePath, http.StatusOK, tt.get)
			srv.HandleJSON(http.MethodPost, profilePath, http.StatusAccepted, `{"executionId":"ex-1","executionStatusUrl":"/status/ex-1"}`)
			srv.Execution("ex-1",
				`{"bapiExecutionId":"ex-1","status":"IN_PROGRESS"}`,
				`{"bapiExecutionId":"ex-1","status":"SUCCESS"}`,
			)

			res, err := run(t, srv, "present", map[string]interface{}{
				"siteNameHierarchy":        site,
				"authenticateTemplateName": tt.template,
			})

			assert.NoError(err)
			assert.Equal(tt.changed, res.Changed)
			assert.Equal(tt.msg, res.Msg)

			reqs := srv.Requests(http.MethodPost, profilePath)
			if assert.Len(reqs, tt.posts) && tt.posts > 0 {
				body := gjson.ParseBytes(reqs[0].Body)
				assert.Equal(site, body.Get("0.siteNameHierarchy").String())
				assert.Equal(tt.template, body.Get("0.authenticateTemplateName").String())
			}
		})
	}
}

func Test_Present_ExecutionFails(t *testing.T) {
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, profilePath, http.StatusOK, missing)
	srv.HandleJSON(http.MethodPost, profilePath, http.StatusAccepted, `{"executionId":"ex-2"}`)
	srv.Execution("ex-2", `{"bapiExecutionId":"ex-2","status":"FAILURE","bapiError":"Site is not a fabric site"}`)

	_, err := run(t, srv, "present", map[string]interface{}{
		"siteNameHierarchy":        site,
		"authenticateTemplateName": "No Authentication",
	})

	var fe *intent.FailError
	if assert.True(t, errors.As(err, &fe)) {
		assert.Equal(t, "Site is not a fabric site", fe.Msg)
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
		{"exists", present, true, "Object deleted", 1},
		{"missing", missing, false, "Object already absent", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			srv := dnactest.New(t)
			srv.HandleJSON(http.MethodGet, profilePath, http.StatusOK, tt.get)
			srv.HandleJSON(http.MethodDelete, profilePath, http.StatusOK, `{"status":"success"}`)

			res, err := run(t, srv, "absent", map[string]interface{}{"siteNameHierarchy": site})

			assert.NoError(err)
			assert.Equal(tt.changed, res.Changed)
			assert.Equal(tt.msg, res.Msg)
			assert.Equal(tt.deletes, srv.Calls(http.MethodDelete, profilePath))
		})
	}
}

func Test_MissingSite(t *testing.T) {
	srv := dnactest.New(t)
	_, err := run(t, srv, "present", map[string]interface{}{"authenticateTemplateName": "Open Authentication"})

	var fe *intent.FailError
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, 0, srv.Auths())
}
