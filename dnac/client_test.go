package dnac_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/comcast/dnacflow/common"
	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/dnac/dnactest"
	"github.com/stretchr/testify/assert"
)

const (
	legacySitePath = "/dna/intent/api/v1/site"
	sitesPath      = "/dna/intent/api/v1/sites"
)

func Test_Do_ReauthenticatesOn401(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, "/dna/intent/api/v1/events/count", http.StatusOK, `{"response":7}`)

	c := srv.Client(t, "2.3.7.6")

	res, err := c.GetEventCount(context.Background(), "NETWORK-1", "", nil)
	assert.NoError(err)
	assert.Equal(int64(7), res.Get("response").Int())
	assert.Equal(1, srv.Auths())

	srv.RotateToken("token-2")
	res, err = c.GetEventCount(context.Background(), "NETWORK-1", "", nil)
	assert.NoError(err)
	assert.Equal(int64(7), res.Get("response").Int())
	assert.Equal(2, srv.Auths())
}

func Test_Do_ConcurrentFirstLogin(t *testing.T) {
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, "/dna/intent/api/v1/events/count", http.StatusOK, `{"response":7}`)
	c := srv.Client(t, "2.3.7.6")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetEventCount(context.Background(), "", "", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Auths())
	assert.Equal(t, 16, srv.Calls(http.MethodGet, "/dna/intent/api/v1/events/count"))
}

func Test_Do_BadCredentials(t *testing.T) {
	srv := dnactest.New(t)
	srv.SetCredentials("admin", "other")

	c := srv.Client(t, "2.3.7.6")
	_, err := c.GetEventCount(context.Background(), "", "", nil)
	assert.True(t, errors.Is(err, dnac.ErrUnauthorized), "got %v", err)
}

// rotatingCreds hands out the next password once the old one is invalidated.
type rotatingCreds struct {
	passwords   []string
	invalidated int
}

func (r *rotatingCreds) GetCredentials(ctx context.Context, target string) (*common.Credential, error) {
	return &common.Credential{User: dnactest.DefaultUser, Pass: r.passwords[r.invalidated]}, nil
}

func (r *rotatingCreds) Invalidate(target string) {
	r.invalidated++
}

func Test_Do_CredentialRotation(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, "/dna/intent/api/v1/events/count", http.StatusOK, `{"response":1}`)

	creds := &rotatingCreds{passwords: []string{dnactest.DefaultPass, "rotated"}}
	c, err := dnac.NewClient(context.Background(), dnac.Options{
		Host:        srv.URL,
		Credentials: creds,
		Target:      "dnac-east",
	})
	assert.NoError(err)

	_, err = c.GetEventCount(context.Background(), "", "", nil)
	assert.NoError(err)

	srv.SetCredentials(dnactest.DefaultUser, "rotated")
	srv.RotateToken("token-2")

	_, err = c.GetEventCount(context.Background(), "", "", nil)
	assert.NoError(err)
	assert.Equal(1, creds.invalidated)
	assert.Equal(2, srv.Auths())
}

func Test_Do_APIErrors(t *testing.T) {
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, "/dna/intent/api/v1/endpoint-analytics/profiling-rules/missing", http.StatusNotFound, `{"error":"not found"}`)
	srv.HandleJSON(http.MethodDelete, "/dna/intent/api/v1/endpoint-analytics/profiling-rules/locked", http.StatusForbidden, `{"error":"forbidden"}`)

	c := srv.Client(t, "2.3.7.6")

	_, ok, err := c.GetProfilingRule(context.Background(), "missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = c.DeleteProfilingRule(context.Background(), "locked")
	assert.True(t, errors.Is(err, dnac.ErrForbidden))
	var apiErr *dnac.APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, http.MethodDelete, apiErr.Method)
		assert.Contains(t, apiErr.Error(), "[403]")
	}
}

func Test_Do_InvalidJSON(t *testing.T) {
	srv := dnactest.New(t)
	srv.Handle(http.MethodGet, "/dna/intent/api/v1/events/count", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>maintenance</html>")
	})

	c := srv.Client(t, "2.3.7.6")
	_, err := c.GetEventCount(context.Background(), "", "", nil)
	assert.True(t, errors.Is(err, dnac.ErrInvalidResponse))
}

func Test_WaitForTask(t *testing.T) {
	srv := dnactest.New(t)
	srv.Task("t-ok",
		`{"id":"t-ok","progress":"Import in progress","isError":false}`,
		`{"id":"t-ok","progress":"Import in progress","isError":false}`,
		`{"id":"t-ok","progress":"Image import completed successfully","isError":false,"endTime":1700000000000}`,
	)
	srv.Task("t-fail",
		`{"id":"t-fail","progress":"Import in progress","isError":false}`,
		`{"id":"t-fail","progress":"failed","isError":true,"failureReason":"checksum mismatch"}`,
	)

	c := srv.Client(t, "2.3.7.6")

	d, err := c.WaitForTask(context.Background(), "t-ok", dnac.ProgressContains("completed successfully"))
	assert.NoError(t, err)
	assert.Equal(t, "1700000000000", d.EndTime)
	assert.Equal(t, 3, srv.Calls(http.MethodGet, dnactest.TaskPath+"t-ok"))

	d, err = c.WaitForTask(context.Background(), "t-fail", dnac.ProgressContains("completed successfully"))
	var taskErr *dnac.TaskError
	if assert.True(t, errors.As(err, &taskErr)) {
		assert.Equal(t, "checksum mismatch", taskErr.Details.FailureReason)
	}
	assert.True(t, d.IsError)

	_, err = c.WaitForTask(context.Background(), "", dnac.EndTimeReached)
	assert.True(t, errors.Is(err, dnac.ErrNoTaskID))
}

func Test_WaitForTask_Timeout(t *testing.T) {
	srv := dnactest.New(t)
	srv.Task("t-slow", `{"id":"t-slow","progress":"still going","isError":false}`)

	c, err := dnac.NewClient(context.Background(), dnac.Options{
		Host:         srv.URL,
		Password:     dnactest.DefaultPass,
		PollInterval: time.Millisecond,
		TaskTimeout:  50 * time.Millisecond,
	})
	assert.NoError(t, err)

	d, err := c.WaitForTask(context.Background(), "t-slow", dnac.EndTimeReached)
	assert.True(t, errors.Is(err, dnac.ErrTaskTimeout), "got %v", err)
	if assert.NotNil(t, d) {
		assert.Equal(t, "still going", d.Progress)
	}
}

func Test_WaitForTask_Cancelled(t *testing.T) {
	srv := dnactest.New(t)
	srv.Task("t-slow", `{"id":"t-slow","progress":"still going","isError":false}`)
	c := srv.Client(t, "2.3.7.6")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.WaitForTask(ctx, "t-slow", dnac.EndTimeReached)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.False(t, errors.Is(err, dnac.ErrTaskTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func Test_WaitForTask_CancelledByCaller(t *testing.T) {
	srv := dnactest.New(t)
	srv.Task("t-slow", `{"id":"t-slow","progress":"still going","isError":false}`)
	c := srv.Client(t, "2.3.7.6")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := c.WaitForTask(ctx, "t-slow", dnac.EndTimeReached)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.False(t, errors.Is(err, dnac.ErrTaskTimeout))
}

func Test_WaitForExecution_DeadlineBeforeTimeout(t *testing.T) {
	srv := dnactest.New(t)
	srv.Execution("e-slow", `{"bapiExecutionId":"e-slow","status":"IN_PROGRESS"}`)
	c := srv.Client(t, "2.2.3.3")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.WaitForExecution(ctx, "e-slow")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.False(t, errors.Is(err, dnac.ErrTaskTimeout))
}

func Test_WaitForExecution(t *testing.T) {
	srv := dnactest.New(t)
	srv.Execution("e-ok",
		`{"bapiExecutionId":"e-ok","status":"IN_PROGRESS"}`,
		`{"bapiExecutionId":"e-ok","status":"SUCCESS"}`,
	)
	srv.Execution("e-fail", `{"bapiExecutionId":"e-fail","status":"FAILURE","bapiError":"Site name already exists"}`)

	c := srv.Client(t, "2.2.3.3")

	d, err := c.WaitForExecution(context.Background(), "e-ok")
	assert.NoError(t, err)
	assert.Equal(t, "SUCCESS", d.Status)

	_, err = c.WaitForExecution(context.Background(), "e-fail")
	var execErr *dnac.ExecutionError
	if assert.True(t, errors.As(err, &execErr)) {
		assert.Equal(t, "Site name already exists", execErr.Details.BapiError)
	}
}

func Test_GetSite_Legacy(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.Handle(http.MethodGet, legacySitePath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Global/USA/SJC/Floor1" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"response":{"errorCode":"NCGR10008","message":"Site not found"}}`)
			return
		}
		io.WriteString(w, `{"response":[{
			"id":"floor-1","name":"Floor1","siteNameHierarchy":"Global/USA/SJC/Floor1","parentId":"bldg-1",
			"additionalInfo":[
				{"nameSpace":"Location","attributes":{"type":"floor"}},
				{"nameSpace":"mapGeometry","attributes":{"width":"100.0","length":"200.5","height":"10.0"}},
				{"nameSpace":"mapsSummary","attributes":{"rfModel":"Cubes And Walled Offices","floorIndex":"2"}}
			]}]}`)
	})

	c := srv.Client(t, "2.2.3.3")

	site, err := c.GetSite(context.Background(), "Global/USA/SJC/Floor1")
	assert.NoError(err)
	if assert.NotNil(site) {
		assert.Equal("floor", site.Type)
		assert.Equal("Global/USA/SJC", site.ParentName)
		assert.Equal(200.5, *site.Length)
		assert.Equal(2.0, *site.FloorNumber)
		assert.Equal("Cubes And Walled Offices", site.RFModel)
		assert.Nil(site.Latitude)
	}

	site, err = c.GetSite(context.Background(), "Global/Nowhere")
	assert.NoError(err)
	assert.Nil(site)
}

func Test_GetSiteByHierarchy(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, sitesPath, http.StatusOK, `{"response":[
		{"id":"b-1","name":"SJC-1","nameHierarchy":"Global/USA/SJC-1","type":"building","parentId":"a-1",
		 "latitude":37.3381,"longitude":-121.8863,"address":"1 Main St","country":"United States"}]}`)

	c := srv.Client(t, "2.3.7.6")

	site, err := c.GetSiteByHierarchy(context.Background(), "Global/USA/SJC-1")
	assert.NoError(err)
	if assert.NotNil(site) {
		assert.Equal("b-1", site.ID)
		assert.Equal("Global/USA", site.ParentName)
		assert.InDelta(37.3381, *site.Latitude, 0.00001)
	}
	assert.Equal("Global/USA/SJC-1", srv.Requests(http.MethodGet, sitesPath)[0].Query.Get("nameHierarchy"))

	site, err = c.GetSiteByHierarchy(context.Background(), "Global/USA/SJC-2")
	assert.NoError(err)
	assert.Nil(site)
}

func Test_CreateSites(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodPost, "/dna/intent/api/v1/sites/bulk", http.StatusAccepted, `{"response":{"taskId":"bulk-1","url":"/task/bulk-1"},"version":"1.0"}`)
	srv.HandleJSON(http.MethodPut, "/dna/intent/api/v2/floors/f-1", http.StatusAccepted, `{"version":"1.0"}`)

	c := srv.Client(t, "2.3.7.6")

	id, err := c.CreateSites(context.Background(), []map[string]interface{}{{"type": "area", "name": "USA", "parentNameHierarchy": "Global"}})
	assert.NoError(err)
	assert.Equal("bulk-1", id)

	var sent []map[string]interface{}
	assert.NoError(json.Unmarshal(srv.Requests(http.MethodPost, "/dna/intent/api/v1/sites/bulk")[0].Body, &sent))
	assert.Equal("Global", sent[0]["parentNameHierarchy"])

	_, err = c.UpdateSiteDesign(context.Background(), "floor", "f-1", map[string]string{"name": "Floor1"})
	assert.True(errors.Is(err, dnac.ErrNoTaskID))

	_, err = c.UpdateSiteDesign(context.Background(), "campus", "x", nil)
	assert.Error(err)
}

func Test_ImportLocalImage(t *testing.T) {
	assert := assert.New(t)
	srv := dnactest.New(t)
	srv.Handle(http.MethodPost, "/dna/intent/api/v1/image/importation/source/file", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		content, _ := io.ReadAll(f)
		if hdr.Filename != "cat9k.bin" || string(content) != "image-bytes" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"response":{"taskId":"import-1"}}`)
	})

	path := filepath.Join(t.TempDir(), "cat9k.bin")
	assert.NoError(os.WriteFile(path, []byte("image-bytes"), 0o600))

	c := srv.Client(t, "2.3.7.6")
	id, err := c.ImportLocalImage(context.Background(), dnac.LocalImport{FilePath: path})
	assert.NoError(err)
	assert.Equal("import-1", id)
	assert.Equal("false", srv.Requests(http.MethodPost, "/dna/intent/api/v1/image/importation/source/file")[0].Query.Get("isThirdParty"))

	_, err = c.ImportLocalImage(context.Background(), dnac.LocalImport{FilePath: filepath.Join(t.TempDir(), "missing.bin")})
	assert.Error(err)
}

func Test_GetEventCount_Headers(t *testing.T) {
	srv := dnactest.New(t)
	srv.HandleJSON(http.MethodGet, "/dna/intent/api/v1/events/count", http.StatusOK, `{"response":3}`)

	c := srv.Client(t, "2.3.7.6")
	_, err := c.GetEventCount(context.Background(), "NETWORK-1", "ASSURANCE", map[string]string{"X-Custom": "value"})
	assert.NoError(t, err)

	req := srv.Requests(http.MethodGet, "/dna/intent/api/v1/events/count")[0]
	assert.Equal(t, "value", req.Header.Get("X-Custom"))
	assert.Equal(t, "ASSURANCE", req.Query.Get("tags"))
	assert.Equal(t, "NETWORK-1", req.Query.Get("eventId"))
}

func Test_ParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want int
		err  bool
	}{
		{in: "2.2.3.3", want: 2233},
		{in: "2.3.5.3", want: 2353},
		{in: "2.3.7.6", want: 2376},
		{in: " 2.3.7.9 ", want: 2379},
		{in: "latest", err: true},
		{in: "", err: true},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, err := dnac.ParseVersion(test.in)
			if test.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func Test_NewClient_Validation(t *testing.T) {
	_, err := dnac.NewClient(context.Background(), dnac.Options{})
	assert.True(t, errors.Is(err, dnac.ErrNoHost))

	_, err = dnac.NewClient(context.Background(), dnac.Options{Host: "dnac", Version: "x.y"})
	assert.Error(t, err)
}
