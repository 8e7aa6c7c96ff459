package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseProxy(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"http://proxy.example:3128", true},
		{"https://proxy.example", true},
		{"socks5://127.0.0.1:1080", true},
		{"ftp://proxy.example", false},
		{"http://", false},
		{"://bad", false},
		{"proxy.example:3128", false},
	}

	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			u, err := ParseProxy(test.raw)
			if test.ok {
				assert.NoError(t, err)
				assert.Equal(t, test.raw, u.String())
				return
			}
			assert.Error(t, err)
		})
	}
}

func Test_ControllerProxy(t *testing.T) {
	_, ok := ControllerProxy(context.Background())
	assert.False(t, ok)

	_, ok = ControllerProxy(WithControllerProxy(context.Background(), nil))
	assert.False(t, ok)

	want, _ := url.Parse("http://proxy.example:3128")
	got, ok := ControllerProxy(WithControllerProxy(context.Background(), want))
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

// The environment is read each time a client is built, so the cases may
// set it in any order.
func Test_ProxyFunc_Environment(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		target  string
		want    string
		ctxWins bool
	}{
		{
			name:   "http proxy",
			env:    map[string]string{"HTTP_PROXY": "http://env-proxy:3128"},
			target: "http://controller.example/dna/intent/api/v1/site",
			want:   "http://env-proxy:3128",
		},
		{
			name:   "https proxy",
			env:    map[string]string{"HTTPS_PROXY": "http://env-proxy:3129"},
			target: "https://controller.example/dna/system/api/v1/auth/token",
			want:   "http://env-proxy:3129",
		},
		{
			name:   "no proxy",
			env:    map[string]string{"HTTP_PROXY": "http://env-proxy:3128", "NO_PROXY": "controller.example"},
			target: "http://controller.example/dna/intent/api/v1/site",
		},
		{
			name:   "unset",
			target: "http://controller.example/dna/intent/api/v1/site",
		},
		{
			name:    "controller proxy beats environment",
			env:     map[string]string{"HTTP_PROXY": "http://env-proxy:3128", "NO_PROXY": "controller.example"},
			target:  "http://controller.example/dna/intent/api/v1/site",
			want:    "http://pb-proxy:8080",
			ctxWins: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for _, k := range []string{"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "no_proxy", "REQUEST_METHOD"} {
				t.Setenv(k, "")
			}
			for k, v := range test.env {
				t.Setenv(k, v)
			}

			ctx := context.Background()
			if test.ctxWins {
				u, _ := url.Parse("http://pb-proxy:8080")
				ctx = WithControllerProxy(ctx, u)
			}

			req := httptest.NewRequest(http.MethodGet, test.target, nil)
			got, err := proxyFunc(ctx)(req)
			assert.NoError(t, err)
			if test.want == "" {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, test.want, got.String())
			}
		})
	}
}

func Test_NewHTTPClient_ControllerProxy(t *testing.T) {
	assert := assert.New(t)
	var hits int32
	var seen string

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		seen = r.URL.String()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"via":"proxy"}`))
	}))
	defer proxy.Close()

	u, err := ParseProxy(proxy.URL)
	if !assert.NoError(err) {
		return
	}
	ctx := WithControllerProxy(context.Background(), u)
	client := NewHTTPClient(ctx, false, 0)
	client.RetryMax = 0

	req, err := BuildRequest(ctx, http.MethodPost, "http://controller.invalid/dna/intent/api/v1/site", []byte(`{}`), http.Header{"Accept": {"*/*"}})
	if !assert.NoError(err) {
		return
	}
	assert.Equal("*/*", req.Header.Get("Accept"))
	assert.Equal("application/json", req.Header.Get("Content-Type"))

	resp, err := DoRequest(client, req)
	if !assert.NoError(err) {
		return
	}
	body, err := ReadBody(resp)
	assert.NoError(err)
	assert.Equal(`{"via":"proxy"}`, string(body))
	assert.Equal(int32(1), atomic.LoadInt32(&hits))
	// a forward proxy sees the absolute target url
	assert.Equal("http://controller.invalid/dna/intent/api/v1/site", seen)
}
