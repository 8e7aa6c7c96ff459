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

package dnac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/comcast/dnacflow/common"
	"github.com/comcast/dnacflow/metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	authPath    = "/dna/system/api/v1/auth/token"
	tokenHeader = "X-Auth-Token"

	DefaultPort         = "443"
	DefaultUsername     = "admin"
	DefaultVersion      = "2.2.3.3"
	DefaultTaskTimeout  = 1200 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// CredentialSource hands out controller logins, typically backed by vault.
type CredentialSource interface {
	GetCredentials(ctx context.Context, target string) (*common.Credential, error)
	Invalidate(target string)
}

// Options configures a Client. Zero values fall back to the controller defaults.
type Options struct {
	// Host may be a bare hostname or a full base url such as https://10.0.0.1:8443
	Host               string
	Port               string
	Scheme             string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Version            string
	Debug              bool
	Timeout            time.Duration
	// RateLimit is the number of requests per second sent to the
	// controller, 0 disables limiting.
	RateLimit    float64
	TaskTimeout  time.Duration
	PollInterval time.Duration
	// Credentials, when set, is consulted for every login instead of
	// Username and Password. Target is the key handed to it and
	// defaults to Host.
	Credentials CredentialSource
	Target      string
}

type Client struct {
	baseURL  *url.URL
	http     *retryablehttp.Client
	limiter  *rate.Limiter
	creds    CredentialSource
	target   string
	username string
	password string

	version      int
	versionStr   string
	taskTimeout  time.Duration
	pollInterval time.Duration

	log *zap.Logger

	// loginMu serialises logins so concurrent callers share one token.
	loginMu sync.Mutex
	mu      sync.RWMutex
	token   string
}

// NewClient validates opts and builds a client. No request is sent until
// the first call, which authenticates on demand.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, ErrNoHost
	}

	base, err := baseURL(opts)
	if err != nil {
		return nil, err
	}

	if opts.Username == "" {
		opts.Username = DefaultUsername
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Target == "" {
		opts.Target = opts.Host
	}

	version, err := ParseVersion(opts.Version)
	if err != nil {
		return nil, err
	}

	retryClient := common.NewHTTPClient(ctx, opts.InsecureSkipVerify, opts.Timeout)
	if opts.Debug {
		retryClient.Logger = hclog.New(&hclog.LoggerOptions{
			Name:       "dnac",
			Level:      hclog.Debug,
			JSONFormat: true,
		})
	}

	limit := rate.Inf
	burst := 1
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		burst = int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		baseURL:      base,
		http:         retryClient,
		limiter:      rate.NewLimiter(limit, burst),
		creds:        opts.Credentials,
		target:       opts.Target,
		username:     opts.Username,
		password:     opts.Password,
		version:      version,
		versionStr:   opts.Version,
		taskTimeout:  opts.TaskTimeout,
		pollInterval: opts.PollInterval,
		log:          zap.L(),
	}, nil
}

func baseURL(opts Options) (*url.URL, error) {
	if strings.Contains(opts.Host, "://") {
		u, err := url.Parse(strings.TrimSuffix(opts.Host, "/"))
		if err != nil {
			return nil, fmt.Errorf("controller url doesn't look valid - %w", err)
		}
		return u, nil
	}

	scheme := opts.Scheme
	if scheme == "" {
		scheme = "https"
	}
	port := opts.Port
	if port == "" {
		port = DefaultPort
	}
	return &url.URL{Scheme: scheme, Host: net.JoinHostPort(opts.Host, port)}, nil
}

// Version is the controller version with the dots removed, e.g. 2376.
func (c *Client) Version() int {
	return c.version
}

func (c *Client) VersionString() string {
	return c.versionStr
}

// Username is the login of the last successful authentication.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) dropToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// Authenticate exchanges basic auth credentials for a token that is sent
// on every later request.
func (c *Client) Authenticate(ctx context.Context) error {
	user, pass := c.username, c.password
	if c.creds != nil {
		cred, err := c.creds.GetCredentials(ctx, c.target)
		if err != nil {
			return fmt.Errorf("unable to get credentials for %s - %w", c.target, err)
		}
		user, pass = cred.User, cred.Pass
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := common.BuildRequest(ctx, http.MethodPost, c.baseURL.String()+authPath, nil, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(user, pass)

	resp, err := common.DoRequest(c.http, req)
	if err != nil {
		metrics.ObserveAPIRequest(http.MethodPost, "system", 0)
		return fmt.Errorf("auth request to %s failed - %w", c.baseURL.Host, err)
	}
	metrics.ObserveAPIRequest(http.MethodPost, "system", resp.StatusCode)

	body, err := common.ReadBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Method: http.MethodPost, Path: authPath, Body: body}
	}

	token := gjson.GetBytes(body, "Token").String()
	if token == "" {
		return fmt.Errorf("auth response from %s has no token - %w", c.baseURL.Host, ErrUnauthorized)
	}

	c.mu.Lock()
	c.token = token
	c.username = user
	c.mu.Unlock()

	c.log.Debug("authenticated to controller", zap.String("host", c.baseURL.Host), zap.String("user", user))
	return nil
}

type requestOptions struct {
	query  url.Values
	body   []byte
	header http.Header
	file   *multipartFile
	err    error
}

type multipartFile struct {
	field  string
	path   string
	fields map[string]string
}

type RequestOption func(*requestOptions)

// WithQuery adds a query parameter. Empty values are skipped.
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) {
		if value == "" {
			return
		}
		if o.query == nil {
			o.query = url.Values{}
		}
		o.query.Add(key, value)
	}
}

// WithBody sends raw as the json body.
func WithBody(raw []byte) RequestOption {
	return func(o *requestOptions) {
		o.body = raw
	}
}

// WithJSON marshals v as the json body.
func WithJSON(v interface{}) RequestOption {
	return func(o *requestOptions) {
		raw, err := json.Marshal(v)
		if err != nil {
			o.err = fmt.Errorf("unable to marshal request body - %w", err)
			return
		}
		o.body = raw
	}
}

func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Set(key, value)
	}
}

// WithMultipartFile uploads the file at path under field as
// multipart/form-data, along with any extra form fields.
func WithMultipartFile(field, path string, fields map[string]string) RequestOption {
	return func(o *requestOptions) {
		o.file = &multipartFile{field: field, path: path, fields: fields}
	}
}

// Do sends a request to the controller and returns the parsed json body. A
// 401 drops the token, refreshes credentials and retries once.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (gjson.Result, error) {
	o := &requestOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.err != nil {
		return gjson.Result{}, o.err
	}
	if o.file != nil {
		if err := o.buildMultipart(); err != nil {
			return gjson.Result{}, err
		}
	}

	token := c.currentToken()
	if token == "" {
		if err := c.login(ctx, ""); err != nil {
			return gjson.Result{}, err
		}
		token = c.currentToken()
	}

	body, status, err := c.send(ctx, token, method, path, o)
	if status == http.StatusUnauthorized {
		c.log.Info("controller token rejected, authenticating again", zap.String("host", c.baseURL.Host))
		if err := c.login(ctx, token); err != nil {
			return gjson.Result{}, err
		}
		body, _, err = c.send(ctx, c.currentToken(), method, path, o)
	}
	if err != nil {
		return gjson.Result{}, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s %s - %w", method, path, ErrInvalidResponse)
	}
	return gjson.ParseBytes(body), nil
}

// login authenticates unless another caller already replaced stale with
// a fresh token while this one waited.
func (c *Client) login(ctx context.Context, stale string) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if token := c.currentToken(); token != "" && token != stale {
		return nil
	}
	if stale != "" {
		c.dropToken()
		if c.creds != nil {
			c.creds.Invalidate(c.target)
		}
	}
	return c.Authenticate(ctx)
}

// send performs a single request with token. status is 0 on transport errors.
func (c *Client) send(ctx context.Context, token, method, path string, o *requestOptions) ([]byte, int, error) {
	family := apiFamily(path)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	uri := c.baseURL.String() + path
	if len(o.query) > 0 {
		uri += "?" + o.query.Encode()
	}

	header := o.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(tokenHeader, token)

	req, err := common.BuildRequest(ctx, method, uri, o.body, header)
	if err != nil {
		return nil, 0, err
	}

	resp, err := common.DoRequest(c.http, req)
	if err != nil {
		metrics.ObserveAPIRequest(method, family, 0)
		return nil, 0, fmt.Errorf("%s %s failed - %w", method, path, err)
	}
	metrics.ObserveAPIRequest(method, family, resp.StatusCode)

	body, err := common.ReadBody(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("controller returned an error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return body, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: body}
	}

	return body, resp.StatusCode, nil
}

func (o *requestOptions) buildMultipart() error {
	f, err := os.Open(o.file.path)
	if err != nil {
		return fmt.Errorf("unable to open %s for upload - %w", o.file.path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range o.file.fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile(o.file.field, filepath.Base(o.file.path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("unable to read %s for upload - %w", o.file.path, err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	o.body = buf.Bytes()
	if o.header == nil {
		o.header = http.Header{}
	}
	o.header.Set("Content-Type", w.FormDataContentType())
	return nil
}

// apiFamily returns the api group of a controller path, "intent" for
// /dna/intent/api/v1/site.
func apiFamily(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) > 1 && parts[0] == "dna" {
		return parts[1]
	}
	return "other"
}
