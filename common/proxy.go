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

package common

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// controllerProxy keys the proxy a playbook routes its controller calls through.
type controllerProxy struct{}

// WithControllerProxy returns a copy of ctx carrying proxy. Clients built
// from it send every request through proxy, ignoring the environment.
func WithControllerProxy(ctx context.Context, proxy *url.URL) context.Context {
	return context.WithValue(ctx, controllerProxy{}, proxy)
}

func ControllerProxy(ctx context.Context) (*url.URL, bool) {
	u, ok := ctx.Value(controllerProxy{}).(*url.URL)
	return u, ok && u != nil
}

// ParseProxy accepts http, https and socks5 proxy urls with a host.
func ParseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q - %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("invalid proxy %q - unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q - no host", raw)
	}
	return u, nil
}

// proxyFunc picks the proxy for a new transport. Without a controller proxy
// on ctx, HTTP_PROXY, HTTPS_PROXY and NO_PROXY are read when the client is
// built, so a long running service follows changes to them.
func proxyFunc(ctx context.Context) func(*http.Request) (*url.URL, error) {
	if u, ok := ControllerProxy(ctx); ok {
		return http.ProxyURL(u)
	}
	env := httpproxy.FromEnvironment().ProxyFunc()
	return func(r *http.Request) (*url.URL, error) {
		return env(r.URL)
	}
}
