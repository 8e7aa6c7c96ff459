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
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

const profilingRulesPath = "/dna/intent/api/v1/endpoint-analytics/profiling-rules"

// ListProfilingRules returns every profiling rule the controller knows.
func (c *Client) ListProfilingRules(ctx context.Context) ([]gjson.Result, error) {
	res, err := c.Do(ctx, http.MethodGet, profilingRulesPath, WithQuery("includeDeleted", "false"))
	if err != nil {
		return nil, err
	}
	return res.Get("profilingRules").Array(), nil
}

// GetProfilingRule returns the rule with ruleID, or false when it does not exist.
func (c *Client) GetProfilingRule(ctx context.Context, ruleID string) (gjson.Result, bool, error) {
	res, err := c.Do(ctx, http.MethodGet, profilingRulesPath+"/"+url.PathEscape(ruleID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return gjson.Result{}, false, nil
		}
		return gjson.Result{}, false, err
	}
	if !res.Get("ruleId").Exists() {
		return gjson.Result{}, false, nil
	}
	return res, true, nil
}

func (c *Client) CreateProfilingRule(ctx context.Context, rule []byte) (gjson.Result, error) {
	return c.Do(ctx, http.MethodPost, profilingRulesPath, WithBody(rule))
}

func (c *Client) UpdateProfilingRule(ctx context.Context, ruleID string, rule []byte) (gjson.Result, error) {
	return c.Do(ctx, http.MethodPut, profilingRulesPath+"/"+url.PathEscape(ruleID), WithBody(rule))
}

func (c *Client) DeleteProfilingRule(ctx context.Context, ruleID string) (gjson.Result, error) {
	return c.Do(ctx, http.MethodDelete, profilingRulesPath+"/"+url.PathEscape(ruleID))
}
