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
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const sdaAuthProfilePath = "/dna/intent/api/v1/business/sda/authentication-profile"

type AuthProfile struct {
	SiteNameHierarchy        string `json:"siteNameHierarchy"`
	AuthenticateTemplateName string `json:"authenticateTemplateName,omitempty"`
}

// GetAuthProfile reads the authentication profile of a fabric site. The
// controller answers a missing profile with status "failed", which is
// reported as not found.
func (c *Client) GetAuthProfile(ctx context.Context, p AuthProfile) (gjson.Result, bool, error) {
	res, err := c.Do(ctx, http.MethodGet, sdaAuthProfilePath,
		WithQuery("siteNameHierarchy", p.SiteNameHierarchy),
		WithQuery("authenticateTemplateName", p.AuthenticateTemplateName),
	)
	if err != nil {
		if absent(err) {
			return gjson.Result{}, false, nil
		}
		return gjson.Result{}, false, err
	}
	if strings.EqualFold(res.Get("status").String(), "failed") {
		return res, false, nil
	}
	return res, true, nil
}

func (c *Client) AddAuthProfile(ctx context.Context, p AuthProfile) (gjson.Result, error) {
	return c.Do(ctx, http.MethodPost, sdaAuthProfilePath, WithJSON([]AuthProfile{p}))
}

func (c *Client) DeleteAuthProfile(ctx context.Context, p AuthProfile) (gjson.Result, error) {
	return c.Do(ctx, http.MethodDelete, sdaAuthProfilePath, WithQuery("siteNameHierarchy", p.SiteNameHierarchy))
}

// WaitForResult polls the execution id carried by an sda style response, if
// any, and returns its final details.
func (c *Client) WaitForResult(ctx context.Context, res gjson.Result) (*ExecutionDetails, error) {
	id := ExecutionID(res)
	if id == "" {
		return nil, nil
	}
	return c.WaitForExecution(ctx, id)
}
