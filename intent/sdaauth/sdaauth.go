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

// Package sdaauth manages the authentication profile of an SDA fabric site.
package sdaauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/intent"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	Name = "sda_auth_profile"

	stateQuery   = "query"
	statePresent = "present"
	stateAbsent  = "absent"
)

type Module struct{}

func New() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return Name
}

func (m *Module) States() []string {
	return []string{stateQuery, statePresent, stateAbsent}
}

func (m *Module) Run(ctx context.Context, c *dnac.Client, t intent.Task) (*intent.Result, error) {
	state, err := intent.ValidateState(m, t.State)
	if err != nil {
		return nil, err
	}

	var p dnac.AuthProfile
	if err := intent.Decode(t.Params, &p); err != nil {
		return nil, err
	}
	if p.SiteNameHierarchy == "" {
		return nil, intent.Fail("Invalid parameters in playbook: siteNameHierarchy is required", nil)
	}

	current, exists, err := c.GetAuthProfile(ctx, dnac.AuthProfile{SiteNameHierarchy: p.SiteNameHierarchy})
	if err != nil {
		return nil, fmt.Errorf("unable to read authentication profile of %s - %w", p.SiteNameHierarchy, err)
	}

	switch state {
	case stateQuery:
		return &intent.Result{Response: current.Value()}, nil

	case stateAbsent:
		if !exists {
			return &intent.Result{Msg: "Object already absent"}, nil
		}
		res, err := c.DeleteAuthProfile(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("unable to delete authentication profile of %s - %w", p.SiteNameHierarchy, err)
		}
		return finish(ctx, c, res, "Object deleted")
	}

	if exists && (p.AuthenticateTemplateName == "" || current.Get("authenticateTemplateName").String() == p.AuthenticateTemplateName) {
		return &intent.Result{Msg: "Object already present", Response: current.Value()}, nil
	}
	res, err := c.AddAuthProfile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("unable to add authentication profile to %s - %w", p.SiteNameHierarchy, err)
	}
	return finish(ctx, c, res, "Object created")
}

// finish waits for the execution a change started, if the controller
// returned one.
func finish(ctx context.Context, c *dnac.Client, res gjson.Result, msg string) (*intent.Result, error) {
	details, err := c.WaitForResult(ctx, res)
	var execErr *dnac.ExecutionError
	if errors.As(err, &execErr) {
		return nil, intent.Fail(execErr.Details.BapiError, execErr.Details.Raw.Value())
	}
	if err != nil {
		return nil, err
	}
	if details != nil {
		zap.L().Info("authentication profile change finished", zap.String("execution", details.ID), zap.String("status", details.Status))
		return &intent.Result{Changed: true, Msg: msg, Response: details.Raw.Value()}, nil
	}
	return &intent.Result{Changed: true, Msg: msg, Response: res.Value()}, nil
}
