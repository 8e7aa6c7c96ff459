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

// Package eventcount reads the number of registered events.
package eventcount

import (
	"context"
	"fmt"

	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/intent"
)

const Name = "event_count_info"

type Params struct {
	EventID string            `json:"eventId"`
	Tags    string            `json:"tags"`
	Headers map[string]string `json:"headers"`
}

type Module struct{}

func New() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return Name
}

// The module only reads, query is its sole state.
func (m *Module) States() []string {
	return []string{"query"}
}

func (m *Module) Run(ctx context.Context, c *dnac.Client, t intent.Task) (*intent.Result, error) {
	if _, err := intent.ValidateState(m, t.State); err != nil {
		return nil, err
	}

	var p Params
	if err := intent.Decode(t.Params, &p); err != nil {
		return nil, err
	}

	res, err := c.GetEventCount(ctx, p.EventID, p.Tags, p.Headers)
	if err != nil {
		return nil, fmt.Errorf("unable to count events - %w", err)
	}
	return &intent.Result{Response: res.Value()}, nil
}
