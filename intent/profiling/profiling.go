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

// Package profiling manages endpoint analytics profiling rules.
package profiling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/intent"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

const (
	Name = "endpoint_analytics_profiling_rules"

	statePresent = "present"
	stateAbsent  = "absent"
)

// readOnly fields are set by the controller and never sent.
var readOnly = []string{"lastModifiedBy", "lastModifiedOn"}

type Rule struct {
	RuleID          string           `json:"ruleId,omitempty"`
	RuleName        string           `json:"ruleName,omitempty"`
	RuleType        string           `json:"ruleType,omitempty"`
	RuleVersion     *int             `json:"ruleVersion,omitempty"`
	RulePriority    *int             `json:"rulePriority,omitempty"`
	SourcePriority  *int             `json:"sourcePriority,omitempty"`
	IsDeleted       *bool            `json:"isDeleted,omitempty"`
	LastModifiedBy  string           `json:"lastModifiedBy,omitempty"`
	LastModifiedOn  *int64           `json:"lastModifiedOn,omitempty"`
	PluginID        string           `json:"pluginId,omitempty"`
	ClusterID       string           `json:"clusterId,omitempty"`
	Rejected        *bool            `json:"rejected,omitempty"`
	Result          *RuleResult      `json:"result,omitempty"`
	ConditionGroups *ConditionGroups `json:"conditionGroups,omitempty"`
	UsedAttributes  []string         `json:"usedAttributes,omitempty"`
}

type RuleResult struct {
	OperatingSystem      []string `json:"operatingSystem,omitempty"`
	DeviceType           []string `json:"deviceType,omitempty"`
	HardwareManufacturer []string `json:"hardwareManufacturer,omitempty"`
	HardwareModel        []string `json:"hardwareModel,omitempty"`
}

type ConditionGroups struct {
	Condition      *Condition `json:"condition,omitempty"`
	ConditionGroup []string   `json:"conditionGroup,omitempty"`
	Operator       string     `json:"operator,omitempty"`
	Type           string     `json:"type,omitempty"`
}

type Condition struct {
	Attribute           string `json:"attribute,omitempty"`
	AttributeDictionary string `json:"attributeDictionary,omitempty"`
	Operator            string `json:"operator,omitempty"`
	Value               string `json:"value,omitempty"`
}

type Module struct{}

func New() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return Name
}

func (m *Module) States() []string {
	return []string{statePresent, stateAbsent}
}

func (m *Module) Run(ctx context.Context, c *dnac.Client, t intent.Task) (*intent.Result, error) {
	log := zap.L()

	state, err := intent.ValidateState(m, t.State)
	if err != nil {
		return nil, err
	}

	var rule Rule
	if err := intent.Decode(t.Params, &rule); err != nil {
		return nil, err
	}
	if rule.RuleID == "" && rule.RuleName == "" {
		return nil, intent.Fail("Invalid parameters in playbook: one of ruleId or ruleName is required", nil)
	}

	existing, found, err := lookup(ctx, c, &rule)
	if err != nil {
		return nil, fmt.Errorf("unable to read profiling rule - %w", err)
	}

	if state == stateAbsent {
		if !found {
			return &intent.Result{Msg: "Object already absent"}, nil
		}
		id := existing.Get("ruleId").String()
		res, err := c.DeleteProfilingRule(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("unable to delete profiling rule %s - %w", id, err)
		}
		log.Info("profiling rule deleted", zap.String("ruleId", id))
		return &intent.Result{Changed: true, Msg: "Object deleted", Response: res.Value()}, nil
	}

	body, err := payload(&rule)
	if err != nil {
		return nil, err
	}

	if !found {
		res, err := c.CreateProfilingRule(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("unable to create profiling rule %s - %w", rule.RuleName, err)
		}
		log.Info("profiling rule created", zap.String("ruleName", rule.RuleName))
		return &intent.Result{Changed: true, Msg: "Object created", Response: res.Value()}, nil
	}

	diff, err := differs(existing, body)
	if err != nil {
		return nil, err
	}
	if !diff {
		return &intent.Result{Msg: "Object already present", Response: existing.Value()}, nil
	}

	id := existing.Get("ruleId").String()
	body, err = sjson.SetBytes(body, "ruleId", id)
	if err != nil {
		return nil, err
	}
	res, err := c.UpdateProfilingRule(ctx, id, body)
	if err != nil {
		return nil, fmt.Errorf("unable to update profiling rule %s - %w", id, err)
	}
	log.Info("profiling rule updated", zap.String("ruleId", id))
	return &intent.Result{Changed: true, Msg: "Object updated", Response: res.Value()}, nil
}

// lookup finds the rule by id, or by name when no id is given.
func lookup(ctx context.Context, c *dnac.Client, rule *Rule) (gjson.Result, bool, error) {
	if rule.RuleID != "" {
		return c.GetProfilingRule(ctx, rule.RuleID)
	}

	rules, err := c.ListProfilingRules(ctx)
	if err != nil {
		return gjson.Result{}, false, err
	}
	for _, r := range rules {
		if r.Get("ruleName").String() == rule.RuleName {
			return r, true, nil
		}
	}
	return gjson.Result{}, false, nil
}

// payload is the request body for rule without its read-only fields.
func payload(rule *Rule) ([]byte, error) {
	body, err := json.Marshal(rule)
	if err != nil {
		return nil, err
	}
	for _, f := range readOnly {
		if body, err = sjson.DeleteBytes(body, f); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// differs reports whether applying body on top of existing would change
// it. Fields the playbook leaves out keep their current values.
func differs(existing gjson.Result, body []byte) (bool, error) {
	var have, merged Rule
	if err := json.Unmarshal([]byte(existing.Raw), &have); err != nil {
		return false, fmt.Errorf("unable to parse profiling rule - %w", err)
	}
	if err := json.Unmarshal([]byte(existing.Raw), &merged); err != nil {
		return false, fmt.Errorf("unable to parse profiling rule - %w", err)
	}
	if err := json.Unmarshal(body, &merged); err != nil {
		return false, err
	}

	if d := cmp.Diff(have, merged, cmpopts.EquateEmpty()); d != "" {
		zap.L().Debug("profiling rule differs", zap.String("diff", d))
		return true, nil
	}
	return false, nil
}
