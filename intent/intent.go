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

// Package intent defines the contract every controller module follows: it
// reads the desired state from a task, compares it with what the
// controller reports and returns a Result describing what changed.
package intent

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/comcast/dnacflow/dnac"
	"github.com/mitchellh/mapstructure"
)

var ErrUnknownModule = errors.New("unknown module")

// Result is the outcome of one module run.
type Result struct {
	Changed  bool        `json:"changed"`
	Failed   bool        `json:"failed"`
	Msg      string      `json:"msg"`
	Response interface{} `json:"response,omitempty"`
}

// FailError aborts a module run. Msg and Response end up in the failed
// Result the runner reports.
type FailError struct {
	Msg      string
	Response interface{}
}

func (e *FailError) Error() string {
	return e.Msg
}

func Fail(msg string, response interface{}) *FailError {
	return &FailError{Msg: msg, Response: response}
}

func Failf(format string, a ...interface{}) *FailError {
	return &FailError{Msg: fmt.Sprintf(format, a...)}
}

// AsResult turns any error into a failed Result. A FailError keeps its
// message and response.
func AsResult(err error) *Result {
	var fe *FailError
	if errors.As(err, &fe) {
		return &Result{Failed: true, Msg: fe.Msg, Response: fe.Response}
	}
	return &Result{Failed: true, Msg: err.Error()}
}

// Task is one playbook entry handed to a module.
type Task struct {
	Name         string
	State        string
	ConfigVerify bool
	Config       []map[string]interface{}
	Params       map[string]interface{}
}

type Module interface {
	Name() string
	// States lists the accepted states, the first one is the default.
	States() []string
	Run(ctx context.Context, c *dnac.Client, t Task) (*Result, error)
}

// ValidateState returns the state to run with, falling back to the
// module default when state is empty.
func ValidateState(m Module, state string) (string, error) {
	states := m.States()
	if state == "" && len(states) > 0 {
		return states[0], nil
	}
	for _, s := range states {
		if s == state {
			return state, nil
		}
	}
	return "", Failf("State %s is invalid", state)
}

// Decode copies loosely typed playbook input into out, matching json tag
// names. Unknown keys are rejected and embedded structs are flattened.
func Decode(input interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		ErrorUnused:      true,
		Squash:           true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return Fail("Invalid parameters in playbook: "+err.Error(), nil)
	}
	return nil
}

type Registry struct {
	modules map[string]Module
}

func NewRegistry(mods ...Module) *Registry {
	r := &Registry{modules: make(map[string]Module)}
	for _, m := range mods {
		r.modules[m.Name()] = m
	}
	return r
}

func (r *Registry) Lookup(name string) (Module, error) {
	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return m, nil
}

// Names lists the registered modules in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
