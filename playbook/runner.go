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

package playbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comcast/dnacflow/common"
	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/intent"
	"github.com/comcast/dnacflow/journal"
	"github.com/comcast/dnacflow/metrics"
	"github.com/nrednav/cuid2"
	"go.uber.org/zap"
)

var (
	ErrEmptyPlaybook = errors.New("playbook has no tasks")
	ErrNoModule      = errors.New("task has no module")

	generate, _ = cuid2.Init(
		cuid2.WithLength(24),
	)
)

// TaskResult is the outcome of one task of a run.
type TaskResult struct {
	Task   string `json:"task"`
	Module string `json:"module"`
	intent.Result
}

type Report struct {
	RunID   string       `json:"run_id"`
	Results []TaskResult `json:"results"`
	// Failed is set when a task failed without ignore_errors, which
	// also stops the run.
	Failed bool `json:"failed"`
}

// Runner executes playbooks. Defaults are the connection settings used
// when the playbook leaves a controller field unset.
type Runner struct {
	Registry *intent.Registry
	Journal  *journal.Journal
	Defaults dnac.Options
	// Proxy is the http proxy used to reach the controller when the
	// playbook names none. Empty falls back to HTTP(S)_PROXY.
	Proxy string
}

func (r *Runner) options(c Controller) dnac.Options {
	opts := r.Defaults
	if c.Host != "" {
		opts.Host = c.Host
		opts.Target = ""
	}
	if c.Port != "" {
		opts.Port = c.Port
	}
	if c.Username != "" {
		opts.Username = c.Username
		opts.Credentials = nil
	}
	if c.Password != "" {
		opts.Password = c.Password
		opts.Credentials = nil
	}
	if c.Version != "" {
		opts.Version = c.Version
	}
	if c.Verify != nil {
		opts.InsecureSkipVerify = !*c.Verify
	}
	if c.Debug {
		opts.Debug = true
	}
	if c.TaskTimeout > 0 {
		opts.TaskTimeout = c.TaskTimeout
	}
	if c.PollInterval > 0 {
		opts.PollInterval = c.PollInterval
	}
	return opts
}

// Client builds a controller client for c layered over the defaults.
func (r *Runner) Client(ctx context.Context, c Controller) (*dnac.Client, error) {
	proxy := r.Proxy
	if c.Proxy != "" {
		proxy = c.Proxy
	}
	if proxy != "" {
		u, err := common.ParseProxy(proxy)
		if err != nil {
			return nil, err
		}
		ctx = common.WithControllerProxy(ctx, u)
	}

	client, err := dnac.NewClient(ctx, r.options(c))
	if err != nil {
		return nil, fmt.Errorf("unable to create controller client - %w", err)
	}
	return client, nil
}

// Run executes the tasks of pb in order against one controller client.
func (r *Runner) Run(ctx context.Context, pb *Playbook) (*Report, error) {
	client, err := r.Client(ctx, pb.Controller)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: generate()}
	rlog := zap.L().With(zap.String("run_id", report.RunID))

	if r.Journal != nil {
		if err := r.Journal.Begin(report.RunID, time.Now()); err != nil {
			rlog.Error("unable to journal run", zap.Error(err))
		}
	}

	for i, t := range pb.Tasks {
		res := r.runTask(ctx, client, t)
		metrics.ObserveReconcile(t.Module, res.Changed, res.Failed)

		report.Results = append(report.Results, TaskResult{Task: t.Name, Module: t.Module, Result: *res})
		if r.Journal != nil {
			if err := r.Journal.Record(report.RunID, i, t.Name, t.Module, res); err != nil {
				rlog.Error("unable to journal task result", zap.String("task", t.Name), zap.Error(err))
			}
		}

		if res.Failed {
			if t.IgnoreErrors {
				rlog.Warn("task failed, ignoring", zap.String("task", t.Name), zap.String("msg", res.Msg))
				continue
			}
			rlog.Error("task failed", zap.String("task", t.Name), zap.String("msg", res.Msg))
			report.Failed = true
			break
		}
		rlog.Info("task finished", zap.String("task", t.Name), zap.Bool("changed", res.Changed))
	}

	return report, nil
}

func (r *Runner) runTask(ctx context.Context, client *dnac.Client, t Task) *intent.Result {
	mod, err := r.Registry.Lookup(t.Module)
	if err != nil {
		return intent.AsResult(err)
	}

	res, err := mod.Run(ctx, client, intent.Task{
		Name:         t.Name,
		State:        t.State,
		ConfigVerify: t.ConfigVerify,
		Config:       t.Config,
		Params:       t.Params,
	})
	if err != nil {
		return intent.AsResult(err)
	}
	if res == nil {
		res = &intent.Result{}
	}
	return res
}
