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
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/comcast/dnacflow/metrics"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	taskPath      = "/dna/intent/api/v1/task/"
	executionPath = "/dna/intent/api/v1/dnacaap/management/execution-status/"

	maxPollInterval = 30 * time.Second
)

var errPending = errors.New("task still running")

type TaskDetails struct {
	ID            string
	Progress      string
	IsError       bool
	FailureReason string
	EndTime       string
	Data          string
	Raw           gjson.Result
}

// Failed reports whether the controller flagged the task as failed. A
// failureReason alone is informational, isError decides.
func (t *TaskDetails) Failed() bool {
	return t.IsError
}

type ExecutionDetails struct {
	ID        string
	Status    string
	BapiError string
	Raw       gjson.Result
}

type TaskState int

const (
	Pending TaskState = iota
	Succeeded
	Failed
)

func (s TaskState) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "pending"
}

// Classifier decides whether a polled task is done.
type Classifier func(*TaskDetails) TaskState

// ProgressContains succeeds once progress contains sub, ignoring case.
func ProgressContains(sub string) Classifier {
	sub = strings.ToLower(sub)
	return func(t *TaskDetails) TaskState {
		if t.Failed() {
			return Failed
		}
		if strings.Contains(strings.ToLower(t.Progress), sub) {
			return Succeeded
		}
		return Pending
	}
}

// ProgressEquals succeeds once progress is exactly s.
func ProgressEquals(s string) Classifier {
	return func(t *TaskDetails) TaskState {
		if t.Failed() {
			return Failed
		}
		if t.Progress == s {
			return Succeeded
		}
		return Pending
	}
}

// EndTimeReached is terminal once the task carries an end time.
func EndTimeReached(t *TaskDetails) TaskState {
	if t.EndTime == "" {
		if t.IsError {
			return Failed
		}
		return Pending
	}
	if t.IsError {
		return Failed
	}
	return Succeeded
}

func (c *Client) GetTask(ctx context.Context, id string) (*TaskDetails, error) {
	res, err := c.Do(ctx, http.MethodGet, taskPath+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	r := res.Get("response")
	return &TaskDetails{
		ID:            r.Get("id").String(),
		Progress:      r.Get("progress").String(),
		IsError:       r.Get("isError").Bool(),
		FailureReason: r.Get("failureReason").String(),
		EndTime:       endTime(r.Get("endTime")),
		Data:          r.Get("data").String(),
		Raw:           r,
	}, nil
}

func endTime(r gjson.Result) string {
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	if r.Type == gjson.Number && r.Int() == 0 {
		return ""
	}
	return r.String()
}

func (c *Client) GetExecution(ctx context.Context, id string) (*ExecutionDetails, error) {
	res, err := c.Do(ctx, http.MethodGet, executionPath+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	return &ExecutionDetails{
		ID:        res.Get("bapiExecutionId").String(),
		Status:    res.Get("status").String(),
		BapiError: res.Get("bapiError").String(),
		Raw:       res,
	}, nil
}

// newBackOff starts polling at the configured interval and grows the wait
// up to maxPollInterval, giving up after the task timeout.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = maxPollInterval
	if c.pollInterval > maxPollInterval {
		b.MaxInterval = c.pollInterval
	}
	b.Multiplier = 1.5
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = c.taskTimeout
	return backoff.WithContext(b, ctx)
}

// poll runs check until it reports a terminal state, ctx is done or the
// task timeout elapses.
func (c *Client) poll(ctx context.Context, kind, id string, check func(context.Context) error) error {
	start := time.Now()

	pollCtx, cancel := context.WithTimeout(ctx, c.taskTimeout)
	defer cancel()

	err := backoff.RetryNotify(func() error {
		err := check(pollCtx)
		switch {
		case err == nil:
			metrics.ObservePoll(kind, Succeeded.String())
		case errors.Is(err, errPending):
			metrics.ObservePoll(kind, Pending.String())
		default:
			metrics.ObservePoll(kind, Failed.String())
		}
		return err
	}, c.newBackOff(pollCtx), func(err error, next time.Duration) {
		if !errors.Is(err, errPending) {
			c.log.Warn("transient error polling controller", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		}
	})

	var taskErr *TaskError
	var execErr *ExecutionError
	switch {
	case err == nil:
		metrics.ObserveTaskWait(kind, Succeeded.String(), start)
		return nil
	case errors.As(err, &taskErr), errors.As(err, &execErr):
		metrics.ObserveTaskWait(kind, Failed.String(), start)
		return err
	case ctx.Err() != nil:
		metrics.ObserveTaskWait(kind, "cancelled", start)
		return ctx.Err()
	case errors.Is(err, errPending), errors.Is(err, context.DeadlineExceeded), pollCtx.Err() != nil:
		// the backoff stops before a deadline it cannot wait out, so
		// the caller's deadline may not have fired yet
		if deadline, ok := ctx.Deadline(); ok && deadline.Before(start.Add(c.taskTimeout)) {
			metrics.ObserveTaskWait(kind, "cancelled", start)
			return fmt.Errorf("%s %s - %w", kind, id, context.DeadlineExceeded)
		}
		metrics.ObserveTaskWait(kind, "timeout", start)
		return fmt.Errorf("%s %s not finished after %s - %w", kind, id, c.taskTimeout, ErrTaskTimeout)
	}
	metrics.ObserveTaskWait(kind, Failed.String(), start)
	return err
}

// WaitForTask polls the task until classify reports a terminal state. The
// last details seen are returned with any error.
func (c *Client) WaitForTask(ctx context.Context, id string, classify Classifier) (*TaskDetails, error) {
	if id == "" {
		return nil, ErrNoTaskID
	}

	var details *TaskDetails
	err := c.poll(ctx, "task", id, func(ctx context.Context) error {
		d, err := c.GetTask(ctx, id)
		if err != nil {
			return permanentIf(err)
		}
		details = d
		switch classify(d) {
		case Succeeded:
			return nil
		case Failed:
			return backoff.Permanent(&TaskError{Details: d})
		}
		return errPending
	})
	return details, err
}

// WaitForExecution polls an execution id until it succeeds or reports a
// bapiError.
func (c *Client) WaitForExecution(ctx context.Context, id string) (*ExecutionDetails, error) {
	if id == "" {
		return nil, ErrNoTaskID
	}

	var details *ExecutionDetails
	err := c.poll(ctx, "execution", id, func(ctx context.Context) error {
		d, err := c.GetExecution(ctx, id)
		if err != nil {
			return permanentIf(err)
		}
		details = d
		switch {
		case d.Status == "SUCCESS":
			return nil
		case d.BapiError != "", d.Status == "FAILURE":
			return backoff.Permanent(&ExecutionError{Details: d})
		}
		return errPending
	})
	return details, err
}

// Credential and permission errors won't heal by polling again.
func permanentIf(err error) error {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
		return backoff.Permanent(err)
	}
	return err
}

// TaskID reads the task id from the response shapes the controller uses.
func TaskID(res gjson.Result) string {
	for _, p := range []string{"response.taskId", "taskId"} {
		if id := res.Get(p).String(); id != "" {
			return id
		}
	}
	return ""
}

// ExecutionID reads the execution id of an asynchronous legacy call.
func ExecutionID(res gjson.Result) string {
	return res.Get("executionId").String()
}
