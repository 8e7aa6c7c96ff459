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
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("controller rejected the credentials")
	ErrForbidden       = errors.New("user lacks permission for this operation")
	ErrTaskTimeout     = errors.New("timed out waiting for controller task")
	ErrNoTaskID        = errors.New("controller response carries no task or execution id")
	ErrInvalidResponse = errors.New("controller returned a body that is not valid json")
	ErrNoHost          = errors.New("no controller host provided")
)

// APIError is returned for any non 2xx controller response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s %s - %s", e.StatusCode, e.Method, e.Path, string(e.Body))
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

// TaskError reports a task the controller marked as failed.
type TaskError struct {
	Details *TaskDetails
}

func (e *TaskError) Error() string {
	reason := e.Details.FailureReason
	if reason == "" {
		reason = e.Details.Progress
	}
	return fmt.Sprintf("task %s failed - %s", e.Details.ID, reason)
}

// ExecutionError reports an execution that ended with a bapiError or a FAILURE status.
type ExecutionError struct {
	Details *ExecutionDetails
}

func (e *ExecutionError) Error() string {
	reason := e.Details.BapiError
	if reason == "" {
		reason = e.Details.Status
	}
	return fmt.Sprintf("execution %s failed - %s", e.Details.ID, reason)
}
