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

// Package handlers serves playbook runs and the run journal over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/comcast/dnacflow/journal"
	"github.com/comcast/dnacflow/middleware/logging"
	"github.com/comcast/dnacflow/playbook"
	"go.uber.org/zap"
)

const defaultMaxBody = 4 << 20

type Handler struct {
	Runner  *playbook.Runner
	Journal *journal.Journal
	// MaxBody limits the size of posted playbooks, 0 means 4MiB.
	MaxBody int64
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /apply", h.Apply)
	mux.HandleFunc("GET /runs", h.Runs)
	mux.HandleFunc("GET /runs/{id}", h.Run)
	mux.HandleFunc("POST /testconn", h.TestConn)
}

func (h *Handler) getBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := h.MaxBody
	if limit <= 0 {
		limit = defaultMaxBody
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		zap.L().Error("could not read request body", zap.Error(err), zap.String("path", r.URL.Path), zap.String("trace_id", logging.TraceID(r.Context())))
		return nil, err
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	resp, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("could not marshal response", zap.Error(err), zap.String("path", r.URL.Path), zap.String("trace_id", logging.TraceID(r.Context())))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(resp)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

// Apply runs the posted YAML playbook and answers with its report. A
// failed task still answers 200, the report carries the failure.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(zap.String("trace_id", logging.TraceID(r.Context())))

	body, err := h.getBody(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	pb, err := playbook.LoadBytes(body)
	if err != nil {
		log.Warn("rejected playbook", zap.Error(err))
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	report, err := h.Runner.Run(r.Context(), pb)
	if err != nil {
		log.Error("playbook run failed to start", zap.Error(err))
		writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	log.Info("playbook run finished", zap.String("run_id", report.RunID), zap.Bool("failed", report.Failed))
	writeJSON(w, r, http.StatusOK, report)
}

func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		writeError(w, r, http.StatusNotFound, errors.New("run journal is disabled"))
		return
	}
	runs, err := h.Journal.Runs()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	writeJSON(w, r, http.StatusOK, runs)
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.Journal == nil {
		writeError(w, r, http.StatusNotFound, errors.New("run journal is disabled"))
		return
	}

	entries, err := h.Journal.Results(id)
	if errors.Is(err, journal.ErrRunNotFound) {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, fmt.Errorf("unable to read run %s - %w", id, err))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"run_id": id, "results": entries})
}
