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

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/comcast/dnacflow/middleware/logging"
	"github.com/comcast/dnacflow/playbook"
	"go.uber.org/zap"
)

type host struct {
	H       string `json:"host"`
	Port    string `json:"port"`
	Version string `json:"version"`
}

// TestConn logs in to the controller named in the body with the configured
// credentials. The response reports connectionTest true on success and
// the error otherwise.
func (h *Handler) TestConn(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(zap.String("trace_id", logging.TraceID(r.Context())))
	response := map[string]interface{}{"connectionTest": false}

	body, err := h.getBody(w, r)
	if err != nil {
		response["error"] = err.Error()
		writeJSON(w, r, http.StatusBadRequest, response)
		return
	}

	var target host
	if err := json.Unmarshal(body, &target); err != nil || target.H == "" {
		if err == nil {
			response["error"] = "'host' is required"
		} else {
			log.Error("could not unmarshal host", zap.Error(err), zap.String("path", r.URL.Path))
			response["error"] = err.Error()
		}
		writeJSON(w, r, http.StatusBadRequest, response)
		return
	}

	client, err := h.Runner.Client(r.Context(), playbook.Controller{Host: target.H, Port: target.Port, Version: target.Version})
	if err != nil {
		response["error"] = err.Error()
		writeJSON(w, r, http.StatusBadRequest, response)
		return
	}

	if err := client.Authenticate(r.Context()); err != nil {
		log.Warn("test connection failed", zap.String("host", target.H), zap.Error(err))
		response["error"] = err.Error()
		writeJSON(w, r, http.StatusOK, response)
		return
	}

	response["connectionTest"] = true
	writeJSON(w, r, http.StatusOK, response)
}
