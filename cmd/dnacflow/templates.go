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

package main

import (
	"github.com/comcast/dnacflow/buildinfo"
	"github.com/comcast/dnacflow/journal"
)

type indexAppData struct {
	buildinfo.BuildInfo
	Modules []string
	Runs    []journal.Run
}

const indexTmpl string = `<html>
  <head>
    <title>dnacflow</title>
    <style>
      .links, .build-info {
        display: flex;
      }
      h3, p {
        padding-right: 1em;
      }
      label {
        display: inline-block;
        width: 75px;
      }
      form label, form input {
        margin: 10px;
      }
      .error-text {
        color: red;
      }
    </style>
  </head>
  <body>
    <h1>dnacflow</h1>
    <div class="build-info">
      <p><b>build date:</b> {{ .Date }}</p>
      <p><b>revision:</b> {{ .GitRevision }}</p>
      <p><b>version:</b> {{ .GitVersion }}</p>
    </div>
    <div class="links">
      <h3><a href="runs">Runs</a></h3>
      <h3><a href="metrics">Metrics</a></h3>
      <h3><a href="info">Info</a></h3>
    </div>
    <h2>Modules</h2>
    <ul>
      {{range .Modules}}<li>{{.}}</li>
      {{end}}
    </ul>
    <h2>Test connection</h2>
    <form onsubmit="testConn(event)">
      <label>Host:</label> <input type="text" id="host" placeholder="ip or fqdn"><br>
      <input type="submit" value="Test">
      <div style="display: inline" id="result"></div>
      <div style="display: inline" id="error" class="error-text"></div>
    </form>
    <h2>Recent runs</h2>
    <ul>
      {{range .Runs}}<li><a href="runs/{{.ID}}">{{.ID}}</a> started {{.Started.Format "2006-01-02 15:04:05"}}, {{.Tasks}} task(s)</li>
      {{else}}<li>no runs recorded</li>
      {{end}}
    </ul>
  </body>
  <script>
  function testConn(e) {
    e.preventDefault();
    const host = document.getElementById("host").value;
    document.getElementById("result").textContent = "";
    document.getElementById("error").textContent = "";
    fetch("testconn", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify({host: host}),
    })
      .then((res) => res.json())
      .then((data) => {
        if (data.connectionTest) {
          document.getElementById("result").textContent = "✅";
        } else {
          document.getElementById("error").textContent = data.error;
        }
      })
      .catch((err) => {
        document.getElementById("error").textContent = err;
      });
  }
  </script>
</html>
`
