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

// Package journal keeps the results of playbook runs in a buntdb store so
// they can be read back after the run finished.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/comcast/dnacflow/intent"
	"github.com/tidwall/buntdb"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// Memory keeps the journal in process memory only.
	Memory = ":memory:"

	runsIndex = "runs"
)

var ErrRunNotFound = errors.New("run not found")

type Journal struct {
	db *buntdb.DB
}

// Entry is one recorded task result.
type Entry struct {
	Seq      int           `json:"seq"`
	Task     string        `json:"task"`
	Module   string        `json:"module"`
	Recorded time.Time     `json:"recorded"`
	Result   intent.Result `json:"result"`
}

// Run summarizes one recorded playbook run.
type Run struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Tasks   int       `json:"tasks"`
}

// Open opens the journal at path, creating it if needed. An empty path
// is the same as Memory.
func Open(path string) (*Journal, error) {
	if path == "" {
		path = Memory
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open journal %s - %w", path, err)
	}
	if err := db.CreateIndex(runsIndex, "runs:*", buntdb.IndexJSON("started")); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to index journal runs - %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func runKey(runID string) string {
	return "runs:" + runID
}

// entryKey pads seq so keys sort in run order.
func entryKey(runID string, seq int) string {
	return fmt.Sprintf("run:%s:%06d", runID, seq)
}

// Begin registers a new run.
func (j *Journal) Begin(runID string, started time.Time) error {
	doc, err := sjson.Set("", "id", runID)
	if err != nil {
		return err
	}
	if doc, err = sjson.Set(doc, "started", started.UnixNano()); err != nil {
		return err
	}
	return j.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(runKey(runID), doc, nil)
		return err
	})
}

// Record stores the result of the task at position seq of a run.
func (j *Journal) Record(runID string, seq int, task, module string, res *intent.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("unable to encode result of %s - %w", task, err)
	}

	doc, err := sjson.Set("", "seq", seq)
	if err != nil {
		return err
	}
	for _, kv := range [][2]string{{"task", task}, {"module", module}, {"recorded", time.Now().UTC().Format(time.RFC3339Nano)}} {
		if doc, err = sjson.Set(doc, kv[0], kv[1]); err != nil {
			return err
		}
	}
	if doc, err = sjson.SetRaw(doc, "result", string(raw)); err != nil {
		return err
	}

	return j.db.Update(func(tx *buntdb.Tx) error {
		run, err := tx.Get(runKey(runID))
		if errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		if err != nil {
			return err
		}
		if _, _, err := tx.Set(entryKey(runID, seq), doc, nil); err != nil {
			return err
		}
		run, err = sjson.Set(run, "tasks", gjson.Get(run, "tasks").Int()+1)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(runKey(runID), run, nil)
		return err
	})
}

// Results returns the entries of a run in the order they were recorded.
func (j *Journal) Results(runID string) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(runKey(runID)); err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
			}
			return err
		}

		var parseErr error
		err := tx.AscendKeys("run:"+runID+":*", func(key, value string) bool {
			e, err := parseEntry(value)
			if err != nil {
				parseErr = fmt.Errorf("unable to read journal entry %s - %w", key, err)
				return false
			}
			entries = append(entries, e)
			return true
		})
		if err != nil {
			return err
		}
		return parseErr
	})
	return entries, err
}

func parseEntry(value string) (Entry, error) {
	doc := gjson.Parse(value)
	e := Entry{
		Seq:    int(doc.Get("seq").Int()),
		Task:   doc.Get("task").String(),
		Module: doc.Get("module").String(),
	}
	if ts := doc.Get("recorded").String(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return e, err
		}
		e.Recorded = t
	}
	err := json.Unmarshal([]byte(doc.Get("result").Raw), &e.Result)
	return e, err
}

// Runs lists the recorded runs, oldest first.
func (j *Journal) Runs() ([]Run, error) {
	var runs []Run
	err := j.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(runsIndex, func(key, value string) bool {
			doc := gjson.Parse(value)
			runs = append(runs, Run{
				ID:      doc.Get("id").String(),
				Started: time.Unix(0, doc.Get("started").Int()).UTC(),
				Tasks:   int(doc.Get("tasks").Int()),
			})
			return true
		})
	})
	return runs, err
}
