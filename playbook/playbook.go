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

// Package playbook loads task lists from YAML and runs them against a
// controller through the registered intent modules.
package playbook

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Controller overrides the process wide connection settings for one
// playbook. Unset fields keep the configured value.
type Controller struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Version      string        `yaml:"version"`
	Proxy        string        `yaml:"proxy"`
	Verify       *bool         `yaml:"verify"`
	Debug        bool          `yaml:"debug"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Task struct {
	Name         string                   `yaml:"name"`
	Module       string                   `yaml:"module"`
	State        string                   `yaml:"state"`
	ConfigVerify bool                     `yaml:"config_verify"`
	IgnoreErrors bool                     `yaml:"ignore_errors"`
	Config       []map[string]interface{} `yaml:"config"`
	Params       map[string]interface{}   `yaml:"params"`
}

type Playbook struct {
	Controller Controller `yaml:"controller"`
	Tasks      []Task     `yaml:"tasks"`
}

// Load decodes a playbook. Unknown keys are rejected so typos in option
// names surface before anything is sent to the controller.
func Load(r io.Reader) (*Playbook, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var pb Playbook
	if err := dec.Decode(&pb); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyPlaybook
		}
		return nil, fmt.Errorf("unable to parse playbook - %w", err)
	}
	if len(pb.Tasks) == 0 {
		return nil, ErrEmptyPlaybook
	}
	for i, t := range pb.Tasks {
		if t.Module == "" {
			return nil, fmt.Errorf("task %d (%s) - %w", i, t.Name, ErrNoModule)
		}
		if t.Name == "" {
			pb.Tasks[i].Name = t.Module
		}
	}
	return &pb, nil
}

func LoadBytes(b []byte) (*Playbook, error) {
	return Load(bytes.NewReader(b))
}

func LoadFile(path string) (*Playbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open playbook %s - %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
