/*
 * Copyright 2025 Comcast Cable Communications Management, LLC
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

package config

import (
	"sync"
	"time"
)

const (
	DefaultPort         = "443"
	DefaultUser         = "admin"
	DefaultVersion      = "2.2.3.3"
	DefaultTaskTimeout  = 1200 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// Config holds the process wide controller connection settings. Values
// given in a playbook's controller block take precedence over these.
type Config struct {
	Scheme             string
	Host               string
	Port               string
	User               string
	Pass               string
	Version            string
	InsecureSkipVerify bool
	Timeout            time.Duration
	TaskTimeout        time.Duration
	PollInterval       time.Duration
	RateLimit          float64
	Debug              bool
}

var (
	config *Config
	once   sync.Once
)

func NewConfig(c *Config) {
	once.Do(func() {
		if c != nil {
			config = c
		} else {
			config = &Config{}
		}
		config.setDefaults()
	})
}

func GetConfig() *Config {
	if config != nil {
		return config
	}

	NewConfig(nil)
	return config
}

func (c *Config) setDefaults() {
	if c.Scheme == "" {
		c.Scheme = "https"
	}
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
}
