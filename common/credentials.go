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

package common

import (
	"context"
	"fmt"
	"sync"

	cm_vault "github.com/comcast/dnacflow/vault"
	"go.uber.org/zap"
)

type Credential struct {
	User string
	Pass string
}

// ControllerCredentials caches controller logins per target. Entries are
// read from vault when a client is configured, otherwise the static
// credential is handed out.
type ControllerCredentials struct {
	mu      sync.Mutex
	creds   map[string]*Credential
	vault   *cm_vault.Vault
	profile *cm_vault.SecretProperties
	static  *Credential
}

func NewControllerCredentials(v *cm_vault.Vault, profile *cm_vault.SecretProperties, static *Credential) *ControllerCredentials {
	return &ControllerCredentials{
		creds:   make(map[string]*Credential),
		vault:   v,
		profile: profile,
		static:  static,
	}
}

func (c *ControllerCredentials) Get(key string) (*Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.creds[key]
	return val, ok
}

func (c *ControllerCredentials) Set(key string, value *Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds[key] = value
}

// Invalidate drops the cached credential so the next lookup goes back to
// vault. Used when the controller rejects a login after a rotation.
func (c *ControllerCredentials) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.creds, key)
}

func (c *ControllerCredentials) GetCredentials(ctx context.Context, target string) (*Credential, error) {
	if cred, ok := c.Get(target); ok {
		return cred, nil
	}

	if c.vault == nil || c.profile == nil {
		if c.static == nil || c.static.User == "" {
			return nil, ErrInvalidCredential
		}
		return c.static, nil
	}

	log := zap.L()

	user, pass, err := c.vault.GetCredential(ctx, c.profile, target)
	if err != nil {
		log.Error("issue retrieving credentials from vault using target "+target, zap.Error(err))
		return nil, fmt.Errorf("issue retrieving credentials from vault using target: %s - %w", target, err)
	}

	cred := &Credential{User: user, Pass: pass}
	c.Set(target, cred)
	return cred, nil
}
