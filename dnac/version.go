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
	"fmt"
	"strconv"
	"strings"
)

// Controller releases that switch the site api.
const (
	Version2353 = 2353
	Version2376 = 2376
)

// ParseVersion turns a dotted controller version into a comparable
// integer by dropping the dots, "2.3.7.6" becomes 2376.
func ParseVersion(v string) (int, error) {
	digits := strings.ReplaceAll(strings.TrimSpace(v), ".", "")
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid controller version %q", v)
	}
	return n, nil
}

// LegacySiteAPI reports whether the controller predates the site design api.
func (c *Client) LegacySiteAPI() bool {
	return c.version <= Version2353
}

// SiteDesignAPI reports whether the controller serves the site design api.
func (c *Client) SiteDesignAPI() bool {
	return c.version >= Version2376
}
