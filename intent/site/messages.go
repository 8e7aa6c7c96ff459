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

package site

import (
	"fmt"
	"strings"

	"github.com/comcast/dnacflow/intent"
)

// list renders names the way the collection has always printed them,
// e.g. ['Global/USA', 'Global/USA/SJC'].
func list(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func (r *run) result() *intent.Result {
	var msg string
	changed := true

	switch {
	case len(r.created) > 0 && len(r.updated) > 0:
		if len(r.noUpdate) > 0 {
			msg = fmt.Sprintf("Site(s) '%s' created successfully as well as Site(s) '%s' updated successfully and the some site(s) '%s' needs no update in Cisco Catalyst Center",
				list(r.created), list(r.updated), list(r.noUpdate))
		} else {
			msg = fmt.Sprintf("Site(s) '%s' created successfully in Cisco Catalyst Center as well as Site(s) '%s' updated successfully in Cisco Catalyst Center",
				list(r.created), list(r.updated))
		}
	case len(r.created) > 0:
		if len(r.noUpdate) > 0 {
			msg = fmt.Sprintf("Site(s) '%s' created successfully and some site(s) '%s' not needs any update in Cisco Catalyst Center.",
				list(r.created), list(r.noUpdate))
		} else {
			msg = fmt.Sprintf("Site(s) '%s' created successfully in Cisco Catalyst Center.", list(r.created))
		}
	case len(r.updated) > 0:
		if len(r.noUpdate) > 0 {
			msg = fmt.Sprintf("Site(s) '%s' updated successfully and some site(s) '%s' not needs any update in Cisco Catalyst Center.",
				list(r.updated), list(r.noUpdate))
		} else {
			msg = fmt.Sprintf("Site(s) '%s' updated successfully in Cisco Catalyst Center.", list(r.updated))
		}
	case len(r.noUpdate) > 0:
		changed = false
		msg = fmt.Sprintf("Site(s) '%s' not needs any update in Cisco Catalyst Center.", list(r.noUpdate))
	case len(r.deleted) > 0 && len(r.absent) > 0:
		msg = fmt.Sprintf("Given site(s) '%s' deleted successfully from Cisco Catalyst Center and unable to deleted some site(s) '%s' as they are not found in Cisco Catalyst Center.",
			list(r.deleted), list(r.absent))
	case len(r.deleted) > 0:
		msg = fmt.Sprintf("Given site(s) '%s' deleted successfully from Cisco Catalyst Center", list(r.deleted))
	default:
		changed = false
		msg = fmt.Sprintf("Unable to delete site(s) '%s' as it's not found in Cisco Catalyst Center.", list(r.absent))
	}

	return &intent.Result{Changed: changed, Msg: msg, Response: msg}
}
