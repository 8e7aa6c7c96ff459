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
	"context"
	"net/http"

	"github.com/tidwall/gjson"
)

const eventCountPath = "/dna/intent/api/v1/events/count"

// GetEventCount counts the events matching eventID and tags. headers are
// passed through to the controller.
func (c *Client) GetEventCount(ctx context.Context, eventID, tags string, headers map[string]string) (gjson.Result, error) {
	opts := []RequestOption{
		WithQuery("eventId", eventID),
		WithQuery("tags", tags),
	}
	for k, v := range headers {
		opts = append(opts, WithHeader(k, v))
	}
	return c.Do(ctx, http.MethodGet, eventCountPath, opts...)
}
