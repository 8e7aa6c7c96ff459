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

const networkDevicePath = "/dna/intent/api/v1/network-device"

// DeviceFilter selects network devices. Empty fields are ignored.
type DeviceFilter struct {
	Hostname            string
	SerialNumber        string
	ManagementIPAddress string
	MACAddress          string
}

func (f DeviceFilter) Empty() bool {
	return f == DeviceFilter{}
}

type Device struct {
	ID                  string
	Hostname            string
	SerialNumber        string
	ManagementIPAddress string
	Raw                 gjson.Result
}

// GetDevices lists the network devices matching f.
func (c *Client) GetDevices(ctx context.Context, f DeviceFilter) ([]Device, error) {
	res, err := c.Do(ctx, http.MethodGet, networkDevicePath,
		WithQuery("hostname", f.Hostname),
		WithQuery("serialNumber", f.SerialNumber),
		WithQuery("managementIpAddress", f.ManagementIPAddress),
		WithQuery("macAddress", f.MACAddress),
	)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for _, r := range res.Get("response").Array() {
		devices = append(devices, Device{
			ID:                  r.Get("id").String(),
			Hostname:            r.Get("hostname").String(),
			SerialNumber:        r.Get("serialNumber").String(),
			ManagementIPAddress: r.Get("managementIpAddress").String(),
			Raw:                 r,
		})
	}
	return devices, nil
}
