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

package swim

import (
	"strings"

	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/intent"
)

const (
	importURL   = "url"
	importLocal = "local"
)

// Config is one entry of the module config list.
type Config struct {
	ImportImageDetails       *ImportDetails `json:"importImageDetails"`
	ImageName                string         `json:"imageName"`
	TaggingDetails           *Tagging       `json:"taggingDetails"`
	ImageDistributionDetails *Distribution  `json:"imageDistributionDetails"`
	ImageActivationDetails   *Activation    `json:"imageActivationDetails"`
}

type ImportDetails struct {
	Type              string        `json:"type"`
	URLDetails        *URLDetails   `json:"urlDetails"`
	LocalImageDetails *LocalDetails `json:"localImageDetails"`
}

type URLDetails struct {
	Payload        []dnac.URLImportSource `json:"payload"`
	ScheduleAt     string                 `json:"scheduleAt"`
	ScheduleDesc   string                 `json:"scheduleDesc"`
	ScheduleOrigin string                 `json:"scheduleOrigin"`
}

type LocalDetails struct {
	FilePath                  string `json:"filePath"`
	IsThirdParty              bool   `json:"isThirdParty"`
	ThirdPartyVendor          string `json:"thirdPartyVendor"`
	ThirdPartyImageFamily     string `json:"thirdPartyImageFamily"`
	ThirdPartyApplicationType string `json:"thirdPartyApplicationType"`
}

type Tagging struct {
	ImageName        string `json:"imageName"`
	DeviceRole       string `json:"deviceRole"`
	DeviceFamilyName string `json:"deviceFamilyName"`
	SiteName         string `json:"siteName"`
	Tagging          bool   `json:"tagging"`
}

// DeviceSelector picks the one device a distribution or activation targets.
type DeviceSelector struct {
	DeviceHostname     string `json:"deviceHostname"`
	DeviceSerialNumber string `json:"deviceSerialNumber"`
	DeviceIPAddress    string `json:"deviceIPAddress"`
	DeviceMacAddress   string `json:"deviceMacAddress"`
}

func (s DeviceSelector) filter() dnac.DeviceFilter {
	return dnac.DeviceFilter{
		Hostname:            s.DeviceHostname,
		SerialNumber:        s.DeviceSerialNumber,
		ManagementIPAddress: s.DeviceIPAddress,
		MACAddress:          s.DeviceMacAddress,
	}
}

type Distribution struct {
	ImageName string `json:"imageName"`
	DeviceSelector
}

type Activation struct {
	ImageName string `json:"imageName"`
	DeviceSelector
	ActivateLowerImageVersion *bool  `json:"activateLowerImageVersion"`
	DeviceUpgradeMode         string `json:"deviceUpgradeMode"`
	DistributeIfNeeded        *bool  `json:"distributeIfNeeded"`
	ScheduleValidate          *bool  `json:"scheduleValidate"`
}

func decodeConfig(raw map[string]interface{}) (*Config, error) {
	var cfg Config
	if err := intent.Decode(raw, &cfg); err != nil {
		return nil, err
	}

	imp := cfg.ImportImageDetails
	if imp == nil {
		return &cfg, nil
	}
	imp.Type = strings.ToLower(imp.Type)
	switch imp.Type {
	case importURL:
		if imp.URLDetails == nil || len(imp.URLDetails.Payload) == 0 || imp.URLDetails.Payload[0].SourceURL == "" {
			return nil, intent.Fail("Invalid parameters in playbook: 'urlDetails.payload' with a sourceURL is required for url import", nil)
		}
	case importLocal:
		if imp.LocalImageDetails == nil || imp.LocalImageDetails.FilePath == "" {
			return nil, intent.Fail("Invalid parameters in playbook: 'localImageDetails.filePath' is required for local import", nil)
		}
	default:
		return nil, intent.Fail("Incorrect import type. Supported Values: local or url", nil)
	}
	return &cfg, nil
}

// imageName is the file name of the image an import brings in.
func (d *ImportDetails) imageName() string {
	src := d.LocalImageDetails.source()
	if d.Type == importURL {
		src = d.URLDetails.Payload[0].SourceURL
	}
	return src[strings.LastIndex(src, "/")+1:]
}

func (d *LocalDetails) source() string {
	if d == nil {
		return ""
	}
	return d.FilePath
}
