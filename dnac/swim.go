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
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

const (
	imagesPath         = "/dna/intent/api/v1/image/importation"
	importURLPath      = "/dna/intent/api/v1/image/importation/source/url"
	importFilePath     = "/dna/intent/api/v1/image/importation/source/file"
	familyIDPath       = "/dna/intent/api/v1/image/importation/device-family-identifiers"
	goldenPath         = "/dna/intent/api/v1/image/importation/golden"
	distributionPath   = "/dna/intent/api/v1/image/distribution"
	activationPath     = "/dna/intent/api/v1/image/activation/device"
	localImageFormName = "file"
)

// GlobalSiteID is the site id the controller uses for the Global site.
const GlobalSiteID = "-1"

type Image struct {
	ID   string
	Name string
	Raw  gjson.Result
}

// URLImportSource is one entry of a url import request.
type URLImportSource struct {
	SourceURL                 string `json:"sourceURL"`
	ImageFamily               string `json:"imageFamily,omitempty"`
	ApplicationType           string `json:"applicationType,omitempty"`
	IsThirdParty              bool   `json:"isThirdParty"`
	ThirdPartyVendor          string `json:"thirdPartyVendor,omitempty"`
	ThirdPartyImageFamily     string `json:"thirdPartyImageFamily,omitempty"`
	ThirdPartyApplicationType string `json:"thirdPartyApplicationType,omitempty"`
	Vendor                    string `json:"vendor,omitempty"`
}

type URLImport struct {
	Payload        []URLImportSource
	ScheduleAt     string
	ScheduleDesc   string
	ScheduleOrigin string
}

type LocalImport struct {
	FilePath                  string
	IsThirdParty              bool
	ThirdPartyVendor          string
	ThirdPartyImageFamily     string
	ThirdPartyApplicationType string
}

type DeviceFamily struct {
	Name       string
	Identifier string
}

type GoldenTag struct {
	ImageID                string `json:"imageId"`
	SiteID                 string `json:"siteId"`
	DeviceRole             string `json:"deviceRole"`
	DeviceFamilyIdentifier string `json:"deviceFamilyIdentifier"`
}

type Distribution struct {
	DeviceUUID string `json:"deviceUuid"`
	ImageUUID  string `json:"imageUuid"`
}

type Activation struct {
	ActivateLowerImageVersion *bool    `json:"activateLowerImageVersion,omitempty"`
	DeviceUpgradeMode         string   `json:"deviceUpgradeMode,omitempty"`
	DistributeIfNeeded        *bool    `json:"distributeIfNeeded,omitempty"`
	DeviceUUID                string   `json:"deviceUuid"`
	ImageUUIDList             []string `json:"imageUuidList"`
}

// GetImages lists the images known to the controller under name.
func (c *Client) GetImages(ctx context.Context, name string) ([]Image, error) {
	res, err := c.Do(ctx, http.MethodGet, imagesPath, WithQuery("imageName", name))
	if err != nil {
		return nil, err
	}

	var images []Image
	for _, r := range res.Get("response").Array() {
		images = append(images, Image{
			ID:   r.Get("imageUuid").String(),
			Name: r.Get("name").String(),
			Raw:  r,
		})
	}
	return images, nil
}

// ImportImageFromURL starts an import from remote urls and returns the task id.
func (c *Client) ImportImageFromURL(ctx context.Context, imp URLImport) (string, error) {
	res, err := c.Do(ctx, http.MethodPost, importURLPath,
		WithQuery("scheduleAt", imp.ScheduleAt),
		WithQuery("scheduleDesc", imp.ScheduleDesc),
		WithQuery("scheduleOrigin", imp.ScheduleOrigin),
		WithJSON(imp.Payload),
	)
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}

// ImportLocalImage uploads a file from disk and returns the task id.
func (c *Client) ImportLocalImage(ctx context.Context, imp LocalImport) (string, error) {
	opts := []RequestOption{
		WithQuery("isThirdParty", strconv.FormatBool(imp.IsThirdParty)),
		WithQuery("thirdPartyVendor", imp.ThirdPartyVendor),
		WithQuery("thirdPartyImageFamily", imp.ThirdPartyImageFamily),
		WithQuery("thirdPartyApplicationType", imp.ThirdPartyApplicationType),
		WithMultipartFile(localImageFormName, imp.FilePath, nil),
	}
	res, err := c.Do(ctx, http.MethodPost, importFilePath, opts...)
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}

func (c *Client) GetDeviceFamilyIdentifiers(ctx context.Context) ([]DeviceFamily, error) {
	res, err := c.Do(ctx, http.MethodGet, familyIDPath)
	if err != nil {
		return nil, err
	}

	var families []DeviceFamily
	for _, r := range res.Get("response").Array() {
		families = append(families, DeviceFamily{
			Name:       r.Get("deviceFamily").String(),
			Identifier: r.Get("deviceFamilyIdentifier").String(),
		})
	}
	return families, nil
}

// TagGoldenImage marks an image golden for a site, family and role.
func (c *Client) TagGoldenImage(ctx context.Context, tag GoldenTag) (string, error) {
	res, err := c.Do(ctx, http.MethodPost, goldenPath, WithJSON(tag))
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}

func (c *Client) RemoveGoldenTag(ctx context.Context, tag GoldenTag) (string, error) {
	p := goldenPath +
		"/site/" + url.PathEscape(tag.SiteID) +
		"/family/" + url.PathEscape(tag.DeviceFamilyIdentifier) +
		"/role/" + url.PathEscape(tag.DeviceRole) +
		"/image/" + url.PathEscape(tag.ImageID)
	res, err := c.Do(ctx, http.MethodDelete, p)
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}

func (c *Client) DistributeImage(ctx context.Context, dist []Distribution) (string, error) {
	res, err := c.Do(ctx, http.MethodPost, distributionPath, WithJSON(dist))
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}

// ActivateImage triggers activation. scheduleValidate is only sent when set.
func (c *Client) ActivateImage(ctx context.Context, scheduleValidate *bool, act []Activation) (string, error) {
	validate := ""
	if scheduleValidate != nil {
		validate = strconv.FormatBool(*scheduleValidate)
	}
	res, err := c.Do(ctx, http.MethodPost, activationPath,
		WithQuery("scheduleValidate", validate),
		WithJSON(act),
	)
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}
