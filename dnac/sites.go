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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	legacySitePath     = "/dna/intent/api/v1/site"
	membershipPath     = "/dna/intent/api/v1/membership/"
	sitesPath          = "/dna/intent/api/v1/sites"
	sitesBulkPath      = "/dna/intent/api/v1/sites/bulk"
	areasPath          = "/dna/intent/api/v1/areas/"
	buildingsPath      = "/dna/intent/api/v2/buildings/"
	floorsPath         = "/dna/intent/api/v2/floors/"
	assignedDevicePath = "/dna/intent/api/v1/networkDevices/assignedToSite"
)

// Site is a node of the site hierarchy as read from either site api.
// Optional numeric attributes are nil when the controller omits them.
type Site struct {
	ID             string
	Type           string
	Name           string
	NameHierarchy  string
	ParentName     string
	ParentID       string
	Address        string
	Country        string
	Latitude       *float64
	Longitude      *float64
	Length         *float64
	Width          *float64
	Height         *float64
	FloorNumber    *float64
	RFModel        string
	UnitsOfMeasure string
	Raw            gjson.Result
}

// Member is a child site returned by the membership api.
type Member struct {
	ID             string
	Name           string
	GroupHierarchy string
}

func floatPtr(r gjson.Result) *float64 {
	if !r.Exists() || r.Type == gjson.Null || (r.Type == gjson.String && r.Str == "") {
		return nil
	}
	f := r.Float()
	return &f
}

// parentOf strips the last path segment of a name hierarchy.
func parentOf(hierarchy, name string) string {
	if p := strings.TrimSuffix(hierarchy, "/"+name); p != hierarchy {
		return p
	}
	if i := strings.LastIndex(hierarchy, "/"); i >= 0 {
		return hierarchy[:i]
	}
	return ""
}

// absent reports whether err means the site lookup found nothing. Older
// controllers answer an unknown name with a 400 instead of a 404.
func absent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		return true
	}
	return errors.Is(err, ErrNotFound)
}

// parseLegacySite reads a site from the v1 /site api where attributes
// live in additionalInfo namespaces.
func parseLegacySite(r gjson.Result) *Site {
	location := r.Get(`additionalInfo.#(nameSpace=="Location").attributes`)
	geometry := r.Get(`additionalInfo.#(nameSpace=="mapGeometry").attributes`)
	summary := r.Get(`additionalInfo.#(nameSpace=="mapsSummary").attributes`)

	s := &Site{
		ID:            r.Get("id").String(),
		Type:          location.Get("type").String(),
		Name:          r.Get("name").String(),
		NameHierarchy: r.Get("siteNameHierarchy").String(),
		ParentID:      r.Get("parentId").String(),
		Raw:           r,
	}
	s.ParentName = parentOf(s.NameHierarchy, s.Name)

	switch s.Type {
	case "building":
		s.Address = location.Get("address").String()
		s.Country = location.Get("country").String()
		s.Latitude = floatPtr(location.Get("latitude"))
		s.Longitude = floatPtr(location.Get("longitude"))
	case "floor":
		s.Width = floatPtr(geometry.Get("width"))
		s.Length = floatPtr(geometry.Get("length"))
		s.Height = floatPtr(geometry.Get("height"))
		s.RFModel = summary.Get("rfModel").String()
		s.FloorNumber = floatPtr(summary.Get("floorIndex"))
	}
	return s
}

func parseDesignSite(r gjson.Result) *Site {
	s := &Site{
		ID:             r.Get("id").String(),
		Type:           r.Get("type").String(),
		Name:           r.Get("name").String(),
		NameHierarchy:  r.Get("nameHierarchy").String(),
		ParentID:       r.Get("parentId").String(),
		Address:        r.Get("address").String(),
		Country:        r.Get("country").String(),
		Latitude:       floatPtr(r.Get("latitude")),
		Longitude:      floatPtr(r.Get("longitude")),
		Length:         floatPtr(r.Get("length")),
		Width:          floatPtr(r.Get("width")),
		Height:         floatPtr(r.Get("height")),
		FloorNumber:    floatPtr(r.Get("floorNumber")),
		RFModel:        r.Get("rfModel").String(),
		UnitsOfMeasure: r.Get("unitsOfMeasure").String(),
		Raw:            r,
	}
	s.ParentName = parentOf(s.NameHierarchy, s.Name)
	return s
}

// GetSite looks a site up by its full name on the legacy api. A missing
// site returns nil without error.
func (c *Client) GetSite(ctx context.Context, nameHierarchy string) (*Site, error) {
	res, err := c.Do(ctx, http.MethodGet, legacySitePath, WithQuery("name", nameHierarchy))
	if err != nil {
		if absent(err) {
			return nil, nil
		}
		return nil, err
	}

	sites := res.Get("response").Array()
	if len(sites) == 0 {
		return nil, nil
	}
	return parseLegacySite(sites[0]), nil
}

// CreateSite submits a legacy site create and returns the execution id.
func (c *Client) CreateSite(ctx context.Context, payload interface{}) (string, error) {
	res, err := c.Do(ctx, http.MethodPost, legacySitePath, WithJSON(payload))
	if err != nil {
		return "", err
	}
	return executionIDOrErr(res)
}

func (c *Client) UpdateSite(ctx context.Context, siteID string, payload interface{}) (string, error) {
	res, err := c.Do(ctx, http.MethodPut, legacySitePath+"/"+url.PathEscape(siteID), WithJSON(payload))
	if err != nil {
		return "", err
	}
	return executionIDOrErr(res)
}

func (c *Client) DeleteSite(ctx context.Context, siteID string) (string, error) {
	res, err := c.Do(ctx, http.MethodDelete, legacySitePath+"/"+url.PathEscape(siteID))
	if err != nil {
		return "", err
	}
	return executionIDOrErr(res)
}

// GetMembership lists the child sites of siteID.
func (c *Client) GetMembership(ctx context.Context, siteID string) ([]Member, error) {
	res, err := c.Do(ctx, http.MethodGet, membershipPath+url.PathEscape(siteID))
	if err != nil {
		return nil, err
	}

	var members []Member
	for _, m := range res.Get("site.response").Array() {
		members = append(members, Member{
			ID:             m.Get("id").String(),
			Name:           m.Get("name").String(),
			GroupHierarchy: m.Get("groupHierarchy").String(),
		})
	}
	return members, nil
}

// SiteQuery filters GetSites. Empty fields are not sent.
type SiteQuery struct {
	NameHierarchy string
	Name          string
	Type          string
}

func (c *Client) GetSites(ctx context.Context, q SiteQuery) ([]*Site, error) {
	res, err := c.Do(ctx, http.MethodGet, sitesPath,
		WithQuery("nameHierarchy", q.NameHierarchy),
		WithQuery("name", q.Name),
		WithQuery("type", q.Type),
	)
	if err != nil {
		if absent(err) {
			return nil, nil
		}
		return nil, err
	}

	var sites []*Site
	for _, r := range res.Get("response").Array() {
		sites = append(sites, parseDesignSite(r))
	}
	return sites, nil
}

// GetSiteByHierarchy returns the site with the exact name hierarchy or nil.
func (c *Client) GetSiteByHierarchy(ctx context.Context, nameHierarchy string) (*Site, error) {
	sites, err := c.GetSites(ctx, SiteQuery{NameHierarchy: nameHierarchy})
	if err != nil {
		return nil, err
	}
	for _, s := range sites {
		if s.NameHierarchy == nameHierarchy {
			return s, nil
		}
	}
	return nil, nil
}

// CreateSites submits a bulk create and returns the task id.
func (c *Client) CreateSites(ctx context.Context, sites []map[string]interface{}) (string, error) {
	res, err := c.Do(ctx, http.MethodPost, sitesBulkPath, WithJSON(sites))
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}

func designPath(siteType string) (string, error) {
	switch siteType {
	case "area":
		return areasPath, nil
	case "building":
		return buildingsPath, nil
	case "floor":
		return floorsPath, nil
	}
	return "", fmt.Errorf("unknown site type %q", siteType)
}

// UpdateSiteDesign updates an area, building or floor by id and returns the task id.
func (c *Client) UpdateSiteDesign(ctx context.Context, siteType, id string, payload interface{}) (string, error) {
	p, err := designPath(siteType)
	if err != nil {
		return "", err
	}
	res, err := c.Do(ctx, http.MethodPut, p+url.PathEscape(id), WithJSON(payload))
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}

func (c *Client) DeleteSiteDesign(ctx context.Context, siteType, id string) (string, error) {
	p, err := designPath(siteType)
	if err != nil {
		return "", err
	}
	res, err := c.Do(ctx, http.MethodDelete, p+url.PathEscape(id))
	if err != nil {
		return "", err
	}
	return taskIDOrErr(res)
}

// GetSiteAssignedDevices lists the network devices assigned to siteID.
func (c *Client) GetSiteAssignedDevices(ctx context.Context, siteID string) ([]gjson.Result, error) {
	res, err := c.Do(ctx, http.MethodGet, assignedDevicePath, WithQuery("siteId", siteID))
	if err != nil {
		return nil, err
	}
	return res.Get("response").Array(), nil
}

func taskIDOrErr(res gjson.Result) (string, error) {
	id := TaskID(res)
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTaskID, res.Raw)
	}
	return id, nil
}

func executionIDOrErr(res gjson.Result) (string, error) {
	id := ExecutionID(res)
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTaskID, res.Raw)
	}
	return id, nil
}
