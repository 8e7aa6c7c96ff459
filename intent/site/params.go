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
	"encoding/json"
	"math"
	"strings"

	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/intent"
	"github.com/tidwall/sjson"
)

const (
	typeArea     = "area"
	typeBuilding = "building"
	typeFloor    = "floor"
	typeBulk     = "bulk"

	defaultUnitsOfMeasure = "feet"
)

// Config is one entry of the module config list.
type Config struct {
	Type     string   `json:"type"`
	SiteType string   `json:"site_type"`
	Site     *Details `json:"site"`
}

// Details holds the parameters of the site type being managed, or the
// site_details list of a bulk operation.
type Details struct {
	Area        *Area                    `json:"area"`
	Building    *Building                `json:"building"`
	Floor       *Floor                   `json:"floor"`
	Type        string                   `json:"type"`
	SiteDetails []map[string]interface{} `json:"site_details"`
}

type Area struct {
	Name       string `json:"name"`
	ParentName string `json:"parent_name"`
}

type Building struct {
	Name       string   `json:"name"`
	ParentName string   `json:"parent_name"`
	Address    string   `json:"address"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Country    string   `json:"country"`
}

type Floor struct {
	Name           string   `json:"name"`
	ParentName     string   `json:"parent_name"`
	Length         *float64 `json:"length"`
	Width          *float64 `json:"width"`
	Height         *float64 `json:"height"`
	FloorNumber    *float64 `json:"floor_number"`
	RFModel        string   `json:"rf_model"`
	UnitsOfMeasure string   `json:"units_of_measure"`
}

func (c *Config) bulk() bool {
	return c.Site != nil && c.Site.Type == typeBulk
}

// want is the desired state of a single area, building or floor.
type want struct {
	Type       string
	Name       string
	ParentName string
	Building   *Building
	Floor      *Floor
}

// SiteName is the full name hierarchy of the site.
func (w *want) SiteName() string {
	return w.ParentName + "/" + w.Name
}

func decodeConfig(raw map[string]interface{}) (*Config, error) {
	var cfg Config
	if err := intent.Decode(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Type == "" {
		cfg.Type = cfg.SiteType
	}
	if cfg.Site == nil {
		return nil, intent.Fail("Invalid parameters in playbook: 'site' is required", nil)
	}
	return &cfg, nil
}

func wantFrom(cfg *Config) (*want, error) {
	switch cfg.Type {
	case typeArea:
		if cfg.Site.Area == nil {
			return nil, missing(cfg.Type)
		}
		return &want{Type: typeArea, Name: cfg.Site.Area.Name, ParentName: cfg.Site.Area.ParentName}, nil
	case typeBuilding:
		b := cfg.Site.Building
		if b == nil {
			return nil, missing(cfg.Type)
		}
		return &want{Type: typeBuilding, Name: b.Name, ParentName: b.ParentName, Building: b}, nil
	case typeFloor:
		f := cfg.Site.Floor
		if f == nil {
			return nil, missing(cfg.Type)
		}
		return &want{Type: typeFloor, Name: f.Name, ParentName: f.ParentName, Floor: f}, nil
	}
	return nil, intent.Failf("Invalid site type '%s' given in the playbook. Please select one of the type - 'area', 'building', 'floor'", cfg.Type)
}

func missing(siteType string) error {
	return intent.Failf("Invalid parameters in playbook: 'site.%s' is required for site type '%s'", siteType, siteType)
}

// fields collects payload attributes, skipping the ones the playbook left unset.
type fields map[string]interface{}

func (f fields) str(key, v string) {
	if v != "" {
		f[key] = v
	}
}

func (f fields) num(key string, v *float64) {
	if v != nil {
		f[key] = *v
	}
}

// attributes are the type specific fields shared by every payload shape.
func (w *want) attributes() fields {
	f := fields{"name": w.Name}
	switch w.Type {
	case typeBuilding:
		f.str("address", w.Building.Address)
		f.num("latitude", w.Building.Latitude)
		f.num("longitude", w.Building.Longitude)
		f.str("country", w.Building.Country)
	case typeFloor:
		f.num("length", w.Floor.Length)
		f.num("width", w.Floor.Width)
		f.num("height", w.Floor.Height)
		f.num("floorNumber", w.Floor.FloorNumber)
		f.str("rfModel", w.Floor.RFModel)
	}
	return f
}

// legacyPayload builds the {"type": ..., "site": {<type>: {...}}} body of
// the v1 site api.
func (w *want) legacyPayload() (json.RawMessage, error) {
	f := w.attributes()
	f["parentName"] = w.ParentName

	raw, err := sjson.SetBytes([]byte(`{}`), "type", w.Type)
	if err != nil {
		return nil, err
	}
	raw, err = sjson.SetBytes(raw, "site."+w.Type, f)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// bulkEntry is the create payload of one site on the site design api.
func (w *want) bulkEntry() map[string]interface{} {
	f := w.attributes()
	f["type"] = w.Type
	f["parentNameHierarchy"] = w.ParentName
	if w.Type == typeFloor {
		f["unitsOfMeasure"] = w.unitsOfMeasure()
	}
	return f
}

// designPayload is the update body for areas, buildings and floors.
func (w *want) designPayload(parentID string) map[string]interface{} {
	f := w.attributes()
	f["parentId"] = parentID
	if w.Type == typeFloor {
		f["unitsOfMeasure"] = w.unitsOfMeasure()
	}
	return f
}

func (w *want) unitsOfMeasure() string {
	if w.Floor != nil && w.Floor.UnitsOfMeasure != "" {
		return w.Floor.UnitsOfMeasure
	}
	return defaultUnitsOfMeasure
}

// bulkWant maps the snake_case keys of bulk site_details to api names and
// drops unset values.
func bulkWant(details []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(details))
	for _, d := range details {
		entry := make(map[string]interface{}, len(d))
		for k, v := range d {
			if v == nil {
				continue
			}
			entry[camelCase(k)] = v
		}
		out = append(out, entry)
	}
	return out
}

// bulkHierarchy is the name hierarchy a bulk entry creates.
func bulkHierarchy(entry map[string]interface{}) string {
	parent, _ := entry["parentNameHierarchy"].(string)
	name, _ := entry["name"].(string)
	return parent + "/" + name
}

func camelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// equal2 compares at two decimal places. A value the playbook did not set
// always matches.
func equal2(have, requested *float64) bool {
	if requested == nil {
		return true
	}
	if have == nil {
		return false
	}
	return math.Round(*have*100) == math.Round(*requested*100)
}

// requiresUpdate reports whether the current site differs from the
// requested one.
func requiresUpdate(have *dnac.Site, w *want) bool {
	if have.Name != w.Name {
		return true
	}

	switch w.Type {
	case typeBuilding:
		b := w.Building
		return have.ParentName != w.ParentName ||
			!equal2(have.Latitude, b.Latitude) ||
			!equal2(have.Longitude, b.Longitude) ||
			(b.Address != "" && have.Address != b.Address)
	case typeFloor:
		f := w.Floor
		if f.RFModel != "" && have.RFModel != f.RFModel {
			return true
		}
		if f.FloorNumber != nil && (have.FloorNumber == nil || int(*have.FloorNumber) != int(*f.FloorNumber)) {
			return true
		}
		return !equal2(have.Length, f.Length) || !equal2(have.Width, f.Width) || !equal2(have.Height, f.Height)
	}
	return have.ParentName != w.ParentName
}
