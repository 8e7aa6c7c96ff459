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

// Package swim imports software images and tags, distributes and
// activates them on network devices.
package swim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/intent"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	Name = "swim_intent"

	stateMerged = "merged"

	progressDone = "completed successfully"
)

type Module struct{}

func New() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return Name
}

func (m *Module) States() []string {
	return []string{stateMerged}
}

// have holds the controller ids the steps of one config entry need.
type have struct {
	importedImageID string

	taggingImageID   string
	siteID           string
	familyIdentifier string

	distributionImageID  string
	distributionDeviceID string

	activationImageID  string
	activationDeviceID string
}

type run struct {
	c      *dnac.Client
	log    *zap.Logger
	result intent.Result
}

func (m *Module) Run(ctx context.Context, c *dnac.Client, t intent.Task) (*intent.Result, error) {
	if _, err := intent.ValidateState(m, t.State); err != nil {
		return nil, err
	}
	if len(t.Config) == 0 {
		return &intent.Result{Msg: "config not available in playbook for validation"}, nil
	}

	configs := make([]*Config, 0, len(t.Config))
	for _, raw := range t.Config {
		cfg, err := decodeConfig(raw)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	r := &run{c: c, log: zap.L()}
	for _, cfg := range configs {
		h := &have{}
		if err := r.importImage(ctx, cfg, h); err != nil {
			return nil, err
		}
		if err := r.have(ctx, cfg, h); err != nil {
			return nil, err
		}
		if err := r.merged(ctx, cfg, h); err != nil {
			return nil, err
		}
	}

	res := r.result
	return &res, nil
}

func (r *run) set(changed bool, msg string, response interface{}) {
	r.result.Changed = r.result.Changed || changed
	if msg != "" {
		r.result.Msg = msg
	}
	if response != nil {
		r.result.Response = response
	}
}

// imageID resolves name to the one image the controller knows under it.
func (r *run) imageID(ctx context.Context, name string) (string, error) {
	images, err := r.c.GetImages(ctx, name)
	if err != nil {
		return "", fmt.Errorf("unable to look up image %s - %w", name, err)
	}
	if len(images) != 1 {
		return "", intent.Fail("Image not found", map[string]interface{}{"imageName": name, "matches": len(images)})
	}
	return images[0].ID, nil
}

// importImage brings the image in unless it already exists and records
// its id for the later steps.
func (r *run) importImage(ctx context.Context, cfg *Config, h *have) error {
	imp := cfg.ImportImageDetails
	if imp == nil {
		if cfg.ImageName == "" {
			return nil
		}
		id, err := r.imageID(ctx, cfg.ImageName)
		if err != nil {
			return err
		}
		h.importedImageID = id
		return nil
	}

	name := imp.imageName()
	images, err := r.c.GetImages(ctx, name)
	if err != nil {
		return fmt.Errorf("unable to look up image %s - %w", name, err)
	}
	if len(images) == 1 {
		msg := fmt.Sprintf("Image %s already exists in the Cisco DNA Center", name)
		r.log.Info(msg)
		h.importedImageID = images[0].ID
		r.set(false, msg, nil)
		return nil
	}

	var taskID string
	if imp.Type == importURL {
		u := imp.URLDetails
		taskID, err = r.c.ImportImageFromURL(ctx, dnac.URLImport{
			Payload:        u.Payload,
			ScheduleAt:     u.ScheduleAt,
			ScheduleDesc:   u.ScheduleDesc,
			ScheduleOrigin: u.ScheduleOrigin,
		})
	} else {
		l := imp.LocalImageDetails
		taskID, err = r.c.ImportLocalImage(ctx, dnac.LocalImport{
			FilePath:                  l.FilePath,
			IsThirdParty:              l.IsThirdParty,
			ThirdPartyVendor:          l.ThirdPartyVendor,
			ThirdPartyImageFamily:     l.ThirdPartyImageFamily,
			ThirdPartyApplicationType: l.ThirdPartyApplicationType,
		})
	}
	if err != nil {
		return fmt.Errorf("unable to import image %s - %w", name, err)
	}

	details, err := r.c.WaitForTask(ctx, taskID, dnac.ProgressContains(progressDone))
	var taskErr *dnac.TaskError
	switch {
	case errors.As(err, &taskErr) && strings.Contains(taskErr.Details.FailureReason, "already exists"):
		msg := fmt.Sprintf("SWIM Image %s already exists in the Cisco DNA Center", name)
		r.log.Info(msg)
		r.set(false, msg, taskErr.Details.Raw.Value())
	case errors.As(err, &taskErr):
		return intent.Fail(taskErr.Details.FailureReason, taskErr.Details.Raw.Value())
	case err != nil:
		return err
	default:
		msg := fmt.Sprintf("Swim Image %s imported successfully", name)
		r.log.Info(msg)
		r.set(true, msg, details.Raw.Value())
	}

	id, err := r.imageID(ctx, name)
	if err != nil {
		return err
	}
	h.importedImageID = id
	return nil
}

// stepImage picks the image a step works on: the one it names, else the
// imported one.
func (r *run) stepImage(ctx context.Context, step, name string, h *have) (string, error) {
	if name != "" {
		return r.imageID(ctx, name)
	}
	if h.importedImageID != "" {
		return h.importedImageID, nil
	}
	return "", intent.Fail(fmt.Sprintf("Image details for %s not provided", step), []interface{}{})
}

func (r *run) siteID(ctx context.Context, siteName string) (string, error) {
	if siteName == "" {
		r.log.Debug("site name not given, using the global site")
		return dnac.GlobalSiteID, nil
	}

	var s *dnac.Site
	var err error
	if r.c.SiteDesignAPI() {
		s, err = r.c.GetSiteByHierarchy(ctx, siteName)
	} else {
		s, err = r.c.GetSite(ctx, siteName)
	}
	if err != nil || s == nil {
		r.log.Error("site lookup failed", zap.String("site", siteName), zap.Error(err))
		return "", intent.Fail("Site not found", nil)
	}
	return s.ID, nil
}

func (r *run) familyIdentifier(ctx context.Context, family string) (string, error) {
	families, err := r.c.GetDeviceFamilyIdentifiers(ctx)
	if err != nil {
		return "", fmt.Errorf("unable to list device families - %w", err)
	}
	for _, f := range families {
		if f.Name == family {
			return f.Identifier, nil
		}
	}
	return "", intent.Fail("Family Device Name not found", []interface{}{})
}

func (r *run) deviceID(ctx context.Context, sel DeviceSelector) (string, error) {
	f := sel.filter()
	if f.Empty() {
		return "", intent.Fail("Device not found", nil)
	}
	devices, err := r.c.GetDevices(ctx, f)
	if err != nil {
		return "", fmt.Errorf("unable to look up device - %w", err)
	}
	if len(devices) != 1 {
		return "", intent.Fail("Device not found", map[string]interface{}{"matches": len(devices)})
	}
	return devices[0].ID, nil
}

// have resolves every id the requested steps need. The lookups are
// independent and run concurrently.
func (r *run) have(ctx context.Context, cfg *Config, h *have) error {
	g, gctx := errgroup.WithContext(ctx)

	if t := cfg.TaggingDetails; t != nil {
		g.Go(func() (err error) {
			h.taggingImageID, err = r.stepImage(gctx, "tagging", t.ImageName, h)
			return err
		})
		g.Go(func() (err error) {
			h.siteID, err = r.siteID(gctx, t.SiteName)
			return err
		})
		g.Go(func() (err error) {
			h.familyIdentifier, err = r.familyIdentifier(gctx, t.DeviceFamilyName)
			return err
		})
	}

	if d := cfg.ImageDistributionDetails; d != nil {
		g.Go(func() (err error) {
			h.distributionImageID, err = r.stepImage(gctx, "distribution", d.ImageName, h)
			return err
		})
		g.Go(func() (err error) {
			h.distributionDeviceID, err = r.deviceID(gctx, d.DeviceSelector)
			return err
		})
	}

	if a := cfg.ImageActivationDetails; a != nil {
		g.Go(func() (err error) {
			h.activationImageID, err = r.stepImage(gctx, "activation", a.ImageName, h)
			return err
		})
		g.Go(func() (err error) {
			h.activationDeviceID, err = r.deviceID(gctx, a.DeviceSelector)
			return err
		})
	}

	return g.Wait()
}

func (r *run) merged(ctx context.Context, cfg *Config, h *have) error {
	if cfg.TaggingDetails != nil {
		if err := r.tag(ctx, cfg.TaggingDetails, h); err != nil {
			return err
		}
	}
	if cfg.ImageDistributionDetails != nil {
		if err := r.distribute(ctx, h); err != nil {
			return err
		}
	}
	if cfg.ImageActivationDetails != nil {
		if err := r.activate(ctx, cfg.ImageActivationDetails, h); err != nil {
			return err
		}
	}
	return nil
}

// tag marks the image golden, or removes the mark when tagging is false.
func (r *run) tag(ctx context.Context, t *Tagging, h *have) error {
	tag := dnac.GoldenTag{
		ImageID:                h.taggingImageID,
		SiteID:                 h.siteID,
		DeviceRole:             t.DeviceRole,
		DeviceFamilyIdentifier: h.familyIdentifier,
	}
	r.log.Debug("golden tag", zap.Bool("tagging", t.Tagging), zap.Any("params", tag))

	var taskID string
	var err error
	if t.Tagging {
		taskID, err = r.c.TagGoldenImage(ctx, tag)
	} else {
		taskID, err = r.c.RemoveGoldenTag(ctx, tag)
	}
	if err != nil {
		return fmt.Errorf("unable to update golden tag of image %s - %w", h.taggingImageID, err)
	}

	details, err := r.c.WaitForTask(ctx, taskID, dnac.EndTimeReached)
	var taskErr *dnac.TaskError
	if errors.As(err, &taskErr) {
		r.log.Warn("golden tag task failed", zap.String("task", taskID), zap.String("reason", taskErr.Details.FailureReason))
		r.set(false, taskErr.Details.FailureReason, taskErr.Details.Raw.Value())
		return nil
	}
	if err != nil {
		return err
	}
	r.set(true, details.Progress, details.Raw.Value())
	return nil
}

func (r *run) distribute(ctx context.Context, h *have) error {
	taskID, err := r.c.DistributeImage(ctx, []dnac.Distribution{{
		DeviceUUID: h.distributionDeviceID,
		ImageUUID:  h.distributionImageID,
	}})
	if err != nil {
		return fmt.Errorf("unable to distribute image %s - %w", h.distributionImageID, err)
	}

	details, err := r.c.WaitForTask(ctx, taskID, dnac.ProgressContains(progressDone))
	var taskErr *dnac.TaskError
	if errors.As(err, &taskErr) {
		return intent.Fail(fmt.Sprintf("Image with Id %s Distribution Failed", h.distributionImageID), taskErr.Details.Raw.Value())
	}
	if err != nil {
		return err
	}
	r.set(true, fmt.Sprintf("Image with Id %s Distributed Successfully", h.distributionImageID), details.Raw.Value())
	return nil
}

func (r *run) activate(ctx context.Context, a *Activation, h *have) error {
	taskID, err := r.c.ActivateImage(ctx, a.ScheduleValidate, []dnac.Activation{{
		ActivateLowerImageVersion: a.ActivateLowerImageVersion,
		DeviceUpgradeMode:         a.DeviceUpgradeMode,
		DistributeIfNeeded:        a.DistributeIfNeeded,
		DeviceUUID:                h.activationDeviceID,
		ImageUUIDList:             []string{h.activationImageID},
	}})
	if err != nil {
		return fmt.Errorf("unable to activate image %s - %w", h.activationImageID, err)
	}

	details, err := r.c.WaitForTask(ctx, taskID, dnac.ProgressContains(progressDone))
	var taskErr *dnac.TaskError
	if errors.As(err, &taskErr) {
		return intent.Fail("Image Activation Failed", taskErr.Details.Raw.Value())
	}
	if err != nil {
		return err
	}
	r.set(true, "Image activated successfully", details.Raw.Value())
	return nil
}
