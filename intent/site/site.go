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

// Package site manages the area, building and floor hierarchy of the
// controller. Controllers up to 2.3.5.3 are driven through the v1 site
// api, 2.3.7.6 and later through the site design api.
package site

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/comcast/dnacflow/dnac"
	"github.com/comcast/dnacflow/intent"
	"github.com/comcast/dnacflow/pool"
	"go.uber.org/zap"
)

const (
	Name = "site_workflow_manager"

	stateMerged  = "merged"
	stateDeleted = "deleted"

	// concurrent lookups of bulk entries
	lookupConcurrency = 4

	progressGroupUpdated   = "Group is updated successfully"
	progressFloorUpdated   = "Service domain is updated successfully."
	progressGroupDeleted   = "Group is deleted successfully"
	progressFloorDeleted   = "NCMP00150: Service domain is deleted successfully"
	msgBulkCreateFailed    = "Unable to get success response, hence site not created"
	msgNoConfig            = "Configuration is not available in the playbook for validation"
	msgForbiddenTemplate   = "The Catalyst Center user '%s' does not have the necessary permissions to 'create or update' a Site through the API."
	msgInvalidSiteTemplate = "Invalid site params '%s' in request body"
)

type Module struct{}

func New() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return Name
}

func (m *Module) States() []string {
	return []string{stateMerged, stateDeleted}
}

// run carries the controller and the outcome lists of one module run.
type run struct {
	c   *dnac.Client
	log *zap.Logger

	created  []string
	updated  []string
	noUpdate []string
	deleted  []string
	absent   []string
}

func (m *Module) Run(ctx context.Context, c *dnac.Client, t intent.Task) (*intent.Result, error) {
	state, err := intent.ValidateState(m, t.State)
	if err != nil {
		return nil, err
	}
	if len(t.Config) == 0 {
		return &intent.Result{Msg: msgNoConfig}, nil
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
		if cfg.bulk() {
			if state != stateMerged {
				return nil, intent.Failf("Bulk site operation is only supported with state '%s'", stateMerged)
			}
			if !c.SiteDesignAPI() {
				return nil, intent.Failf("In this version '%s' Bulk site operation file is not supported.", c.VersionString())
			}
			if err := r.bulkCreate(ctx, bulkWant(cfg.Site.SiteDetails)); err != nil {
				return nil, err
			}
			continue
		}

		w, err := wantFrom(cfg)
		if err != nil {
			return nil, err
		}
		if !c.LegacySiteAPI() && !c.SiteDesignAPI() {
			return nil, intent.Failf("This version : '%s' given yaml format is not applicable to create a site", c.VersionString())
		}

		have, err := r.have(ctx, w.SiteName())
		if err != nil {
			return nil, fmt.Errorf("unable to read site %s - %w", w.SiteName(), err)
		}

		switch state {
		case stateMerged:
			err = r.merged(ctx, w, have)
		case stateDeleted:
			err = r.deleteSite(ctx, w, have)
		}
		if err != nil {
			return nil, err
		}

		if t.ConfigVerify {
			if err := r.verify(ctx, state, w); err != nil {
				return nil, err
			}
		}
	}

	return r.result(), nil
}

// have reads the current site from the api matching the controller version.
func (r *run) have(ctx context.Context, siteName string) (*dnac.Site, error) {
	if r.c.SiteDesignAPI() {
		return r.c.GetSiteByHierarchy(ctx, siteName)
	}
	return r.c.GetSite(ctx, siteName)
}

func (r *run) merged(ctx context.Context, w *want, have *dnac.Site) error {
	name := w.SiteName()

	if have != nil && !requiresUpdate(have, w) {
		r.log.Info("site does not need any update", zap.String("site", name))
		r.noUpdate = append(r.noUpdate, name)
		return nil
	}

	var err error
	switch {
	case have != nil && r.c.LegacySiteAPI():
		err = r.legacyUpdate(ctx, w, have)
	case have != nil:
		err = r.designUpdate(ctx, w, have)
	case r.c.LegacySiteAPI():
		err = r.legacyCreate(ctx, w)
	default:
		err = r.designCreate(ctx, w)
	}
	if err != nil {
		return err
	}

	if have != nil {
		r.log.Info("site updated", zap.String("site", name))
		r.updated = append(r.updated, name)
	} else {
		r.log.Info("site created", zap.String("site", name))
		r.created = append(r.created, name)
	}
	return nil
}

// siteParamsError explains a rejected create or update the way operators
// expect: missing permissions or a bad request body.
func (r *run) siteParamsError(err error, payload []byte) error {
	var apiErr *dnac.APIError
	switch {
	case errors.Is(err, dnac.ErrForbidden):
		return intent.Failf(msgForbiddenTemplate, r.c.Username())
	case errors.As(err, &apiErr):
		r.log.Error("site request rejected", zap.Int("status", apiErr.StatusCode), zap.ByteString("body", apiErr.Body))
		return intent.Failf(msgInvalidSiteTemplate, string(payload))
	}
	return err
}

func (r *run) waitExecution(ctx context.Context, executionID string) error {
	details, err := r.c.WaitForExecution(ctx, executionID)
	var execErr *dnac.ExecutionError
	if errors.As(err, &execErr) {
		return intent.Fail(execErr.Details.BapiError, execErr.Details.Raw.Value())
	}
	if err != nil {
		return err
	}
	r.log.Debug("execution finished", zap.String("id", details.ID), zap.String("status", details.Status))
	return nil
}

func (r *run) waitTask(ctx context.Context, taskID string, classify dnac.Classifier) (*dnac.TaskDetails, error) {
	details, err := r.c.WaitForTask(ctx, taskID, classify)
	var taskErr *dnac.TaskError
	if errors.As(err, &taskErr) {
		reason := taskErr.Details.FailureReason
		if reason == "" {
			reason = taskErr.Details.Progress
		}
		return nil, intent.Fail(reason, taskErr.Details.Raw.Value())
	}
	return details, err
}

func (r *run) legacyCreate(ctx context.Context, w *want) error {
	payload, err := w.legacyPayload()
	if err != nil {
		return err
	}
	id, err := r.c.CreateSite(ctx, payload)
	if err != nil {
		return r.siteParamsError(err, payload)
	}
	return r.waitExecution(ctx, id)
}

func (r *run) legacyUpdate(ctx context.Context, w *want, have *dnac.Site) error {
	payload, err := w.legacyPayload()
	if err != nil {
		return err
	}
	id, err := r.c.UpdateSite(ctx, have.ID, payload)
	if err != nil {
		return r.siteParamsError(err, payload)
	}
	return r.waitExecution(ctx, id)
}

func (r *run) designCreate(ctx context.Context, w *want) error {
	return r.createSites(ctx, []map[string]interface{}{w.bulkEntry()})
}

func (r *run) createSites(ctx context.Context, entries []map[string]interface{}) error {
	id, err := r.c.CreateSites(ctx, entries)
	if err != nil {
		return fmt.Errorf("unable to create sites - %w", err)
	}
	details, err := r.c.WaitForTask(ctx, id, dnac.EndTimeReached)
	var taskErr *dnac.TaskError
	if errors.As(err, &taskErr) {
		r.log.Error("bulk site create failed", zap.String("task", id), zap.String("reason", taskErr.Details.FailureReason))
		return intent.Fail(msgBulkCreateFailed, taskErr.Details.Raw.Value())
	}
	if err != nil {
		return err
	}
	r.log.Debug("bulk site create finished", zap.String("task", id), zap.String("progress", details.Progress))
	return nil
}

func (r *run) designUpdate(ctx context.Context, w *want, have *dnac.Site) error {
	parentID := ""
	parent, err := r.c.GetSiteByHierarchy(ctx, w.ParentName)
	if err != nil {
		r.log.Warn("unable to resolve parent site", zap.String("parent", w.ParentName), zap.Error(err))
	} else if parent != nil {
		parentID = parent.ID
	}

	id, err := r.c.UpdateSiteDesign(ctx, w.Type, have.ID, w.designPayload(parentID))
	if err != nil {
		return fmt.Errorf("unable to update %s %s - %w", w.Type, w.SiteName(), err)
	}

	done := progressGroupUpdated
	if w.Type == typeFloor {
		done = progressFloorUpdated
	}
	_, err = r.waitTask(ctx, id, dnac.ProgressEquals(done))
	return err
}

// bulkCreate creates the entries that don't exist yet in one request.
func (r *run) bulkCreate(ctx context.Context, entries []map[string]interface{}) error {
	tasks := make([]*pool.Task, 0, len(entries))
	for _, e := range entries {
		hierarchy := bulkHierarchy(e)
		tasks = append(tasks, pool.NewTask(hierarchy, func() ([]byte, error) {
			s, err := r.c.GetSiteByHierarchy(ctx, hierarchy)
			if err != nil || s == nil {
				return nil, err
			}
			return []byte(s.ID), nil
		}))
	}
	pool.NewPool(tasks, lookupConcurrency).Run()

	var create []map[string]interface{}
	var names []string
	for i, task := range tasks {
		if task.Err != nil {
			return fmt.Errorf("unable to read site %s - %w", task.Key, task.Err)
		}
		if len(task.Body) > 0 {
			r.log.Info("site already exists", zap.String("site", task.Key), zap.String("id", string(task.Body)))
			r.noUpdate = append(r.noUpdate, task.Key)
			continue
		}
		create = append(create, entries[i])
		names = append(names, task.Key)
	}
	if len(create) == 0 {
		return nil
	}

	if err := r.createSites(ctx, create); err != nil {
		return err
	}
	r.log.Info("sites created", zap.Strings("sites", names))
	r.created = append(r.created, names...)
	return nil
}

func (r *run) deleteSite(ctx context.Context, w *want, have *dnac.Site) error {
	name := w.SiteName()
	if have == nil {
		r.log.Info("unable to delete site as it's not found", zap.String("site", name))
		r.absent = append(r.absent, name)
		return nil
	}

	if r.c.LegacySiteAPI() {
		return r.legacyDelete(ctx, name, have)
	}
	return r.designDelete(ctx, w, have)
}

// legacyDelete removes the children of a site deepest first, then the
// site itself.
func (r *run) legacyDelete(ctx context.Context, name string, have *dnac.Site) error {
	members, err := r.c.GetMembership(ctx, have.ID)
	if err != nil {
		return fmt.Errorf("unable to read child sites of %s - %w", name, err)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].GroupHierarchy > members[j].GroupHierarchy
	})

	for _, m := range members {
		if err := r.deleteOne(ctx, m.ID, m.Name); err != nil {
			return err
		}
	}
	return r.deleteOne(ctx, have.ID, name)
}

func (r *run) deleteOne(ctx context.Context, id, name string) error {
	executionID, err := r.c.DeleteSite(ctx, id)
	if err != nil {
		return intent.Failf("Exception occurred while deleting site '%s' due to: %s", name, err)
	}
	if err := r.waitExecution(ctx, executionID); err != nil {
		return err
	}
	r.log.Info("site deleted", zap.String("site", name))
	r.deleted = append(r.deleted, name)
	return nil
}

func (r *run) designDelete(ctx context.Context, w *want, have *dnac.Site) error {
	name := w.SiteName()

	devices, err := r.c.GetSiteAssignedDevices(ctx, have.ID)
	if err != nil {
		return fmt.Errorf("unable to read devices assigned to %s - %w", name, err)
	}
	if len(devices) > 0 {
		return intent.Failf("Site '%s' cannot be deleted because it has assigned devices. Please delete devices first then delete the site.", name)
	}

	siteType := have.Type
	if siteType == "" {
		siteType = w.Type
	}
	id, err := r.c.DeleteSiteDesign(ctx, siteType, have.ID)
	if err != nil {
		return intent.Failf("Exception occurred while deleting %s site '%s' with site_id '%s' due to: %s", siteType, name, have.ID, err)
	}

	done := progressGroupDeleted
	if siteType == typeFloor {
		done = progressFloorDeleted
	}
	if _, err := r.waitTask(ctx, id, dnac.ProgressEquals(done)); err != nil {
		return err
	}
	r.log.Info("site deleted", zap.String("site", name))
	r.deleted = append(r.deleted, name)
	return nil
}

// verify reads the site again after the change. A mismatch is logged, the
// run result is left as it is.
func (r *run) verify(ctx context.Context, state string, w *want) error {
	name := w.SiteName()
	have, err := r.have(ctx, name)
	if err != nil {
		return fmt.Errorf("unable to verify site %s - %w", name, err)
	}

	switch state {
	case stateMerged:
		if have != nil && !requiresUpdate(have, w) {
			r.log.Info("site state verified", zap.String("site", name))
			return nil
		}
		r.log.Warn("site on the controller does not match the playbook after merge", zap.String("site", name))
	case stateDeleted:
		if have == nil {
			r.log.Info("site deletion verified", zap.String("site", name))
			return nil
		}
		r.log.Warn("site still present on the controller after delete", zap.String("site", name))
	}
	return nil
}
