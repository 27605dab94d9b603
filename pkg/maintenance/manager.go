// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package maintenance runs the per-user instance lifecycle pass at the
// day boundary: auto-skip expired windows, ensure every active habit has
// a pending instance, and snapshot lastDayValue for open windows. The
// pass is best effort; each sub-step is fault-isolated so one failing
// query never blocks the rest of the transition or other users.
package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-dayend-engine/pkg/activity"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
)

// whereInChunkSize bounds membership queries, mirroring the store's
// whereIn limit.
const whereInChunkSize = docstore.MaxInValues

// Manager drives the day-transition lifecycle pass.
type Manager struct {
	store docstore.Store
	clock *dayclock.Clock
}

func NewManager(store docstore.Store, clock *dayclock.Clock) *Manager {
	return &Manager{store: store, clock: clock}
}

// RunDayTransition executes the three maintenance sub-steps for one user.
// Sub-step failures are logged (with an index hint when the store
// reports one) and swallowed; the pass always runs to the end.
func (m *Manager) RunDayTransition(ctx context.Context, userID string) {
	yesterday := m.clock.YesterdayStart()

	if err := m.autoSkipExpired(ctx, userID, yesterday); err != nil {
		docstore.LogIndexHint("maintenance.autoSkipExpired", err)
		logrus.WithError(err).Errorf("auto-skip pass failed for user %s", userID)
	}
	if err := m.ensurePending(ctx, userID, yesterday); err != nil {
		docstore.LogIndexHint("maintenance.ensurePending", err)
		logrus.WithError(err).Errorf("ensure-pending pass failed for user %s", userID)
	}
	if err := m.snapshotLastDayValues(ctx, userID, yesterday); err != nil {
		docstore.LogIndexHint("maintenance.snapshotLastDayValues", err)
		logrus.WithError(err).Errorf("last-day-value pass failed for user %s", userID)
	}
}

// autoSkipExpired transitions pending habit instances whose window closed
// two or more days before yesterday to skipped, stamped with the window
// end, and generates each successor in the same batch.
func (m *Manager) autoSkipExpired(ctx context.Context, userID string, yesterday time.Time) error {
	cutoff := m.clock.AddDays(yesterday, -2)

	docs, err := m.store.Query(ctx, userID, activity.InstancesCollection,
		docstore.Where("templateCategoryType", docstore.OpEqual, string(activity.CategoryHabit)).
			And("status", docstore.OpEqual, string(activity.StatusPending)).
			And("windowEndDate", docstore.OpLess, cutoff))
	if err != nil {
		return fmt.Errorf("failed to query expired instances: %w", err)
	}

	batch := m.store.NewBatch()
	for _, doc := range docs {
		var inst activity.Instance
		if err := json.Unmarshal(doc.Data, &inst); err != nil {
			logrus.WithError(err).Errorf("skipping undecodable instance %s", doc.ID)
			continue
		}
		if inst.WindowEndDate == nil {
			continue
		}
		windowEnd := m.clock.StartOfDay(*inst.WindowEndDate)
		if !windowEnd.Before(cutoff) {
			continue
		}

		inst.Status = activity.StatusSkipped
		inst.SkippedAt = &windowEnd
		inst.LastUpdated = docstore.ServerNow()

		// Skip plus successor is two operations; flush before the
		// batch would overflow.
		if batch.Len()+2 > docstore.MaxBatchOps {
			if err := batch.Commit(ctx); err != nil {
				return fmt.Errorf("failed to commit skip batch: %w", err)
			}
			batch = m.store.NewBatch()
		}
		batch.Set(userID, activity.InstancesCollection, doc.ID, inst)
		if err := m.generateNextInstance(ctx, userID, &inst, batch); err != nil {
			logrus.WithError(err).Errorf("failed to generate successor for instance %s", doc.ID)
		}
	}
	if batch.Len() > 0 {
		if err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit skip batch: %w", err)
		}
	}
	return nil
}

// ensurePending guarantees every active habit template is covered by a
// pending instance for yesterday or today/future. Stale newest instances
// are skipped and regenerated; templates with no instances at all get an
// initial one-day instance starting today.
func (m *Manager) ensurePending(ctx context.Context, userID string, yesterday time.Time) error {
	today := m.clock.TodayStart()

	templateDocs, err := m.store.Query(ctx, userID, activity.TemplatesCollection,
		docstore.Where("categoryType", docstore.OpEqual, string(activity.CategoryHabit)).
			And("isActive", docstore.OpEqual, true))
	if err != nil {
		return fmt.Errorf("failed to query active habit templates: %w", err)
	}
	if len(templateDocs) == 0 {
		return nil
	}

	templates := make(map[string]*activity.Template, len(templateDocs))
	templateIDs := make([]string, 0, len(templateDocs))
	for _, doc := range templateDocs {
		var tpl activity.Template
		if err := json.Unmarshal(doc.Data, &tpl); err != nil {
			logrus.WithError(err).Errorf("skipping undecodable template %s", doc.ID)
			continue
		}
		templates[doc.ID] = &tpl
		templateIDs = append(templateIDs, doc.ID)
	}

	pendingByTemplate, err := m.fetchPendingByTemplate(ctx, userID, templateIDs)
	if err != nil {
		return err
	}

	for _, templateID := range templateIDs {
		pending := pendingByTemplate[templateID]

		if m.coversDay(pending, yesterday) {
			continue
		}
		if m.coversDayOrLater(pending, today) {
			continue
		}

		newestID, newest, err := m.newestInstance(ctx, userID, templateID)
		if err != nil {
			logrus.WithError(err).Errorf("failed to load newest instance for template %s", templateID)
			continue
		}
		if newest == nil {
			if err := m.createInitialInstance(ctx, userID, templateID, templates[templateID], today); err != nil {
				logrus.WithError(err).Errorf("failed to create initial instance for template %s", templateID)
			}
			continue
		}
		if newest.WindowEndDate != nil && m.clock.StartOfDay(*newest.WindowEndDate).Before(yesterday) {
			if err := m.skipAndGenerateNext(ctx, userID, newestID, newest); err != nil {
				logrus.WithError(err).Errorf("failed to roll over stale instance %s", newestID)
			}
		}
	}
	return nil
}

// fetchPendingByTemplate batch-loads pending instances for all templates
// through chunked membership queries.
func (m *Manager) fetchPendingByTemplate(ctx context.Context, userID string, templateIDs []string) (map[string][]*activity.Instance, error) {
	byTemplate := make(map[string][]*activity.Instance)
	for start := 0; start < len(templateIDs); start += whereInChunkSize {
		end := start + whereInChunkSize
		if end > len(templateIDs) {
			end = len(templateIDs)
		}
		chunk := make([]interface{}, 0, end-start)
		for _, id := range templateIDs[start:end] {
			chunk = append(chunk, id)
		}

		docs, err := m.store.Query(ctx, userID, activity.InstancesCollection,
			docstore.Where("templateId", docstore.OpIn, chunk).
				And("status", docstore.OpEqual, string(activity.StatusPending)))
		if err != nil {
			return nil, fmt.Errorf("failed to query pending instances: %w", err)
		}
		for _, doc := range docs {
			var inst activity.Instance
			if err := json.Unmarshal(doc.Data, &inst); err != nil {
				logrus.WithError(err).Errorf("skipping undecodable instance %s", doc.ID)
				continue
			}
			byTemplate[inst.TemplateID] = append(byTemplate[inst.TemplateID], &inst)
		}
	}
	return byTemplate, nil
}

// coversDay reports whether any instance belongs to or ends on the day.
func (m *Manager) coversDay(instances []*activity.Instance, day time.Time) bool {
	for _, inst := range instances {
		if inst.BelongsToDate != nil && m.clock.SameDay(*inst.BelongsToDate, day) {
			return true
		}
		if inst.WindowEndDate != nil && m.clock.SameDay(*inst.WindowEndDate, day) {
			return true
		}
	}
	return false
}

// coversDayOrLater reports whether any instance belongs to or ends on the
// day or any later day.
func (m *Manager) coversDayOrLater(instances []*activity.Instance, day time.Time) bool {
	d := m.clock.StartOfDay(day)
	for _, inst := range instances {
		if inst.BelongsToDate != nil && !m.clock.StartOfDay(*inst.BelongsToDate).Before(d) {
			return true
		}
		if inst.WindowEndDate != nil && !m.clock.StartOfDay(*inst.WindowEndDate).Before(d) {
			return true
		}
	}
	return false
}

// newestInstance returns the template's instance with the latest window
// end, or nil when the template has no instances.
func (m *Manager) newestInstance(ctx context.Context, userID, templateID string) (string, *activity.Instance, error) {
	docs, err := m.store.Query(ctx, userID, activity.InstancesCollection,
		docstore.Where("templateId", docstore.OpEqual, templateID).
			OrderedBy("windowEndDate", true).
			WithLimit(1))
	if err != nil {
		return "", nil, err
	}
	if len(docs) == 0 {
		return "", nil, nil
	}
	var inst activity.Instance
	if err := json.Unmarshal(docs[0].Data, &inst); err != nil {
		return "", nil, fmt.Errorf("failed to decode instance %s: %w", docs[0].ID, err)
	}
	return docs[0].ID, &inst, nil
}

// skipAndGenerateNext closes one stale instance and creates its
// successor in a single atomic batch.
func (m *Manager) skipAndGenerateNext(ctx context.Context, userID, instanceID string, inst *activity.Instance) error {
	skippedAt := m.clock.StartOfDay(*inst.WindowEndDate)
	inst.Status = activity.StatusSkipped
	inst.SkippedAt = &skippedAt
	inst.LastUpdated = docstore.ServerNow()

	batch := m.store.NewBatch()
	batch.Set(userID, activity.InstancesCollection, instanceID, inst)
	if err := m.generateNextInstance(ctx, userID, inst, batch); err != nil {
		return err
	}
	return batch.Commit(ctx)
}

// generateNextInstance queues the successor of a just-closed instance:
// the next window starts the day after the old window end, spans the
// inherited duration, copies the denormalized template snapshot and
// resets progress. Re-running is a no-op when a pending instance for the
// same start date already exists.
func (m *Manager) generateNextInstance(ctx context.Context, userID string, inst *activity.Instance, batch docstore.Batch) error {
	if inst.WindowEndDate == nil {
		return nil
	}
	nextStart := m.clock.StartOfDay(m.clock.AddDays(*inst.WindowEndDate, 1))
	duration := inst.WindowSpanDays()
	nextEnd := m.clock.AddDays(nextStart, duration-1)

	existing, err := m.store.Query(ctx, userID, activity.InstancesCollection,
		docstore.Where("templateId", docstore.OpEqual, inst.TemplateID).
			And("belongsToDate", docstore.OpEqual, nextStart).
			And("status", docstore.OpEqual, string(activity.StatusPending)))
	if err != nil {
		return fmt.Errorf("failed to check for existing successor: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	next := activity.Instance{
		TemplateID:     inst.TemplateID,
		Status:         activity.StatusPending,
		DueDate:        &nextStart,
		BelongsToDate:  &nextStart,
		WindowEndDate:  &nextEnd,
		WindowDuration: duration,
		IsActive:       true,
		LastDayValue:   activity.NewValue(0),

		TemplateName:           inst.TemplateName,
		TemplateCategoryID:     inst.TemplateCategoryID,
		TemplateCategoryName:   inst.TemplateCategoryName,
		TemplateCategoryType:   inst.TemplateCategoryType,
		TemplatePriority:       inst.TemplatePriority,
		TemplateTrackingType:   inst.TemplateTrackingType,
		TemplateTarget:         inst.TemplateTarget,
		TemplateUnit:           inst.TemplateUnit,
		TemplateIsRecurring:    inst.TemplateIsRecurring,
		TemplateEveryXValue:    inst.TemplateEveryXValue,
		TemplateEveryXPeriod:   inst.TemplateEveryXPeriod,
		TemplateTimesPerPeriod: inst.TemplateTimesPerPeriod,
		TemplatePeriodType:     inst.TemplatePeriodType,

		CreatedAt:   docstore.ServerNow(),
		LastUpdated: docstore.ServerNow(),
	}
	batch.Set(userID, activity.InstancesCollection, uuid.NewString(), next)
	return nil
}

// createInitialInstance creates the first one-day pending instance for a
// template that has none, starting today.
func (m *Manager) createInitialInstance(ctx context.Context, userID, templateID string, tpl *activity.Template, today time.Time) error {
	if tpl == nil {
		return fmt.Errorf("missing template %s", templateID)
	}
	windowEnd := today

	inst := activity.Instance{
		TemplateID:     templateID,
		Status:         activity.StatusPending,
		DueDate:        &today,
		BelongsToDate:  &today,
		WindowEndDate:  &windowEnd,
		WindowDuration: 1,
		IsActive:       true,
		LastDayValue:   activity.NewValue(0),

		TemplateName:           tpl.Name,
		TemplateCategoryID:     tpl.CategoryID,
		TemplateCategoryName:   tpl.CategoryName,
		TemplateCategoryType:   tpl.CategoryType,
		TemplatePriority:       tpl.Priority,
		TemplateTrackingType:   tpl.TrackingType,
		TemplateTarget:         tpl.Target,
		TemplateUnit:           tpl.Unit,
		TemplateIsRecurring:    tpl.IsRecurring,
		TemplateEveryXValue:    tpl.EveryXValue,
		TemplateEveryXPeriod:   tpl.EveryXPeriod,
		TemplateTimesPerPeriod: tpl.TimesPerPeriod,
		TemplatePeriodType:     tpl.PeriodType,

		CreatedAt:   docstore.ServerNow(),
		LastUpdated: docstore.ServerNow(),
	}
	if _, err := m.store.Add(ctx, userID, activity.InstancesCollection, inst); err != nil {
		return fmt.Errorf("failed to create initial instance: %w", err)
	}
	return nil
}

// snapshotLastDayValues copies currentValue into lastDayValue for every
// pending habit instance whose window extends past the processing day,
// so the next day's differential earned calculation measures only the
// next day's increment.
func (m *Manager) snapshotLastDayValues(ctx context.Context, userID string, day time.Time) error {
	docs, err := m.store.Query(ctx, userID, activity.InstancesCollection,
		docstore.Where("templateCategoryType", docstore.OpEqual, string(activity.CategoryHabit)).
			And("status", docstore.OpEqual, string(activity.StatusPending)).
			And("windowEndDate", docstore.OpGreater, m.clock.StartOfDay(day)))
	if err != nil {
		return fmt.Errorf("failed to query open-window instances: %w", err)
	}

	batch := m.store.NewBatch()
	for _, doc := range docs {
		var inst activity.Instance
		if err := json.Unmarshal(doc.Data, &inst); err != nil {
			logrus.WithError(err).Errorf("skipping undecodable instance %s", doc.ID)
			continue
		}
		inst.LastDayValue = activity.NewValue(inst.CurrentValue.Float64())
		inst.LastUpdated = docstore.ServerNow()

		if batch.Len() >= docstore.MaxBatchOps {
			if err := batch.Commit(ctx); err != nil {
				return fmt.Errorf("failed to commit snapshot batch: %w", err)
			}
			batch = m.store.NewBatch()
		}
		batch.Set(userID, activity.InstancesCollection, doc.ID, inst)
	}
	if batch.Len() > 0 {
		if err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit snapshot batch: %w", err)
		}
	}
	return nil
}
