// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package activity holds the user-facing activity records: templates
// (recurring definitions), instances (one concrete occurrence per date
// window) and categories. These documents are owned by the client app;
// the engine reads templates/categories and maintains instances.
package activity

import (
	"time"

	"github.com/AccelByte/extend-dayend-engine/pkg/docstore"
)

// Store collections, addressed per user.
const (
	TemplatesCollection  = "activities"
	InstancesCollection  = "activity_instances"
	CategoriesCollection = "categories"
)

// CategoryType classifies a template's category.
type CategoryType string

const (
	CategoryHabit     CategoryType = "habit"
	CategoryTask      CategoryType = "task"
	CategoryEssential CategoryType = "essential"
)

// TrackingType is the numeric model used for an activity's progress.
type TrackingType string

const (
	TrackingBinary   TrackingType = "binary"
	TrackingQuantity TrackingType = "quantity"
	TrackingTime     TrackingType = "time"
)

// Status is the lifecycle state of an instance. Completed and skipped are
// terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

// Template is a user-defined recurring or one-off activity definition.
// Read-only input for the engine; mutated only by template management.
type Template struct {
	Name         string       `json:"name"`
	CategoryID   string       `json:"categoryId"`
	CategoryName string       `json:"categoryName"`
	CategoryType CategoryType `json:"categoryType"`
	Priority     int          `json:"priority"`
	TrackingType TrackingType `json:"trackingType"`
	Target       Value        `json:"target,omitempty"`
	Unit         string       `json:"unit,omitempty"`
	IsActive     bool         `json:"isActive"`
	IsRecurring  bool         `json:"isRecurring,omitempty"`
	UserID       string       `json:"userId"`

	// Recurrence: either "every X period-units" ...
	EveryXValue  int    `json:"everyXValue,omitempty"`
	EveryXPeriod string `json:"everyXPeriodType,omitempty"`
	// ... or "N times per period".
	TimesPerPeriod int    `json:"timesPerPeriod,omitempty"`
	PeriodType     string `json:"periodType,omitempty"`

	CreatedAt   docstore.Stamp `json:"createdTime,omitempty"`
	LastUpdated docstore.Stamp `json:"lastUpdated,omitempty"`
}

// Category groups templates for breakdowns and the neglect penalty.
type Category struct {
	ID           string       `json:"-"`
	Name         string       `json:"name"`
	CategoryType CategoryType `json:"categoryType"`
	UserID       string       `json:"userId"`
}

// Instance is one concrete occurrence of a template for a date window.
// Template fields are denormalized onto the instance at creation time so
// scoring a day never depends on the template's current state.
type Instance struct {
	TemplateID string `json:"templateId"`
	Status     Status `json:"status"`

	DueDate       *time.Time `json:"dueDate,omitempty"`
	BelongsToDate *time.Time `json:"belongsToDate,omitempty"`
	WindowEndDate *time.Time `json:"windowEndDate,omitempty"`
	// WindowDuration is the window span in days; 1 for plain daily habits.
	WindowDuration int `json:"windowDuration,omitempty"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
	SkippedAt   *time.Time `json:"skippedAt,omitempty"`

	// CurrentValue is progress so far: a counter for binary/quantity,
	// elapsed milliseconds for time tracking. LastDayValue is the value
	// snapshotted at the previous day end; windowed quantity/time earned
	// is measured as the increment over it.
	CurrentValue Value `json:"currentValue,omitempty"`
	LastDayValue Value `json:"lastDayValue,omitempty"`

	// TotalTimeLogged is elapsed milliseconds logged through the timer,
	// tracked separately from CurrentValue.
	TotalTimeLogged float64 `json:"totalTimeLogged,omitempty"`

	IsActive bool `json:"isActive"`

	// Denormalized template snapshot.
	TemplateName           string       `json:"templateName,omitempty"`
	TemplateCategoryID     string       `json:"templateCategoryId,omitempty"`
	TemplateCategoryName   string       `json:"templateCategoryName,omitempty"`
	TemplateCategoryType   CategoryType `json:"templateCategoryType,omitempty"`
	TemplatePriority       int          `json:"templatePriority,omitempty"`
	TemplateTrackingType   TrackingType `json:"templateTrackingType,omitempty"`
	TemplateTarget         Value        `json:"templateTarget,omitempty"`
	TemplateUnit           string       `json:"templateUnit,omitempty"`
	TemplateIsRecurring    bool         `json:"templateIsRecurring,omitempty"`
	TemplateEveryXValue    int          `json:"templateEveryXValue,omitempty"`
	TemplateEveryXPeriod   string       `json:"templateEveryXPeriodType,omitempty"`
	TemplateTimesPerPeriod int          `json:"templateTimesPerPeriod,omitempty"`
	TemplatePeriodType     string       `json:"templatePeriodType,omitempty"`

	CreatedAt   docstore.Stamp `json:"createdTime,omitempty"`
	LastUpdated docstore.Stamp `json:"lastUpdated,omitempty"`
}

// Priority returns the denormalized priority weight, defaulting to 1.
func (i *Instance) Priority() float64 {
	if i.TemplatePriority < 1 {
		return 1
	}
	return float64(i.TemplatePriority)
}

// IsTerminal reports whether the instance reached a terminal state.
func (i *Instance) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusSkipped
}

// WindowSpanDays returns the window length in days, defaulting to 1.
func (i *Instance) WindowSpanDays() int {
	if i.WindowDuration < 1 {
		return 1
	}
	return i.WindowDuration
}

// Windowed reports whether the instance spans more than one day, which
// switches quantity/time earned math to differential mode.
func (i *Instance) Windowed() bool {
	return i.WindowSpanDays() > 1
}
