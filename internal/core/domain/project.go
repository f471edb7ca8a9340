package domain

import (
	"fmt"
	"time"
)

// BusinessCategory classifies what a project sells
type BusinessCategory string

// BusinessCategory values
const (
	CategoryRealEstate BusinessCategory = "real_estate"
	CategoryAuto       BusinessCategory = "auto"
	CategoryServices   BusinessCategory = "services"
	CategoryGoods      BusinessCategory = "goods"
	CategoryOther      BusinessCategory = "other"
)

// Tone is the conversational register the assistant should use
type Tone string

// Tone values
const (
	ToneFriendly Tone = "friendly"
	ToneNeutral  Tone = "neutral"
	ToneFormal   Tone = "formal"
)

// ScheduleMode decides whether the weekly table is consulted
type ScheduleMode string

// ScheduleMode values
const (
	ScheduleAlways     ScheduleMode = "always"
	ScheduleBySchedule ScheduleMode = "by_schedule"
)

// DefaultTimezone is used when a project does not name one
const DefaultTimezone = "Europe/Moscow"

// TimeRange is an inclusive local-time window, both ends "HH:MM"
type TimeRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// WeeklySchedule holds the ordered ranges for every weekday.
// An empty day means no availability on that day.
type WeeklySchedule struct {
	Mon []TimeRange `json:"mon" yaml:"mon"`
	Tue []TimeRange `json:"tue" yaml:"tue"`
	Wed []TimeRange `json:"wed" yaml:"wed"`
	Thu []TimeRange `json:"thu" yaml:"thu"`
	Fri []TimeRange `json:"fri" yaml:"fri"`
	Sat []TimeRange `json:"sat" yaml:"sat"`
	Sun []TimeRange `json:"sun" yaml:"sun"`
}

// Day returns the ranges for a weekday index where Monday=0 and Sunday=6
func (w *WeeklySchedule) Day(index int) []TimeRange {
	switch index {
	case 0:
		return w.Mon
	case 1:
		return w.Tue
	case 2:
		return w.Wed
	case 3:
		return w.Thu
	case 4:
		return w.Fri
	case 5:
		return w.Sat
	case 6:
		return w.Sun
	}
	return nil
}

func (w *WeeklySchedule) days() map[string][]TimeRange {
	return map[string][]TimeRange{
		"mon": w.Mon, "tue": w.Tue, "wed": w.Wed, "thu": w.Thu,
		"fri": w.Fri, "sat": w.Sat, "sun": w.Sun,
	}
}

// Project is the per-account assistant configuration.
// The core treats it as an immutable snapshot for one invocation.
type Project struct {
	ID                   string           `json:"id" yaml:"id"`
	Name                 string           `json:"name" yaml:"name"`
	BusinessCategory     BusinessCategory `json:"business_type" yaml:"business_type"`
	Timezone             string           `json:"timezone" yaml:"timezone"`
	Enabled              bool             `json:"enabled" yaml:"enabled"`
	ScheduleMode         ScheduleMode     `json:"schedule_mode" yaml:"schedule_mode"`
	Schedule             WeeklySchedule   `json:"schedule" yaml:"schedule"`
	Tone                 Tone             `json:"tone" yaml:"tone"`
	AllowPriceDiscussion bool             `json:"allow_price_discussion" yaml:"allow_price_discussion"`
	ExtraInstructions    string           `json:"extra_instructions,omitempty" yaml:"extra_instructions,omitempty"`
}

// NewProject returns a project carrying the defaults. Decoding JSON or YAML
// into the returned value keeps defaults for absent fields.
func NewProject() *Project {
	return &Project{
		BusinessCategory:     CategoryOther,
		Timezone:             DefaultTimezone,
		Enabled:              true,
		ScheduleMode:         ScheduleAlways,
		Tone:                 ToneFriendly,
		AllowPriceDiscussion: true,
	}
}

// Location resolves the project timezone. Projects are validated before they
// reach the core, so the UTC fallback is only hit by unvalidated values.
func (p *Project) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidationError describes one invalid project field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks enums, the timezone and every schedule range.
// An unknown timezone fails here so the schedule evaluator never has to.
func (p *Project) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "id", Message: "required"}
	}

	switch p.BusinessCategory {
	case CategoryRealEstate, CategoryAuto, CategoryServices, CategoryGoods, CategoryOther:
	default:
		return &ValidationError{Field: "business_type", Message: fmt.Sprintf("unknown value %q", p.BusinessCategory)}
	}

	switch p.Tone {
	case ToneFriendly, ToneNeutral, ToneFormal:
	default:
		return &ValidationError{Field: "tone", Message: fmt.Sprintf("unknown value %q", p.Tone)}
	}

	switch p.ScheduleMode {
	case ScheduleAlways, ScheduleBySchedule:
	default:
		return &ValidationError{Field: "schedule_mode", Message: fmt.Sprintf("unknown value %q", p.ScheduleMode)}
	}

	if _, err := time.LoadLocation(p.Timezone); err != nil || p.Timezone == "" {
		return &ValidationError{Field: "timezone", Message: fmt.Sprintf("unknown timezone %q", p.Timezone)}
	}

	for day, ranges := range p.Schedule.days() {
		for i, r := range ranges {
			field := fmt.Sprintf("schedule.%s[%d]", day, i)
			if !isClock(r.Start) || !isClock(r.End) {
				return &ValidationError{Field: field, Message: "start and end must be HH:MM"}
			}
			if r.Start > r.End {
				return &ValidationError{Field: field, Message: "start is after end"}
			}
		}
	}

	return nil
}

// isClock accepts zero-padded 24-hour "HH:MM" only
func isClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	t, err := time.Parse("15:04", s)
	return err == nil && t.Format("15:04") == s
}
