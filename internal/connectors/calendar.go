// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-assist/internal/storage"
)

// DefaultMeetingDuration applies when neither an end time nor a duration
// is given.
const DefaultMeetingDuration = 30 * time.Minute

// zonedLayouts carry their own offset; localLayouts are read in the
// calendar's time zone.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02 3:04PM",
		"2006-01-02 3:04 PM",
		"2006-01-02",
	}
)

// ParseMeetingTime reads an ISO 8601 style time. Values without an offset
// are taken to be in loc.
func ParseMeetingTime(value string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(value)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use an ISO 8601 datetime such as 2024-10-20T12:45:00-05:00", v)
}

// Calendar is a Scheduler that records events in the local database.
type Calendar struct {
	store *storage.Store
	loc   *time.Location
}

// NewCalendar creates a calendar over store that reports times in loc.
func NewCalendar(store *storage.Store, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{store: store, loc: loc}
}

// Location returns the calendar time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Schedule books meeting.
func (c *Calendar) Schedule(ctx context.Context, meeting Meeting) (*ScheduledEvent, error) {
	if len(meeting.Attendees) == 0 {
		return nil, Missing("schedule_meeting", "attendees", "Whom should I invite to this meeting? Provide one or more attendee emails.")
	}
	if meeting.Start.IsZero() {
		return nil, Missing("schedule_meeting", "start_time", "When should the meeting start? (Include date and time).")
	}
	if meeting.Duration <= 0 {
		return nil, Missing("schedule_meeting", "duration_minutes", "Meeting duration must be a positive number of minutes. Please provide it again.")
	}
	if c.store == nil {
		return nil, Failure("calendar", "calendar storage is not configured", nil)
	}

	title := strings.TrimSpace(meeting.Title)
	if title == "" {
		title = "Untitled Meeting"
	}
	start := meeting.Start.In(c.loc)
	end := start.Add(meeting.Duration)

	rec := &storage.EventRecord{
		Title:       title,
		Description: meeting.Description,
		Start:       start,
		End:         end,
		Attendees:   meeting.Attendees,
	}
	if err := c.store.SaveEvent(ctx, rec); err != nil {
		return nil, Failure("calendar", "could not save the event", err)
	}

	return &ScheduledEvent{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Start:       start.Format(time.RFC3339),
		End:         end.Format(time.RFC3339),
		TimeZone:    c.loc.String(),
		Attendees:   rec.Attendees,
		Status:      "scheduled",
	}, nil
}
