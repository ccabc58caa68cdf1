package mapper

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"taskify/backend/internal/models"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

const ProductID = "-//Taskify//Taskify Sync 1.0//EN"

// Compact UTC form used by DTSTAMP/DTSTART/DTEND.
const BasicUTCLayout = "20060102T150405Z"

const (
	CalendarTentative = "TENTATIVE"
	CalendarConfirmed = "CONFIRMED"
	CalendarCompleted = "COMPLETED"
)

// CalendarStatus maps a task status onto the VEVENT STATUS vocabulary.
// in_progress and completed both become CONFIRMED, as does any unknown
// value.
func CalendarStatus(status string) string {
	if status == models.StatusPending {
		return CalendarTentative
	}
	return CalendarConfirmed
}

// TaskStatus maps a VEVENT STATUS back to a task status.
func TaskStatus(calendarStatus string) string {
	switch strings.ToUpper(calendarStatus) {
	case CalendarConfirmed:
		return models.StatusInProgress
	case CalendarCompleted:
		return models.StatusCompleted
	default:
		return models.StatusPending
	}
}

// EncodeTask renders the task as a single-event VCALENDAR. now is used
// for DTSTAMP.
func EncodeTask(task models.Task, now time.Time) ([]byte, error) {
	if task.CaldavUID == "" {
		return nil, fmt.Errorf("encode task: missing caldav uid")
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, task.CaldavUID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC().Truncate(time.Second))
	event.Props.SetDateTime(ical.PropDateTimeStart, task.StartTime.UTC().Truncate(time.Second))
	event.Props.SetDateTime(ical.PropDateTimeEnd, task.EndTime.UTC().Truncate(time.Second))
	event.Props.SetText(ical.PropSummary, task.Title)
	event.Props.SetText(ical.PropDescription, task.Description)
	event.Props.SetText(ical.PropStatus, CalendarStatus(task.Status))
	if task.Location != "" {
		event.Props.SetText(ical.PropLocation, task.Location)
	}
	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode task %s: %w", task.CaldavUID, err)
	}
	return buf.Bytes(), nil
}

type TaskFields struct {
	UID         mo.Option[string]
	Summary     mo.Option[string]
	Description mo.Option[string]
	Start       mo.Option[time.Time]
	End         mo.Option[time.Time]
	Status      mo.Option[string]
	Location    mo.Option[string]
}

// Task builds a task row from the decoded fields. Status is translated
// with TaskStatus and defaults to pending.
func (f TaskFields) Task() models.Task {
	return models.Task{
		CaldavUID:   f.UID.OrEmpty(),
		Title:       f.Summary.OrEmpty(),
		Description: f.Description.OrEmpty(),
		StartTime:   f.Start.OrEmpty(),
		EndTime:     f.End.OrEmpty(),
		Status:      TaskStatus(f.Status.OrEmpty()),
		Location:    f.Location.OrEmpty(),
	}
}

// DecodeTask extracts the known VEVENT fields from calendar data. A later
// line for the same field replaces an earlier one. Alarm blocks are
// skipped.
func DecodeTask(data string) TaskFields {
	var f TaskFields
	text := func(dst *mo.Option[string]) Setter {
		return func(v string) error {
			*dst = mo.Some(unescapeText(v))
			return nil
		}
	}
	stamp := func(dst *mo.Option[time.Time]) Setter {
		return func(v string) error {
			t, err := ParseDateTime(v)
			if err != nil {
				return err
			}
			*dst = mo.Some(t)
			return nil
		}
	}

	NewScanner(
		Field{Prefix: "UID:", Set: text(&f.UID)},
		Field{Prefix: "SUMMARY:", Set: text(&f.Summary)},
		Field{Prefix: "DTSTART:", Set: stamp(&f.Start)},
		Field{Prefix: "DTEND:", Set: stamp(&f.End)},
		Field{Prefix: "DESCRIPTION:", Set: text(&f.Description)},
		Field{Prefix: "STATUS:", Set: text(&f.Status)},
		Field{Prefix: "LOCATION:", Set: text(&f.Location)},
	).Ignore("VALARM").Scan(data)

	return f
}

var dateTimeLayouts = []string{
	BasicUTCLayout,
	"20060102T150405",
	"20060102",
}

// ParseDateTime accepts the basic UTC form, a floating local time (read
// as UTC) or a bare date.
func ParseDateTime(v string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date-time %q", v)
}
