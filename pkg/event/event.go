package event

import (
	"errors"

	"github.com/teamcal/teamcal/pkg/recurrence"
)

var (
	// ErrNotFound is returned when no event exists with the requested id.
	ErrNotFound = errors.New("event not found")
	// ErrNotRecurring is returned when a single-occurrence operation targets
	// an event without a recurrence rule.
	ErrNotRecurring = errors.New("event is not recurring")
)

// CalendarEvent is a stored calendar record: a plain event, a recurring
// master, or a standalone override detached from a master.
type CalendarEvent struct {
	Id          string
	Title       string
	Description string
	Date        recurrence.Date
	// StartTime and EndTime are optional "HH:MM" wall-clock strings, used
	// for display and sorting only.
	StartTime string
	EndTime   string
	Location  string
	CreatedBy string

	// Recurrence is set on masters only.
	Recurrence *recurrence.Rule
	// Exceptions holds the master's excluded dates, loaded from the
	// exception log. Nil on non-masters.
	Exceptions recurrence.DateSet

	// ParentEventId points an override at the master it detaches from.
	ParentEventId string
	// RecurrenceDate is the master occurrence date an override replaces. It
	// can differ from Date when the occurrence was moved.
	RecurrenceDate recurrence.Date
}

func (e CalendarEvent) IsRecurring() bool {
	return e.Recurrence != nil
}

func (e CalendarEvent) IsOverride() bool {
	return e.ParentEventId != ""
}

// Instance materializes one occurrence of a master. Instances are ephemeral
// and never persisted; their id is derived from the master id and the date.
func Instance(master CalendarEvent, date recurrence.Date) CalendarEvent {
	inst := master
	inst.Id = master.Id + "_" + date.String()
	inst.Date = date
	inst.ParentEventId = master.Id
	inst.Recurrence = nil
	inst.Exceptions = nil
	return inst
}
