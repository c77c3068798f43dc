package event_bus

// Event types published by the calendar service.
const (
	CalendarEventCreatedType EventType = "calendar.event.created"
	CalendarEventUpdatedType EventType = "calendar.event.updated"
	OccurrenceDetachedType   EventType = "calendar.occurrence.detached"
	SeriesDeletedType        EventType = "calendar.series.deleted"
)

type CalendarEventCreated struct {
	Id        string
	Title     string
	Date      string
	Recurring bool
	CreatedBy string
}

type CalendarEventUpdated struct {
	Id    string
	Title string
	Date  string
	// Series is true when the whole series was edited rather than one occurrence.
	Series bool
}

// OccurrenceDetached fires when a single occurrence is edited or deleted
// independently of its series.
type OccurrenceDetached struct {
	MasterId string
	Date     string
	// OverrideId is empty when the occurrence was deleted instead of moved.
	OverrideId string
}

type SeriesDeleted struct {
	Id    string
	Title string
}
