package notification

import (
	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/internal/event_bus"
)

// Notifier forwards calendar changes to the team's push-notification
// channel. Delivery itself is owned by an external service; this subscriber
// is the seam it plugs into, and logs every change it would forward.
type Notifier struct {
	unsubscribes []func()
}

func NewNotifier(bus *event_bus.EventBus) *Notifier {
	n := &Notifier{}

	n.unsubscribes = append(n.unsubscribes,
		event_bus.SubscribeTyped[event_bus.CalendarEventCreated](bus, event_bus.CalendarEventCreatedType,
			func(e event_bus.EventT[event_bus.CalendarEventCreated]) error {
				log.Infof("notify: event %q created on %s by %s", e.Data.Title, e.Data.Date, e.Data.CreatedBy)
				return nil
			}),
		event_bus.SubscribeTyped[event_bus.CalendarEventUpdated](bus, event_bus.CalendarEventUpdatedType,
			func(e event_bus.EventT[event_bus.CalendarEventUpdated]) error {
				log.Infof("notify: event %q updated (series=%t)", e.Data.Title, e.Data.Series)
				return nil
			}),
		event_bus.SubscribeTyped[event_bus.OccurrenceDetached](bus, event_bus.OccurrenceDetachedType,
			func(e event_bus.EventT[event_bus.OccurrenceDetached]) error {
				log.Infof("notify: occurrence %s of %s detached", e.Data.Date, e.Data.MasterId)
				return nil
			}),
		event_bus.SubscribeTyped[event_bus.SeriesDeleted](bus, event_bus.SeriesDeletedType,
			func(e event_bus.EventT[event_bus.SeriesDeleted]) error {
				log.Infof("notify: series %q deleted", e.Data.Title)
				return nil
			}),
	)
	return n
}

// Close detaches the notifier from the bus.
func (n *Notifier) Close() {
	for _, unsubscribe := range n.unsubscribes {
		unsubscribe()
	}
}
