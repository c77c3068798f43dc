package event

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/internal/event_bus"
	"github.com/teamcal/teamcal/pkg/recurrence"
	"github.com/teamcal/teamcal/pkg/user"
)

// Service coordinates calendar reads and mutations. Single-occurrence edits
// and series edits go through here so that the master's pattern, its
// exception log, and any detached overrides stay consistent with each other.
type Service struct {
	repo Repository
	bus  *event_bus.EventBus
}

func NewService(repo Repository, bus *event_bus.EventBus) *Service {
	return &Service{repo: repo, bus: bus}
}

// List expands every recurring master into dated instances inside [from, to],
// merges them with plain events and standalone overrides in the window, and
// returns the result sorted by date and start time.
func (s *Service) List(ctx context.Context, from, to recurrence.Date) ([]CalendarEvent, error) {
	stored, err := s.repo.FindInWindow(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	events := make([]CalendarEvent, 0, len(stored))
	for _, e := range stored {
		if !e.IsRecurring() {
			events = append(events, e)
			continue
		}
		for _, d := range recurrence.Expand(*e.Recurrence, e.Date, e.Exceptions, from, to) {
			events = append(events, Instance(e, d))
		}
	}

	sortEvents(events)
	return events, nil
}

func (s *Service) Create(ctx context.Context, event CalendarEvent) (*CalendarEvent, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	event.CreatedBy = userId
	event.ParentEventId = ""
	event.RecurrenceDate = recurrence.Date{}

	if event.Recurrence != nil {
		rule, err := recurrence.Validate(*event.Recurrence)
		if err != nil {
			return nil, err
		}
		event.Recurrence = &rule
	}

	// Exceptions supplied at creation go into the exception log together
	// with the event itself, in one transaction.
	exceptions := event.Exceptions
	event.Exceptions = nil
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		id, err := repo.Store(ctx, event)
		if err != nil {
			return err
		}
		event.Id = id
		for _, d := range exceptions.Dates() {
			if err := repo.AddException(ctx, event.Id, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}
	event.Exceptions = exceptions

	s.publish(ctx, event_bus.CalendarEventCreatedType, event_bus.CalendarEventCreated{
		Id:        event.Id,
		Title:     event.Title,
		Date:      event.Date.String(),
		Recurring: event.IsRecurring(),
		CreatedBy: event.CreatedBy,
	})
	return &event, nil
}

// Get returns the stored record as-is, without expanding recurrences.
func (s *Service) Get(ctx context.Context, id string) (*CalendarEvent, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return event, nil
}

// UpdateSeries replaces a master's fields and recurrence rule. The exception
// log is untouched: a series edit never rematerializes previously detached
// occurrences.
func (s *Service) UpdateSeries(ctx context.Context, id string, event CalendarEvent) (*CalendarEvent, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	event.Id = id
	event.CreatedBy = existing.CreatedBy
	event.ParentEventId = existing.ParentEventId
	event.RecurrenceDate = existing.RecurrenceDate

	if event.Recurrence != nil {
		rule, err := recurrence.Validate(*event.Recurrence)
		if err != nil {
			return nil, err
		}
		event.Recurrence = &rule
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	event.Exceptions = existing.Exceptions

	s.publish(ctx, event_bus.CalendarEventUpdatedType, event_bus.CalendarEventUpdated{
		Id:     event.Id,
		Title:  event.Title,
		Date:   event.Date.String(),
		Series: true,
	})
	return &event, nil
}

// UpdateInstance detaches the occurrence of masterId at originalDate and
// replaces it with a standalone override populated from fields. The override
// may carry a different date than originalDate when the occurrence is moved.
// Recording the exception and writing the override happen in one transaction.
func (s *Service) UpdateInstance(ctx context.Context, masterId string, originalDate recurrence.Date, fields CalendarEvent) (*CalendarEvent, error) {
	master, err := s.repo.Get(ctx, masterId)
	if err != nil {
		return nil, err
	}
	if !master.IsRecurring() {
		return nil, fmt.Errorf("cannot edit single occurrence of %s: %w", masterId, ErrNotRecurring)
	}

	override := fields
	override.Id = ""
	override.ParentEventId = masterId
	override.RecurrenceDate = originalDate
	override.Recurrence = nil
	override.Exceptions = nil
	if override.Date.IsZero() {
		override.Date = originalDate
	}
	if override.CreatedBy == "" {
		override.CreatedBy = master.CreatedBy
	}

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		if err := repo.AddException(ctx, masterId, originalDate); err != nil {
			return err
		}
		id, err := repo.UpsertOverride(ctx, override)
		if err != nil {
			return err
		}
		override.Id = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detach occurrence %s of %s: %w", originalDate, masterId, err)
	}

	s.publish(ctx, event_bus.OccurrenceDetachedType, event_bus.OccurrenceDetached{
		MasterId:   masterId,
		Date:       originalDate.String(),
		OverrideId: override.Id,
	})
	return &override, nil
}

// DeleteSeries removes an event and, for recurring masters, every standalone
// override referencing it.
func (s *Service) DeleteSeries(ctx context.Context, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		if err := repo.DeleteByParent(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}

	s.publish(ctx, event_bus.SeriesDeletedType, event_bus.SeriesDeleted{
		Id:    id,
		Title: existing.Title,
	})
	return nil
}

// DeleteInstance removes the single occurrence of masterId at date. When an
// override exists for that date it is deleted; otherwise the date is recorded
// in the exception log. Either way the occurrence stays excluded afterwards.
func (s *Service) DeleteInstance(ctx context.Context, masterId string, date recurrence.Date) error {
	master, err := s.repo.Get(ctx, masterId)
	if err != nil {
		return err
	}
	if !master.IsRecurring() {
		return fmt.Errorf("cannot delete single occurrence of %s: %w", masterId, ErrNotRecurring)
	}

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		if err := repo.AddException(ctx, masterId, date); err != nil {
			return err
		}
		override, err := repo.FindOverride(ctx, masterId, date)
		if err != nil {
			return err
		}
		if override != nil {
			return repo.Delete(ctx, override.Id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete occurrence %s of %s: %w", date, masterId, err)
	}

	s.publish(ctx, event_bus.OccurrenceDetachedType, event_bus.OccurrenceDetached{
		MasterId: masterId,
		Date:     date.String(),
	})
	return nil
}

// AddException excludes a date from a master's generation without
// materializing an override.
func (s *Service) AddException(ctx context.Context, id string, date recurrence.Date) error {
	master, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !master.IsRecurring() {
		return fmt.Errorf("cannot add exception to %s: %w", id, ErrNotRecurring)
	}
	return s.repo.AddException(ctx, id, date)
}

// RemoveException lets the pattern generate the date again. An override left
// behind for that date is not touched.
func (s *Service) RemoveException(ctx context.Context, id string, date recurrence.Date) error {
	master, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !master.IsRecurring() {
		return fmt.Errorf("cannot remove exception from %s: %w", id, ErrNotRecurring)
	}
	return s.repo.RemoveException(ctx, id, date)
}

func (s *Service) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Errorf("failed to publish %s: %v", eventType, err)
	}
}

// sortEvents orders by (date, start time, id). A missing start time sorts as
// "00:00".
func sortEvents(events []CalendarEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date.Before(events[j].Date)
		}
		ti, tj := events[i].StartTime, events[j].StartTime
		if ti == "" {
			ti = "00:00"
		}
		if tj == "" {
			tj = "00:00"
		}
		if ti != tj {
			return ti < tj
		}
		return events[i].Id < events[j].Id
	})
}
