package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/teamcal/teamcal/pkg/recurrence"
)

type RepositoryStub struct {
	mu         sync.RWMutex
	events     map[string]CalendarEvent      // id -> stored record
	exceptions map[string]recurrence.DateSet // event id -> excluded dates
	nextId     int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		events:     make(map[string]CalendarEvent),
		exceptions: make(map[string]recurrence.DateSet),
		nextId:     1,
	}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	r.mu.Lock()
	// Snapshot current state for rollback
	originalEvents := make(map[string]CalendarEvent, len(r.events))
	for k, v := range r.events {
		originalEvents[k] = v
	}
	originalExceptions := make(map[string]recurrence.DateSet, len(r.exceptions))
	for k, v := range r.exceptions {
		originalExceptions[k] = recurrence.NewDateSet(v.Dates()...)
	}
	originalNextId := r.nextId
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.events = originalEvents
		r.exceptions = originalExceptions
		r.nextId = originalNextId
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *RepositoryStub) Store(ctx context.Context, event CalendarEvent) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Id == "" {
		event.Id = fmt.Sprintf("event-%d", r.nextId)
		r.nextId++
	}
	event.Exceptions = nil
	r.events[event.Id] = event
	return event.Id, nil
}

func (r *RepositoryStub) Get(ctx context.Context, id string) (*CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.attachExceptions(&event)
	return &event, nil
}

func (r *RepositoryStub) FindInWindow(ctx context.Context, from, to recurrence.Date) ([]CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []CalendarEvent
	for _, event := range r.events {
		if event.IsRecurring() {
			startsBeforeEnd := !event.Date.After(to)
			rule := event.Recurrence
			endsAfterStart := rule.Until == nil || !rule.Until.Before(from)
			if startsBeforeEnd && endsAfterStart {
				r.attachExceptions(&event)
				result = append(result, event)
			}
			continue
		}
		if !event.Date.Before(from) && !event.Date.After(to) {
			result = append(result, event)
		}
	}
	return result, nil
}

func (r *RepositoryStub) Update(ctx context.Context, event CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[event.Id]; !ok {
		return ErrNotFound
	}
	event.Exceptions = nil
	r.events[event.Id] = event
	return nil
}

func (r *RepositoryStub) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.events, id)
	delete(r.exceptions, id)
	return nil
}

func (r *RepositoryStub) DeleteByParent(ctx context.Context, masterId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, event := range r.events {
		if event.ParentEventId == masterId {
			delete(r.events, id)
			delete(r.exceptions, id)
		}
	}
	return nil
}

func (r *RepositoryStub) FindOverride(ctx context.Context, masterId string, recurrenceDate recurrence.Date) (*CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, event := range r.events {
		if event.ParentEventId == masterId && event.RecurrenceDate == recurrenceDate {
			return &event, nil
		}
	}
	return nil, nil
}

func (r *RepositoryStub) UpsertOverride(ctx context.Context, event CalendarEvent) (string, error) {
	existing, err := r.FindOverride(ctx, event.ParentEventId, event.RecurrenceDate)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing != nil {
		event.Id = existing.Id
	} else if event.Id == "" {
		event.Id = fmt.Sprintf("event-%d", r.nextId)
		r.nextId++
	}
	r.events[event.Id] = event
	return event.Id, nil
}

func (r *RepositoryStub) AddException(ctx context.Context, eventId string, date recurrence.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.exceptions[eventId] == nil {
		r.exceptions[eventId] = recurrence.NewDateSet()
	}
	r.exceptions[eventId].Add(date)
	return nil
}

func (r *RepositoryStub) RemoveException(ctx context.Context, eventId string, date recurrence.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.exceptions[eventId]; s != nil {
		s.Remove(date)
	}
	return nil
}

func (r *RepositoryStub) ListExceptions(ctx context.Context, eventId string) ([]recurrence.Date, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s := r.exceptions[eventId]; s != nil {
		return s.Dates(), nil
	}
	return nil, nil
}

func (r *RepositoryStub) attachExceptions(event *CalendarEvent) {
	if s := r.exceptions[event.Id]; s != nil {
		event.Exceptions = recurrence.NewDateSet(s.Dates()...)
	} else {
		event.Exceptions = recurrence.NewDateSet()
	}
}

// Helper method to get all stored records (useful for test assertions)
func (r *RepositoryStub) GetAllEvents() []CalendarEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CalendarEvent, 0, len(r.events))
	for _, event := range r.events {
		result = append(result, event)
	}
	return result
}
