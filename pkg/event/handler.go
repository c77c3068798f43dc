package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/internal/rest"
	"github.com/teamcal/teamcal/internal/utils"
	"github.com/teamcal/teamcal/pkg/recurrence"
	"github.com/teamcal/teamcal/pkg/user"
)

type Handler struct {
	service *Service
	clock   utils.Clock
}

func NewHandler(service *Service, clock utils.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

type EventDTO struct {
	Id            string         `json:"id,omitempty"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Date          string         `json:"date"`
	StartTime     string         `json:"startTime,omitempty"`
	EndTime       string         `json:"endTime,omitempty"`
	Location      string         `json:"location,omitempty"`
	CreatedBy     string         `json:"createdBy,omitempty"`
	ParentEventId string         `json:"parentEventId,omitempty"`
	Recurrence    *RecurrenceDTO `json:"recurrence,omitempty"`
}

type RecurrenceDTO struct {
	Type                string   `json:"type"`
	Interval            int      `json:"interval,omitempty"`
	DaysOfWeek          []string `json:"daysOfWeek,omitempty"`
	DayOfMonth          int      `json:"dayOfMonth,omitempty"`
	WeekOfMonth         int      `json:"weekOfMonth,omitempty"`
	DayOfWeek           string   `json:"dayOfWeek,omitempty"`
	Months              []int    `json:"months,omitempty"`
	EndAfterOccurrences int      `json:"endAfterOccurrences,omitempty"`
	EndDate             string   `json:"endDate,omitempty"`
	Exceptions          []string `json:"exceptions,omitempty"`
}

// UpdateEventDTO carries the dispatch flags of an update: a whole-series edit
// or a single-occurrence edit anchored at originalInstanceDate.
type UpdateEventDTO struct {
	EventDTO
	UpdateSeries         bool   `json:"updateSeries,omitempty"`
	OriginalInstanceDate string `json:"originalInstanceDate,omitempty"`
}

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	from, to, err := h.windowFromQuery(r)
	if err != nil {
		writeBadRequest(w, "Invalid date range", err.Error())
		return
	}

	events, err := h.service.List(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating calendar event")
	w.Header().Set("Content-Type", "application/json")

	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := dtoToEvent(dto)
	if err != nil {
		h.respondError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), event)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(eventToDTO(*created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["eventId"]
	event, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eventToDTO(*event)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["eventId"]
	var dto UpdateEventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fields, err := dtoToEvent(dto.EventDTO)
	if err != nil {
		h.respondError(w, err)
		return
	}

	var updated *CalendarEvent
	if dto.OriginalInstanceDate != "" && !dto.UpdateSeries {
		originalDate, err := recurrence.ParseDate(dto.OriginalInstanceDate)
		if err != nil {
			writeBadRequest(w, "Invalid originalInstanceDate format", "'originalInstanceDate' must be YYYY-MM-DD")
			return
		}
		updated, err = h.service.UpdateInstance(r.Context(), id, originalDate, fields)
		if err != nil {
			h.respondError(w, err)
			return
		}
	} else {
		updated, err = h.service.UpdateSeries(r.Context(), id, fields)
		if err != nil {
			h.respondError(w, err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eventToDTO(*updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["eventId"]
	if dateStr := r.URL.Query().Get("occurrenceDate"); dateStr != "" {
		date, err := recurrence.ParseDate(dateStr)
		if err != nil {
			writeBadRequest(w, "Invalid occurrenceDate format", "'occurrenceDate' must be YYYY-MM-DD")
			return
		}
		if err := h.service.DeleteInstance(r.Context(), id, date); err != nil {
			h.respondError(w, err)
			return
		}
	} else {
		if err := h.service.DeleteSeries(r.Context(), id); err != nil {
			h.respondError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type exceptionDTO struct {
	Date string `json:"date"`
}

func (h *Handler) AddException(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["eventId"]
	var dto exceptionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := recurrence.ParseDate(dto.Date)
	if err != nil {
		writeBadRequest(w, "Invalid date format", "'date' must be YYYY-MM-DD")
		return
	}

	if err := h.service.AddException(r.Context(), id, date); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveException(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["eventId"]
	date, err := recurrence.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeBadRequest(w, "Invalid date format", "'date' must be YYYY-MM-DD")
		return
	}

	if err := h.service.RemoveException(r.Context(), id, date); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// windowFromQuery reads the from/to query parameters, defaulting to the
// current calendar month when absent.
func (h *Handler) windowFromQuery(r *http.Request) (recurrence.Date, recurrence.Date, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	now := h.clock.Now()
	from := recurrence.Date{Year: now.Year(), Month: now.Month(), Day: 1}
	to := recurrence.Date{Year: now.Year(), Month: now.Month(), Day: recurrence.DaysInMonth(now.Year(), now.Month())}

	var err error
	if fromStr != "" {
		if from, err = recurrence.ParseDate(fromStr); err != nil {
			return recurrence.Date{}, recurrence.Date{}, errors.New("'from' must be YYYY-MM-DD")
		}
	}
	if toStr != "" {
		if to, err = recurrence.ParseDate(toStr); err != nil {
			return recurrence.Date{}, recurrence.Date{}, errors.New("'to' must be YYYY-MM-DD")
		}
	}
	if to.Before(from) {
		return recurrence.Date{}, recurrence.Date{}, errors.New("'to' must not precede 'from'")
	}
	return from, to, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var vErr *recurrence.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeBadRequest(w, vErr.Field, vErr.Message)
	case errors.Is(err, ErrNotRecurring):
		writeBadRequest(w, "Event is not recurring", "single-occurrence operations require a recurring event")
	case errors.Is(err, ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		if encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Event not found"}); encodeErr != nil {
			http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
		}
	case errors.Is(err, user.ErrNoUser):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		log.Errorf("calendar request failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeBadRequest(w http.ResponseWriter, message, details string) {
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(rest.ErrorResponse{Error: message, Details: details}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func eventToDTO(e CalendarEvent) EventDTO {
	dto := EventDTO{
		Id:            e.Id,
		Title:         e.Title,
		Description:   e.Description,
		Date:          e.Date.String(),
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Location:      e.Location,
		CreatedBy:     e.CreatedBy,
		ParentEventId: e.ParentEventId,
	}
	if rule := e.Recurrence; rule != nil {
		rDTO := &RecurrenceDTO{
			Type:                string(rule.Type),
			Interval:            rule.Interval,
			DayOfMonth:          rule.DayOfMonth,
			WeekOfMonth:         rule.WeekOfMonth,
			DayOfWeek:           rule.WeekdayOfMonth,
			EndAfterOccurrences: rule.Count,
		}
		for _, wd := range rule.DaysOfWeek {
			rDTO.DaysOfWeek = append(rDTO.DaysOfWeek, recurrence.WeekdayName(wd))
		}
		for _, m := range rule.Months {
			rDTO.Months = append(rDTO.Months, int(m))
		}
		if rule.Until != nil {
			rDTO.EndDate = rule.Until.String()
		}
		for _, d := range e.Exceptions.Dates() {
			rDTO.Exceptions = append(rDTO.Exceptions, d.String())
		}
		dto.Recurrence = rDTO
	}
	return dto
}

func dtoToEvent(dto EventDTO) (CalendarEvent, error) {
	if dto.Title == "" {
		return CalendarEvent{}, &recurrence.ValidationError{Field: "title", Message: "title is required"}
	}
	date, err := recurrence.ParseDate(dto.Date)
	if err != nil {
		return CalendarEvent{}, &recurrence.ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"}
	}
	if dto.StartTime != "" && !timePattern.MatchString(dto.StartTime) {
		return CalendarEvent{}, &recurrence.ValidationError{Field: "startTime", Message: "startTime must be HH:MM"}
	}
	if dto.EndTime != "" && !timePattern.MatchString(dto.EndTime) {
		return CalendarEvent{}, &recurrence.ValidationError{Field: "endTime", Message: "endTime must be HH:MM"}
	}

	event := CalendarEvent{
		Id:          dto.Id,
		Title:       dto.Title,
		Description: dto.Description,
		Date:        date,
		StartTime:   dto.StartTime,
		EndTime:     dto.EndTime,
		Location:    dto.Location,
	}
	if dto.Recurrence != nil {
		rule, err := dtoToRule(*dto.Recurrence)
		if err != nil {
			return CalendarEvent{}, err
		}
		event.Recurrence = &rule

		if len(dto.Recurrence.Exceptions) > 0 {
			event.Exceptions = recurrence.NewDateSet()
			for _, s := range dto.Recurrence.Exceptions {
				d, err := recurrence.ParseDate(s)
				if err != nil {
					return CalendarEvent{}, &recurrence.ValidationError{Field: "recurrence.exceptions", Message: "exception dates must be YYYY-MM-DD"}
				}
				event.Exceptions.Add(d)
			}
		}
	}
	return event, nil
}

func dtoToRule(dto RecurrenceDTO) (recurrence.Rule, error) {
	rule := recurrence.Rule{
		Type:           recurrence.Type(dto.Type),
		Interval:       dto.Interval,
		DayOfMonth:     dto.DayOfMonth,
		WeekOfMonth:    dto.WeekOfMonth,
		WeekdayOfMonth: dto.DayOfWeek,
		Count:          dto.EndAfterOccurrences,
	}
	for _, name := range dto.DaysOfWeek {
		wd, err := recurrence.ParseWeekday(name)
		if err != nil {
			return recurrence.Rule{}, &recurrence.ValidationError{Field: "recurrence.daysOfWeek", Message: err.Error()}
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, wd)
	}
	for _, m := range dto.Months {
		rule.Months = append(rule.Months, time.Month(m))
	}
	if dto.EndDate != "" {
		until, err := recurrence.ParseDate(dto.EndDate)
		if err != nil {
			return recurrence.Rule{}, &recurrence.ValidationError{Field: "recurrence.endDate", Message: "endDate must be YYYY-MM-DD"}
		}
		rule.Until = &until
	}
	return recurrence.Validate(rule)
}
