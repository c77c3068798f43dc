package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamcal/teamcal/internal/utils"
	"github.com/teamcal/teamcal/pkg/user"
)

func contextWithUserId(ctx context.Context, userId string) context.Context {
	return user.WithId(ctx, userId)
}

// Test setup helper
func setupHandlerTest(t *testing.T) *Handler {
	repo := NewRepositoryStub()
	service := NewService(repo, nil)
	clock := &utils.MockClock{FixedNow: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
	return NewHandler(service, clock)
}

// Helper to create test events through the handler
func addTestEvent(t *testing.T, handler *Handler, userId string, dto EventDTO) EventDTO {
	body, err := json.Marshal(dto)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/calendar/event", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.CreateEvent(w, req.WithContext(contextWithUserId(req.Context(), userId)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created EventDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	return created
}

func weeklyMondaysDTO() EventDTO {
	return EventDTO{
		Title:     "Weekly sync",
		Date:      "2025-01-06",
		StartTime: "10:00",
		EndTime:   "11:00",
		Recurrence: &RecurrenceDTO{
			Type:       "weekly",
			Interval:   1,
			DaysOfWeek: []string{"monday"},
		},
	}
}

func listEventDates(t *testing.T, handler *Handler, from, to string) []string {
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/calendar/event?from=%s&to=%s", from, to), nil)
	w := httptest.NewRecorder()
	handler.ListEvents(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var dtos []EventDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dtos))
	dates := make([]string, len(dtos))
	for i, d := range dtos {
		dates[i] = d.Date
	}
	return dates
}

func TestListEvents_InvalidFromDate(t *testing.T) {
	handler := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/event?from=invalid-date&to=2025-01-31", nil)
	w := httptest.NewRecorder()

	handler.ListEvents(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResponse struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	err := json.NewDecoder(w.Body).Decode(&errResponse)
	assert.NoError(t, err)
	assert.Contains(t, errResponse.Error, "Invalid date range")
	assert.Contains(t, errResponse.Details, "YYYY-MM-DD")
}

func TestListEvents_ToBeforeFrom(t *testing.T) {
	handler := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/event?from=2025-02-01&to=2025-01-01", nil)
	w := httptest.NewRecorder()

	handler.ListEvents(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEvents_DefaultsToCurrentMonth(t *testing.T) {
	handler := setupHandlerTest(t)
	addTestEvent(t, handler, "alice", weeklyMondaysDTO())

	// MockClock pins "now" to 2025-01-15, so the default window is January 2025
	req := httptest.NewRequest(http.MethodGet, "/api/calendar/event", nil)
	w := httptest.NewRecorder()
	handler.ListEvents(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var dtos []EventDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dtos))
	assert.Len(t, dtos, 4)
}

func TestListEvents_ExpandsRecurrence(t *testing.T) {
	handler := setupHandlerTest(t)
	addTestEvent(t, handler, "alice", weeklyMondaysDTO())

	dates := listEventDates(t, handler, "2025-01-01", "2025-01-31")

	assert.Equal(t, []string{"2025-01-06", "2025-01-13", "2025-01-20", "2025-01-27"}, dates)
}

func TestCreateEvent(t *testing.T) {
	t.Run("plain event", func(t *testing.T) {
		handler := setupHandlerTest(t)

		created := addTestEvent(t, handler, "alice", EventDTO{
			Title: "One-off",
			Date:  "2025-01-06",
		})

		assert.NotEmpty(t, created.Id)
		assert.Equal(t, "alice", created.CreatedBy)
		assert.Nil(t, created.Recurrence)
	})

	t.Run("recurring event echoes normalized rule", func(t *testing.T) {
		handler := setupHandlerTest(t)

		dto := weeklyMondaysDTO()
		dto.Recurrence.Interval = 0 // defaulted on create
		created := addTestEvent(t, handler, "alice", dto)

		require.NotNil(t, created.Recurrence)
		assert.Equal(t, 1, created.Recurrence.Interval)
		assert.Equal(t, []string{"monday"}, created.Recurrence.DaysOfWeek)
	})

	t.Run("exceptions in the rule are honored", func(t *testing.T) {
		handler := setupHandlerTest(t)

		dto := weeklyMondaysDTO()
		dto.Recurrence.Exceptions = []string{"2025-01-13"}
		created := addTestEvent(t, handler, "alice", dto)

		require.NotNil(t, created.Recurrence)
		assert.Equal(t, []string{"2025-01-13"}, created.Recurrence.Exceptions)

		dates := listEventDates(t, handler, "2025-01-01", "2025-01-31")
		assert.Equal(t, []string{"2025-01-06", "2025-01-20", "2025-01-27"}, dates)
	})

	t.Run("invalid exception date", func(t *testing.T) {
		handler := setupHandlerTest(t)

		dto := weeklyMondaysDTO()
		dto.Recurrence.Exceptions = []string{"13/01/2025"}
		body, _ := json.Marshal(dto)
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.CreateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing title", func(t *testing.T) {
		handler := setupHandlerTest(t)

		body, _ := json.Marshal(EventDTO{Date: "2025-01-06"})
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.CreateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid date format", func(t *testing.T) {
		handler := setupHandlerTest(t)

		body, _ := json.Marshal(EventDTO{Title: "Bad date", Date: "06/01/2025"})
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.CreateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid time format", func(t *testing.T) {
		handler := setupHandlerTest(t)

		body, _ := json.Marshal(EventDTO{Title: "Bad time", Date: "2025-01-06", StartTime: "25:00"})
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.CreateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("custom recurrence type rejected", func(t *testing.T) {
		handler := setupHandlerTest(t)

		body, _ := json.Marshal(EventDTO{
			Title:      "Custom",
			Date:       "2025-01-06",
			Recurrence: &RecurrenceDTO{Type: "custom"},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.CreateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no user in context", func(t *testing.T) {
		handler := setupHandlerTest(t)

		body, _ := json.Marshal(EventDTO{Title: "No user", Date: "2025-01-06"})
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		handler.CreateEvent(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGetEvent(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		handler := setupHandlerTest(t)
		created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

		req := httptest.NewRequest(http.MethodGet, "/api/calendar/event/"+created.Id, nil)
		req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
		w := httptest.NewRecorder()
		handler.GetEvent(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got EventDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, created.Id, got.Id)
		assert.Equal(t, "Weekly sync", got.Title)
	})

	t.Run("not found", func(t *testing.T) {
		handler := setupHandlerTest(t)

		req := httptest.NewRequest(http.MethodGet, "/api/calendar/event/missing", nil)
		req = mux.SetURLVars(req, map[string]string{"eventId": "missing"})
		w := httptest.NewRecorder()
		handler.GetEvent(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateEvent_Series(t *testing.T) {
	handler := setupHandlerTest(t)
	created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

	update := UpdateEventDTO{
		EventDTO: EventDTO{
			Title: "Weekly sync (new room)",
			Date:  "2025-01-06",
			Recurrence: &RecurrenceDTO{
				Type:       "weekly",
				DaysOfWeek: []string{"tuesday"},
			},
		},
		UpdateSeries: true,
	}
	body, err := json.Marshal(update)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/calendar/event/"+created.Id, bytes.NewBuffer(body))
	req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
	w := httptest.NewRecorder()
	handler.UpdateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated EventDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, created.Id, updated.Id)
	assert.Equal(t, "Weekly sync (new room)", updated.Title)

	dates := listEventDates(t, handler, "2025-01-01", "2025-01-31")
	assert.Equal(t, []string{"2025-01-07", "2025-01-14", "2025-01-21", "2025-01-28"}, dates)
}

func TestUpdateEvent_SingleInstance(t *testing.T) {
	handler := setupHandlerTest(t)
	created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

	update := UpdateEventDTO{
		EventDTO: EventDTO{
			Title:     "Makeup session",
			Date:      "2025-01-15",
			StartTime: "10:00",
			EndTime:   "11:00",
		},
		OriginalInstanceDate: "2025-01-13",
	}
	body, err := json.Marshal(update)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/calendar/event/"+created.Id, bytes.NewBuffer(body))
	req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
	w := httptest.NewRecorder()
	handler.UpdateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var override EventDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&override))
	assert.Equal(t, created.Id, override.ParentEventId)
	assert.Equal(t, "2025-01-15", override.Date)

	dates := listEventDates(t, handler, "2025-01-01", "2025-01-31")
	assert.Equal(t, []string{"2025-01-06", "2025-01-15", "2025-01-20", "2025-01-27"}, dates)
}

func TestUpdateEvent_InvalidOriginalInstanceDate(t *testing.T) {
	handler := setupHandlerTest(t)
	created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

	update := UpdateEventDTO{
		EventDTO:             EventDTO{Title: "Edit", Date: "2025-01-15"},
		OriginalInstanceDate: "13-01-2025",
	}
	body, err := json.Marshal(update)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/calendar/event/"+created.Id, bytes.NewBuffer(body))
	req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
	w := httptest.NewRecorder()
	handler.UpdateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateEvent_SingleInstanceOfPlainEvent(t *testing.T) {
	handler := setupHandlerTest(t)
	created := addTestEvent(t, handler, "alice", EventDTO{Title: "One-off", Date: "2025-01-06"})

	update := UpdateEventDTO{
		EventDTO:             EventDTO{Title: "Edit", Date: "2025-01-07"},
		OriginalInstanceDate: "2025-01-06",
	}
	body, err := json.Marshal(update)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/calendar/event/"+created.Id, bytes.NewBuffer(body))
	req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
	w := httptest.NewRecorder()
	handler.UpdateEvent(w, req.WithContext(contextWithUserId(req.Context(), "alice")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteEvent_Series(t *testing.T) {
	handler := setupHandlerTest(t)
	created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

	req := httptest.NewRequest(http.MethodDelete, "/api/calendar/event/"+created.Id, nil)
	req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
	w := httptest.NewRecorder()
	handler.DeleteEvent(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, listEventDates(t, handler, "2025-01-01", "2025-01-31"))
}

func TestDeleteEvent_SingleOccurrence(t *testing.T) {
	handler := setupHandlerTest(t)
	created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

	req := httptest.NewRequest(http.MethodDelete, "/api/calendar/event/"+created.Id+"?occurrenceDate=2025-01-13", nil)
	req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
	w := httptest.NewRecorder()
	handler.DeleteEvent(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	dates := listEventDates(t, handler, "2025-01-01", "2025-01-31")
	assert.Equal(t, []string{"2025-01-06", "2025-01-20", "2025-01-27"}, dates)
}

func TestDeleteEvent_InvalidOccurrenceDate(t *testing.T) {
	handler := setupHandlerTest(t)
	created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

	req := httptest.NewRequest(http.MethodDelete, "/api/calendar/event/"+created.Id+"?occurrenceDate=not-a-date", nil)
	req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
	w := httptest.NewRecorder()
	handler.DeleteEvent(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExceptionEndpoints(t *testing.T) {
	t.Run("add and remove", func(t *testing.T) {
		handler := setupHandlerTest(t)
		created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

		body, _ := json.Marshal(exceptionDTO{Date: "2025-01-13"})
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event/"+created.Id+"/exception", bytes.NewBuffer(body))
		req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
		w := httptest.NewRecorder()
		handler.AddException(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"2025-01-06", "2025-01-20", "2025-01-27"},
			listEventDates(t, handler, "2025-01-01", "2025-01-31"))

		req = httptest.NewRequest(http.MethodDelete, "/api/calendar/event/"+created.Id+"/exception?date=2025-01-13", nil)
		req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
		w = httptest.NewRecorder()
		handler.RemoveException(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"2025-01-06", "2025-01-13", "2025-01-20", "2025-01-27"},
			listEventDates(t, handler, "2025-01-01", "2025-01-31"))
	})

	t.Run("invalid date in body", func(t *testing.T) {
		handler := setupHandlerTest(t)
		created := addTestEvent(t, handler, "alice", weeklyMondaysDTO())

		body, _ := json.Marshal(exceptionDTO{Date: "January 13"})
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event/"+created.Id+"/exception", bytes.NewBuffer(body))
		req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
		w := httptest.NewRecorder()
		handler.AddException(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("exception on plain event", func(t *testing.T) {
		handler := setupHandlerTest(t)
		created := addTestEvent(t, handler, "alice", EventDTO{Title: "One-off", Date: "2025-01-06"})

		body, _ := json.Marshal(exceptionDTO{Date: "2025-01-06"})
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/event/"+created.Id+"/exception", bytes.NewBuffer(body))
		req = mux.SetURLVars(req, map[string]string{"eventId": created.Id})
		w := httptest.NewRecorder()
		handler.AddException(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
