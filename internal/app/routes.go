package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Calendar events
	r.HandleFunc("/api/calendar/event", deps.EventHandler.ListEvents).Methods("GET")
	r.HandleFunc("/api/calendar/event", deps.EventHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/calendar/event/{eventId}", deps.EventHandler.GetEvent).Methods("GET")
	r.HandleFunc("/api/calendar/event/{eventId}", deps.EventHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/calendar/event/{eventId}", deps.EventHandler.DeleteEvent).Methods("DELETE")

	// Exception set
	r.HandleFunc("/api/calendar/event/{eventId}/exception", deps.EventHandler.AddException).Methods("POST")
	r.HandleFunc("/api/calendar/event/{eventId}/exception", deps.EventHandler.RemoveException).Queries("date", "{date}").Methods("DELETE")
}
