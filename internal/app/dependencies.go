package app

import (
	"database/sql"

	"github.com/teamcal/teamcal/internal/event_bus"
	"github.com/teamcal/teamcal/internal/utils"
	"github.com/teamcal/teamcal/pkg/event"
	"github.com/teamcal/teamcal/pkg/notification"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Bus      *event_bus.EventBus
	Notifier *notification.Notifier

	EventRepository *event.RepositoryImpl
	EventService    *event.Service
	EventHandler    *event.Handler

	Clock utils.Clock
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *sql.DB) *Dependencies {
	deps := &Dependencies{}

	deps.Bus = event_bus.NewEventBus()
	deps.Notifier = notification.NewNotifier(deps.Bus)

	deps.Clock = &utils.SystemClock{}

	deps.EventRepository = event.NewRepository(db)
	deps.EventService = event.NewService(deps.EventRepository, deps.Bus)
	deps.EventHandler = event.NewHandler(deps.EventService, deps.Clock)

	return deps
}
