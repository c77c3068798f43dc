package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/pkg/recurrence"
)

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	Store(ctx context.Context, event CalendarEvent) (string, error)
	Get(ctx context.Context, id string) (*CalendarEvent, error)
	// FindInWindow returns plain events and overrides dated inside [from, to]
	// plus every recurring master whose pattern can intersect the window.
	// Masters come back with their exception sets loaded.
	FindInWindow(ctx context.Context, from, to recurrence.Date) ([]CalendarEvent, error)
	Update(ctx context.Context, event CalendarEvent) error
	Delete(ctx context.Context, id string) error
	// DeleteByParent removes every override referencing the given master.
	DeleteByParent(ctx context.Context, masterId string) error
	// FindOverride looks an override up by the master occurrence date it
	// detaches. Returns nil when none exists.
	FindOverride(ctx context.Context, masterId string, recurrenceDate recurrence.Date) (*CalendarEvent, error)
	// UpsertOverride creates or replaces the override for
	// (event.ParentEventId, event.RecurrenceDate) and returns its id.
	UpsertOverride(ctx context.Context, event CalendarEvent) (string, error)
	AddException(ctx context.Context, eventId string, date recurrence.Date) error
	RemoveException(ctx context.Context, eventId string, date recurrence.Date) error
	ListExceptions(ctx context.Context, eventId string) ([]recurrence.Date, error)
}

type RepositoryImpl struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db, tx: nil}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &RepositoryImpl{db: r.db, tx: tx}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const eventColumns = `id, title, description, event_date, start_time, end_time, location, created_by,
		parent_event_id, recurrence_date, recurrence_type, recurrence_interval, recurrence_days_of_week,
		recurrence_day_of_month, recurrence_week_of_month, recurrence_weekday, recurrence_months,
		recurrence_count, recurrence_until`

func (r *RepositoryImpl) Store(ctx context.Context, event CalendarEvent) (string, error) {
	if event.Id == "" {
		event.Id = uuid.New().String()
	}

	query := `INSERT INTO calendar_event (` + eventColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.getQueryer().ExecContext(ctx, query, insertArgs(event)...)
	if err != nil {
		err := fmt.Errorf("could not store event: %w", err)
		log.Error(err)
		return "", err
	}
	return event.Id, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, id string) (*CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_event WHERE id = $1`

	row := r.getQueryer().QueryRowContext(ctx, query, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		err := fmt.Errorf("could not load event %s: %w", id, err)
		log.Error(err)
		return nil, err
	}

	if event.IsRecurring() {
		if err := r.loadExceptions(ctx, &event); err != nil {
			return nil, err
		}
	}
	return &event, nil
}

func (r *RepositoryImpl) FindInWindow(ctx context.Context, from, to recurrence.Date) ([]CalendarEvent, error) {
	// ISO dates compare lexicographically, so plain text comparison is safe.
	query := `SELECT ` + eventColumns + ` FROM calendar_event
			WHERE (recurrence_type IS NULL AND event_date >= $1 AND event_date <= $2)
			   OR (recurrence_type IS NOT NULL AND event_date <= $3
					AND (recurrence_until IS NULL OR recurrence_until >= $4))
			ORDER BY event_date`

	rows, err := r.getQueryer().QueryContext(ctx, query, from.String(), to.String(), to.String(), from.String())
	if err != nil {
		err := fmt.Errorf("could not query events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]CalendarEvent, 0, 10)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		if events[i].IsRecurring() {
			if err := r.loadExceptions(ctx, &events[i]); err != nil {
				return nil, err
			}
		}
	}
	return events, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, event CalendarEvent) error {
	query := `UPDATE calendar_event SET
				title = $1, description = $2, event_date = $3, start_time = $4, end_time = $5,
				location = $6, created_by = $7, parent_event_id = $8, recurrence_date = $9,
				recurrence_type = $10, recurrence_interval = $11, recurrence_days_of_week = $12,
				recurrence_day_of_month = $13, recurrence_week_of_month = $14, recurrence_weekday = $15,
				recurrence_months = $16, recurrence_count = $17, recurrence_until = $18
			WHERE id = $19`

	args := insertArgs(event)
	// move the id to the end to match the placeholder order
	args = append(args[1:], args[0])
	result, err := r.getQueryer().ExecContext(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not update event %s: %w", event.Id, err)
		log.Error(err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id string) error {
	result, err := r.getQueryer().ExecContext(ctx, `DELETE FROM calendar_event WHERE id = $1`, id)
	if err != nil {
		err := fmt.Errorf("could not delete event %s: %w", id, err)
		log.Error(err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepositoryImpl) DeleteByParent(ctx context.Context, masterId string) error {
	_, err := r.getQueryer().ExecContext(ctx, `DELETE FROM calendar_event WHERE parent_event_id = $1`, masterId)
	if err != nil {
		err := fmt.Errorf("could not delete overrides of %s: %w", masterId, err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) FindOverride(ctx context.Context, masterId string, recurrenceDate recurrence.Date) (*CalendarEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM calendar_event
			WHERE parent_event_id = $1 AND recurrence_date = $2`

	row := r.getQueryer().QueryRowContext(ctx, query, masterId, recurrenceDate.String())
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		err := fmt.Errorf("could not load override of %s at %s: %w", masterId, recurrenceDate, err)
		log.Error(err)
		return nil, err
	}
	return &event, nil
}

func (r *RepositoryImpl) UpsertOverride(ctx context.Context, event CalendarEvent) (string, error) {
	if event.Id == "" {
		event.Id = uuid.New().String()
	}

	query := `INSERT INTO calendar_event (` + eventColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			ON CONFLICT (parent_event_id, recurrence_date) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				event_date = excluded.event_date,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				location = excluded.location
			RETURNING id`

	var id string
	if err := r.getQueryer().QueryRowContext(ctx, query, insertArgs(event)...).Scan(&id); err != nil {
		err := fmt.Errorf("could not upsert override of %s at %s: %w", event.ParentEventId, event.RecurrenceDate, err)
		log.Error(err)
		return "", err
	}
	return id, nil
}

func (r *RepositoryImpl) AddException(ctx context.Context, eventId string, date recurrence.Date) error {
	query := `INSERT INTO event_exception (event_id, exception_date) VALUES ($1, $2)
			ON CONFLICT (event_id, exception_date) DO NOTHING`

	_, err := r.getQueryer().ExecContext(ctx, query, eventId, date.String())
	if err != nil {
		err := fmt.Errorf("could not add exception %s to %s: %w", date, eventId, err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) RemoveException(ctx context.Context, eventId string, date recurrence.Date) error {
	query := `DELETE FROM event_exception WHERE event_id = $1 AND exception_date = $2`

	_, err := r.getQueryer().ExecContext(ctx, query, eventId, date.String())
	if err != nil {
		err := fmt.Errorf("could not remove exception %s from %s: %w", date, eventId, err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) ListExceptions(ctx context.Context, eventId string) ([]recurrence.Date, error) {
	query := `SELECT exception_date FROM event_exception WHERE event_id = $1 ORDER BY exception_date`

	rows, err := r.getQueryer().QueryContext(ctx, query, eventId)
	if err != nil {
		err := fmt.Errorf("could not query exceptions of %s: %w", eventId, err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	var out []recurrence.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("could not scan exception row: %w", err)
		}
		d, err := recurrence.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("stored exception date is corrupt: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *RepositoryImpl) loadExceptions(ctx context.Context, event *CalendarEvent) error {
	dates, err := r.ListExceptions(ctx, event.Id)
	if err != nil {
		return err
	}
	event.Exceptions = recurrence.NewDateSet(dates...)
	return nil
}

// insertArgs flattens an event into the column order of eventColumns.
func insertArgs(event CalendarEvent) []interface{} {
	args := []interface{}{
		event.Id,
		event.Title,
		event.Description,
		event.Date.String(),
		nullableString(event.StartTime),
		nullableString(event.EndTime),
		event.Location,
		event.CreatedBy,
		nullableString(event.ParentEventId),
	}
	if event.RecurrenceDate.IsZero() {
		args = append(args, nil)
	} else {
		args = append(args, event.RecurrenceDate.String())
	}
	if rule := event.Recurrence; rule != nil {
		args = append(args,
			string(rule.Type),
			rule.Interval,
			nullableString(encodeWeekdays(rule.DaysOfWeek)),
			rule.DayOfMonth,
			rule.WeekOfMonth,
			nullableString(rule.WeekdayOfMonth),
			nullableString(encodeMonths(rule.Months)),
			rule.Count,
		)
		if rule.Until != nil {
			args = append(args, rule.Until.String())
		} else {
			args = append(args, nil)
		}
	} else {
		args = append(args, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	}
	return args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row scanner) (CalendarEvent, error) {
	var (
		event                                  CalendarEvent
		dateStr                                string
		startTime, endTime, parentId           sql.NullString
		recurrenceDate                         sql.NullString
		ruleType, daysOfWeek, weekday, months  sql.NullString
		until                                  sql.NullString
		interval, dayOfMonth, weekOfMonth, cnt sql.NullInt64
	)
	err := row.Scan(
		&event.Id, &event.Title, &event.Description, &dateStr, &startTime, &endTime,
		&event.Location, &event.CreatedBy, &parentId, &recurrenceDate,
		&ruleType, &interval, &daysOfWeek, &dayOfMonth, &weekOfMonth, &weekday, &months, &cnt, &until,
	)
	if err != nil {
		return CalendarEvent{}, err
	}

	event.Date, err = recurrence.ParseDate(dateStr)
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("stored event date is corrupt: %w", err)
	}
	event.StartTime = startTime.String
	event.EndTime = endTime.String
	event.ParentEventId = parentId.String
	if recurrenceDate.Valid {
		event.RecurrenceDate, err = recurrence.ParseDate(recurrenceDate.String)
		if err != nil {
			return CalendarEvent{}, fmt.Errorf("stored recurrence date is corrupt: %w", err)
		}
	}

	if ruleType.Valid {
		rule := recurrence.Rule{
			Type:           recurrence.Type(ruleType.String),
			Interval:       int(interval.Int64),
			DayOfMonth:     int(dayOfMonth.Int64),
			WeekOfMonth:    int(weekOfMonth.Int64),
			WeekdayOfMonth: weekday.String,
			Count:          int(cnt.Int64),
		}
		if rule.DaysOfWeek, err = decodeWeekdays(daysOfWeek.String); err != nil {
			return CalendarEvent{}, err
		}
		if rule.Months, err = decodeMonths(months.String); err != nil {
			return CalendarEvent{}, err
		}
		if until.Valid {
			d, err := recurrence.ParseDate(until.String)
			if err != nil {
				return CalendarEvent{}, fmt.Errorf("stored until date is corrupt: %w", err)
			}
			rule.Until = &d
		}
		event.Recurrence = &rule
	}
	return event, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeWeekdays(days []time.Weekday) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, recurrence.WeekdayName(d))
	}
	return strings.Join(names, ",")
}

func decodeWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		wd, err := recurrence.ParseWeekday(p)
		if err != nil {
			return nil, fmt.Errorf("stored daysOfWeek is corrupt: %w", err)
		}
		out = append(out, wd)
	}
	return out, nil
}

func encodeMonths(months []time.Month) string {
	parts := make([]string, 0, len(months))
	for _, m := range months {
		parts = append(parts, strconv.Itoa(int(m)))
	}
	return strings.Join(parts, ",")
}

func decodeMonths(s string) ([]time.Month, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]time.Month, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("stored months is corrupt: %w", err)
		}
		out = append(out, time.Month(n))
	}
	return out, nil
}
