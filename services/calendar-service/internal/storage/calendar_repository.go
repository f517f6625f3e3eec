package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/huddlecal/huddle/libs/db"
	"github.com/huddlecal/huddle/services/calendar-service/internal/model"
	"github.com/huddlecal/huddle/services/calendar-service/internal/outbox"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

type CalendarRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewCalendarRepository(pool *db.Pool, outboxRepo *outbox.Repository) *CalendarRepository {
	return &CalendarRepository{pool: pool, outbox: outboxRepo}
}

const calendarColumns = `
	id::text, host_id, title, description, calendar_type, start_date, end_date, start_hour, end_hour,
	excluded_weekdays, excluded_dates, deadline, time_zone, status,
	final_start, final_end, confirmed_participant_ids, confirmation_metadata, confirmed_at,
	created_at, updated_at`

func (r *CalendarRepository) CreateCalendar(ctx context.Context, c *model.Calendar) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Definition.ID = c.ID
	c.Status = model.StatusOpen
	p := definitionParams(c.Definition)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO calendars
			(id, host_id, title, description, calendar_type, start_date, end_date, start_hour, end_hour,
			 excluded_weekdays, excluded_dates, deadline, time_zone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, c.ID, c.HostID, c.Title, c.Description, p.typ, p.startDate, p.endDate, p.startHour, p.endHour,
		p.weekdays, p.dates, c.Definition.Deadline, c.Definition.TimeZone).Scan(&c.CreatedAt, &c.UpdatedAt)
	return translate(err)
}

func (r *CalendarRepository) GetCalendar(ctx context.Context, id string) (model.Calendar, error) {
	c, err := scanCalendar(r.pool.QueryRow(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = $1`, id))
	return c, translate(err)
}

// UpdateCalendar stores the edited definition and, in the same transaction,
// the pruned availability from plan. It fails with ErrConflict unless the
// calendar is still open.
func (r *CalendarRepository) UpdateCalendar(ctx context.Context, c model.Calendar, plan model.EditPlan) error {
	p := definitionParams(c.Definition)
	return translate(r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE calendars
			SET title = $2, description = $3, calendar_type = $4, start_date = $5, end_date = $6,
				start_hour = $7, end_hour = $8, excluded_weekdays = $9, excluded_dates = $10,
				deadline = $11, time_zone = $12, updated_at = now()
			WHERE id = $1 AND status = 'open'
		`, c.ID, c.Title, c.Description, p.typ, p.startDate, p.endDate, p.startHour, p.endHour,
			p.weekdays, p.dates, c.Definition.Deadline, c.Definition.TimeZone)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		if len(plan.Conflicts) == 0 {
			return nil
		}

		purged := make([]string, 0, len(plan.Availability))
		for pid, availability := range plan.Availability {
			if err := setAvailability(ctx, tx, c.ID, pid, availability); err != nil {
				return err
			}
			purged = append(purged, pid)
		}
		evt, err := outbox.NewCalendarEvent(outbox.EventAvailabilityPurged, c.ID, outbox.AvailabilityPurged{
			CalendarID:     c.ID,
			ParticipantIDs: purged,
			TypeChanged:    plan.Conflicts[0].Wiped,
		})
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	}))
}

// Confirm locks in conf and queues the confirmation event atomically.
func (r *CalendarRepository) Confirm(ctx context.Context, calendarID string, conf model.Confirmation) error {
	metadata, err := json.Marshal(conf.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return translate(r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var hostID string
		err := tx.QueryRow(ctx, `
			UPDATE calendars
			SET status = 'confirmed', final_start = $2, final_end = $3, confirmed_participant_ids = $4,
				confirmation_metadata = $5, confirmed_at = $6, updated_at = now()
			WHERE id = $1 AND status <> 'confirmed'
			RETURNING host_id
		`, calendarID, conf.Start, conf.End, conf.ParticipantIDs, metadata, conf.ConfirmedAt).Scan(&hostID)
		if err != nil {
			if IsNotFound(err) {
				return ErrConflict
			}
			return err
		}
		evt, err := outbox.NewCalendarEvent(outbox.EventMeetingConfirmed, calendarID, outbox.MeetingConfirmed{
			CalendarID:     calendarID,
			HostID:         hostID,
			FinalStart:     conf.Start,
			FinalEnd:       conf.End,
			ParticipantIDs: conf.ParticipantIDs,
			Metadata:       conf.Metadata,
		})
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	}))
}

// CloseExpired closes every open calendar whose deadline is at or before now
// and queues one deadline event per calendar. It returns the closed ids.
func (r *CalendarRepository) CloseExpired(ctx context.Context, now time.Time) ([]string, error) {
	var closed []string
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE calendars
			SET status = 'closed', updated_at = now()
			WHERE status = 'open' AND deadline IS NOT NULL AND deadline <= $1
			RETURNING id::text, host_id, deadline
		`, now)
		if err != nil {
			return err
		}
		expired, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.DeadlineReached, error) {
			var d outbox.DeadlineReached
			err := row.Scan(&d.CalendarID, &d.HostID, &d.Deadline)
			return d, err
		})
		if err != nil {
			return err
		}
		for _, d := range expired {
			evt, err := outbox.NewCalendarEvent(outbox.EventDeadlineReached, d.CalendarID, d)
			if err != nil {
				return err
			}
			if err := r.outbox.Insert(ctx, tx, evt); err != nil {
				return err
			}
			closed = append(closed, d.CalendarID)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return closed, nil
}

type defParams struct {
	typ                string
	startDate, endDate time.Time
	startHour, endHour *int32
	weekdays           []int32
	dates              []time.Time
}

func definitionParams(def ranking.Definition) defParams {
	p := defParams{
		typ:       def.Type.String(),
		startDate: dateToTime(def.StartDate),
		endDate:   dateToTime(def.EndDate),
		weekdays:  make([]int32, 0, len(def.ExcludedWeekdays)),
		dates:     make([]time.Time, 0, len(def.ExcludedDates)),
	}
	if def.Hours != nil {
		start, end := int32(def.Hours.Start), int32(def.Hours.End)
		p.startHour, p.endHour = &start, &end
	}
	for _, wd := range def.ExcludedWeekdays {
		p.weekdays = append(p.weekdays, int32(wd))
	}
	for _, d := range def.ExcludedDates {
		p.dates = append(p.dates, dateToTime(d))
	}
	return p
}

func scanCalendar(row pgx.Row) (model.Calendar, error) {
	var (
		c                  model.Calendar
		typ                string
		startDate, endDate time.Time
		startHour, endHour *int32
		weekdays           []int32
		dates              []time.Time
		finalStart         *time.Time
		finalEnd           *time.Time
		confirmedIDs       []string
		metadata           []byte
		confirmedAt        *time.Time
	)
	err := row.Scan(&c.ID, &c.HostID, &c.Title, &c.Description, &typ, &startDate, &endDate, &startHour, &endHour,
		&weekdays, &dates, &c.Definition.Deadline, &c.Definition.TimeZone, &c.Status,
		&finalStart, &finalEnd, &confirmedIDs, &metadata, &confirmedAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.Calendar{}, err
	}

	def := &c.Definition
	def.ID = c.ID
	if def.Type, err = ranking.ParseCalendarType(typ); err != nil {
		return model.Calendar{}, err
	}
	def.StartDate = ranking.DateOf(startDate)
	def.EndDate = ranking.DateOf(endDate)
	if startHour != nil && endHour != nil {
		def.Hours = &ranking.HourRange{Start: int(*startHour), End: int(*endHour)}
	}
	for _, wd := range weekdays {
		def.ExcludedWeekdays = append(def.ExcludedWeekdays, time.Weekday(wd))
	}
	for _, d := range dates {
		def.ExcludedDates = append(def.ExcludedDates, ranking.DateOf(d))
	}

	if finalStart != nil {
		conf := &model.Confirmation{Start: *finalStart, End: finalEnd, ParticipantIDs: confirmedIDs}
		if confirmedAt != nil {
			conf.ConfirmedAt = *confirmedAt
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &conf.Metadata); err != nil {
				return model.Calendar{}, fmt.Errorf("decode confirmation metadata: %w", err)
			}
		}
		c.Confirmation = conf
	}
	return c, nil
}

func dateToTime(d ranking.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
