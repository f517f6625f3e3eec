package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/huddlecal/huddle/services/calendar-service/internal/model"
)

const participantColumns = `
	id::text, calendar_id::text, COALESCE(user_id, ''), display_name, avatar_ref, is_guest, pin_hash,
	availability, joined_at, updated_at`

// ListParticipants returns participants in join order.
func (r *CalendarRepository) ListParticipants(ctx context.Context, calendarID string) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE calendar_id = $1
		ORDER BY joined_at, id
	`, calendarID)
	if err != nil {
		return nil, translate(err)
	}
	ps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Participant, error) {
		return scanParticipant(row)
	})
	return ps, translate(err)
}

// AddParticipant fails with ErrConflict when the user, or a guest with the
// same name, already joined the calendar.
func (r *CalendarRepository) AddParticipant(ctx context.Context, p *model.Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Availability == nil {
		p.Availability = []string{}
	}
	var userID *string
	if p.UserID != "" {
		userID = &p.UserID
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO participants (id, calendar_id, user_id, display_name, avatar_ref, is_guest, pin_hash, availability)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING joined_at, updated_at
	`, p.ID, p.CalendarID, userID, p.DisplayName, p.AvatarRef, p.IsGuest, p.PINHash, p.Availability).
		Scan(&p.JoinedAt, &p.UpdatedAt)
	return translate(err)
}

func (r *CalendarRepository) GetParticipant(ctx context.Context, calendarID, participantID string) (model.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE calendar_id = $1 AND id = $2
	`, calendarID, participantID))
	return p, translate(err)
}

func (r *CalendarRepository) FindParticipantByUser(ctx context.Context, calendarID, userID string) (model.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE calendar_id = $1 AND user_id = $2
	`, calendarID, userID))
	return p, translate(err)
}

func (r *CalendarRepository) FindGuest(ctx context.Context, calendarID, displayName string) (model.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE calendar_id = $1 AND is_guest AND lower(display_name) = $2
	`, calendarID, strings.ToLower(strings.TrimSpace(displayName))))
	return p, translate(err)
}

// ReplaceAvailability overwrites the participant's answers while the calendar
// is open. Deadline checks happen in the caller.
func (r *CalendarRepository) ReplaceAvailability(ctx context.Context, calendarID, participantID string, availability []string) error {
	return translate(r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM calendars WHERE id = $1 FOR SHARE`, calendarID).Scan(&status); err != nil {
			return err
		}
		if status != model.StatusOpen {
			return ErrConflict
		}
		return setAvailability(ctx, tx, calendarID, participantID, availability)
	}))
}

func setAvailability(ctx context.Context, tx pgx.Tx, calendarID, participantID string, availability []string) error {
	if availability == nil {
		availability = []string{}
	}
	tag, err := tx.Exec(ctx, `
		UPDATE participants
		SET availability = $3, updated_at = now()
		WHERE calendar_id = $1 AND id = $2
	`, calendarID, participantID, availability)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanParticipant(row pgx.Row) (model.Participant, error) {
	var p model.Participant
	err := row.Scan(&p.ID, &p.CalendarID, &p.UserID, &p.DisplayName, &p.AvatarRef, &p.IsGuest, &p.PINHash,
		&p.Availability, &p.JoinedAt, &p.UpdatedAt)
	return p, err
}

// RefreshProfile copies a user's current name and avatar onto every calendar
// they joined, and returns the number of rows changed.
func (r *CalendarRepository) RefreshProfile(ctx context.Context, tx pgx.Tx, userID, displayName, avatarRef string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE participants
		SET display_name = $2, avatar_ref = $3, updated_at = now()
		WHERE user_id = $1 AND NOT is_guest
		  AND (display_name <> $2 OR avatar_ref <> $3)
	`, userID, displayName, avatarRef)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}
