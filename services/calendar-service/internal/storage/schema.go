package storage

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables if they are missing. Safe to call on every start.
func (r *CalendarRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS calendars (
	id UUID PRIMARY KEY,
	host_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	calendar_type TEXT NOT NULL CHECK (calendar_type IN ('day', 'time')),
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	start_hour INTEGER,
	end_hour INTEGER,
	excluded_weekdays INTEGER[] NOT NULL DEFAULT '{}',
	excluded_dates DATE[] NOT NULL DEFAULT '{}',
	deadline TIMESTAMPTZ,
	time_zone TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed', 'confirmed')),
	final_start TIMESTAMPTZ,
	final_end TIMESTAMPTZ,
	confirmed_participant_ids TEXT[],
	confirmation_metadata JSONB,
	confirmed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (start_date <= end_date)
);

CREATE INDEX IF NOT EXISTS idx_calendars_host ON calendars(host_id);
CREATE INDEX IF NOT EXISTS idx_calendars_open_deadline ON calendars(deadline) WHERE status = 'open';

CREATE TABLE IF NOT EXISTS participants (
	id UUID PRIMARY KEY,
	calendar_id UUID NOT NULL REFERENCES calendars(id) ON DELETE CASCADE,
	user_id TEXT,
	display_name TEXT NOT NULL,
	avatar_ref TEXT NOT NULL DEFAULT '',
	is_guest BOOLEAN NOT NULL DEFAULT false,
	pin_hash TEXT NOT NULL DEFAULT '',
	availability TEXT[] NOT NULL DEFAULT '{}',
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_participants_user ON participants(calendar_id, user_id) WHERE user_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_participants_guest ON participants(calendar_id, lower(display_name)) WHERE is_guest;

CREATE TABLE IF NOT EXISTS outbox_events (
	id BIGSERIAL PRIMARY KEY,
	event_id UUID NOT NULL DEFAULT gen_random_uuid(),
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	traceparent TEXT,
	tracestate TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox_events(id) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS inbox_events (
	event_id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_participants_user ON participants(user_id) WHERE user_id IS NOT NULL;
`
