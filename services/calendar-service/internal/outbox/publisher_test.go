package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlecal/huddle/libs/kafkax"
	"github.com/huddlecal/huddle/libs/metrics"
)

type fakeWriter struct {
	msgs   []kafka.Message
	failAt int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.failAt > 0 && len(w.msgs)+1 == w.failAt {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func testPublisher() *Publisher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPublisher(nil, nil, logger, metrics.MustNewMetrics(prometheus.NewRegistry()), PublisherConfig{})
}

func records() []Record {
	return []Record{
		{ID: 1, EventID: "e1", AggregateID: "cal-1", EventType: EventMeetingConfirmed, Payload: []byte(`{"calendar_id":"cal-1"}`)},
		{ID: 2, EventID: "e2", AggregateID: "cal-2", EventType: EventDeadlineReached, Payload: []byte(`{"calendar_id":"cal-2"}`),
			Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	}
}

func TestRelayWritesAllRecords(t *testing.T) {
	w := &fakeWriter{}
	ids, err := testPublisher().relay(context.Background(), w, records())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	require.Len(t, w.msgs, 2)

	meta := kafkax.ExtractEventMeta(w.msgs[1])
	assert.Equal(t, "e2", meta.EventID)
	assert.Equal(t, EventDeadlineReached, w.msgs[1].Topic)
	assert.Equal(t, "cal-2", string(w.msgs[1].Key))
}

func TestRelayStopsAtFirstFailure(t *testing.T) {
	w := &fakeWriter{failAt: 2}
	ids, err := testPublisher().relay(context.Background(), w, records())
	require.Error(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestNewCalendarEvent(t *testing.T) {
	end := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	evt, err := NewCalendarEvent(EventMeetingConfirmed, "cal-1", MeetingConfirmed{
		CalendarID:     "cal-1",
		HostID:         "host-1",
		FinalStart:     time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		FinalEnd:       &end,
		ParticipantIDs: []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, AggregateCalendar, evt.AggregateType)
	assert.Equal(t, "cal-1", evt.AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, "2025-06-02T14:00:00Z", payload["final_start"])
	assert.Equal(t, []any{"a", "b"}, payload["participant_ids"])
}
