package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlecal/huddle/libs/kafkax"
)

// memTx commits inbox writes only when the callback succeeds.
type memTx struct {
	mu        sync.Mutex
	committed map[string]bool
	pending   map[string]bool
}

func newMemTx() *memTx {
	return &memTx{committed: map[string]bool{}}
}

func (m *memTx) WithTx(_ context.Context, fn func(pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = map[string]bool{}
	if err := fn(nil); err != nil {
		return err
	}
	for id := range m.pending {
		m.committed[id] = true
	}
	return nil
}

func (m *memTx) Record(_ context.Context, _ pgx.Tx, eventID, _ string) (bool, error) {
	if m.committed[eventID] || m.pending[eventID] {
		return false, nil
	}
	m.pending[eventID] = true
	return true, nil
}

type sliceReader struct {
	msgs   []kafka.Message
	closed bool
	cancel context.CancelFunc
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

type profileCall struct {
	UserID, Name, Avatar string
}

type fakeProfiles struct {
	calls []profileCall
	err   error
}

func (f *fakeProfiles) RefreshProfile(_ context.Context, _ pgx.Tx, userID, name, avatar string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.calls = append(f.calls, profileCall{userID, name, avatar})
	return 1, nil
}

func profileMessage(eventID, payload string) kafka.Message {
	msg := kafka.Message{Topic: TopicProfileUpdated, Key: []byte("user-1"), Value: []byte(payload)}
	if eventID != "" {
		msg.Headers = []kafka.Header{{Key: kafkax.HeaderEventID, Value: []byte(eventID)}}
	}
	return msg
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func run(t *testing.T, store ProfileStore, tx *memTx, msgs ...kafka.Message) *sliceReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &sliceReader{msgs: msgs, cancel: cancel}
	New(discard(), reader, tx, tx, ProfileHandler(store, discard())).Run(ctx)
	return reader
}

func TestConsumerAppliesEachEventOnce(t *testing.T) {
	store := &fakeProfiles{}
	tx := newMemTx()
	reader := run(t, store, tx,
		profileMessage("evt-1", `{"user_id":"user-1","display_name":" Ada ","avatar_ref":"a.png"}`),
		profileMessage("evt-1", `{"user_id":"user-1","display_name":"Ada","avatar_ref":"a.png"}`),
		profileMessage("evt-2", `{"user_id":"user-1","display_name":"Ada L.","avatar_ref":""}`),
	)

	assert.True(t, reader.closed)
	assert.Equal(t, []profileCall{
		{"user-1", "Ada", "a.png"},
		{"user-1", "Ada L.", ""},
	}, store.calls)
	assert.True(t, tx.committed["evt-1"])
	assert.True(t, tx.committed["evt-2"])
}

func TestConsumerWithoutEventIDSkipsInbox(t *testing.T) {
	store := &fakeProfiles{}
	tx := newMemTx()
	run(t, store, tx,
		profileMessage("", `{"user_id":"user-1","display_name":"Ada"}`),
		profileMessage("", `{"user_id":"user-1","display_name":"Ada"}`),
	)
	assert.Len(t, store.calls, 2)
	assert.Empty(t, tx.committed)
}

func TestConsumerForgetsFailedEvents(t *testing.T) {
	store := &fakeProfiles{err: errors.New("db down")}
	tx := newMemTx()
	run(t, store, tx, profileMessage("evt-9", `{"user_id":"user-1","display_name":"Ada"}`))
	assert.Empty(t, tx.committed)

	store.err = nil
	run(t, store, tx, profileMessage("evt-9", `{"user_id":"user-1","display_name":"Ada"}`))
	require.Len(t, store.calls, 1)
	assert.True(t, tx.committed["evt-9"])
}

func TestProfileHandlerDropsMalformedPayloads(t *testing.T) {
	store := &fakeProfiles{}
	h := ProfileHandler(store, discard())
	for _, payload := range []string{`not json`, `{"user_id":"","display_name":"x"}`, `{"user_id":"u","display_name":"  "}`} {
		assert.NoError(t, h(context.Background(), nil, profileMessage("", payload)))
	}
	assert.Empty(t, store.calls)
}
