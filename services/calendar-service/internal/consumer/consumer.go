package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/huddlecal/huddle/libs/kafkax"
	otelx "github.com/huddlecal/huddle/libs/otel"
)

// Handler applies one message inside the transaction that records it in the inbox.
type Handler func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Inbox interface {
	Record(ctx context.Context, tx pgx.Tx, eventID, eventType string) (bool, error)
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

type Consumer struct {
	reader  Reader
	tx      TxRunner
	inbox   Inbox
	logger  *slog.Logger
	handler Handler
	backoff time.Duration
}

type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func New(logger *slog.Logger, reader Reader, tx TxRunner, inbox Inbox, handler Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		tx:      tx,
		inbox:   inbox,
		logger:  logger,
		handler: handler,
		backoff: time.Second,
	}
}

// Run reads until ctx is done. Handler errors are logged and the message is
// skipped; its inbox entry is rolled back with the handler's writes.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	meta := kafkax.ExtractEventMeta(msg)
	// Keys are aggregate ids, not event ids, so only the header deduplicates.
	eventID := kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID)
	ctx, span := otelx.StartSpan(kafkax.ExtractTraceContext(ctx, msg), "kafka.consume",
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", msg.Topic),
		attribute.String("event.id", eventID),
	)

	duplicate := false
	err := c.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if eventID != "" {
			fresh, err := c.inbox.Record(ctx, tx, eventID, meta.EventType)
			if err != nil {
				return err
			}
			if !fresh {
				duplicate = true
				return nil
			}
		}
		return c.handler(ctx, tx, msg)
	})
	switch {
	case err != nil:
		c.logger.ErrorContext(ctx, "event handling failed", "err", err, "event_id", eventID, "topic", msg.Topic)
	case duplicate:
		c.logger.InfoContext(ctx, "duplicate event ignored", "event_id", eventID, "event_type", meta.EventType)
	}
	otelx.EndSpan(span, err)
}
