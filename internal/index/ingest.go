package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/eliseohh/shelfbot/internal/logger"
)

const TopicArchiveMessages = "archive.messages"

// Publisher hands channel posts to the ingester without blocking the bot's
// update handler on SQLite.
type Publisher struct {
	pub message.Publisher
}

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) Publish(m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return p.pub.Publish(TopicArchiveMessages, message.NewMessage(watermill.NewUUID(), payload))
}

// Retract asks the ingester to drop a post that no longer exists in chatID.
func (p *Publisher) Retract(chatID int64, messageID int) error {
	return p.Publish(Message{ChatID: chatID, MessageID: messageID, Retracted: true})
}

// Ingester is the single writer of the index.
type Ingester struct {
	store *Store
	sub   message.Subscriber
	log   logger.ILogger
}

func NewIngester(store *Store, sub message.Subscriber, log logger.ILogger) *Ingester {
	return &Ingester{store: store, sub: sub, log: log}
}

// Start subscribes synchronously and consumes in the background until ctx is
// cancelled; the returned channel closes once consumption has stopped. A
// post that fails to store is logged and dropped; the next edit of that post
// indexes it again.
func (i *Ingester) Start(ctx context.Context) (<-chan struct{}, error) {
	msgs, err := i.sub.Subscribe(ctx, TopicArchiveMessages)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicArchiveMessages, err)
	}

	// Writes outlive cancellation so the message in hand is not lost.
	writeCtx := context.WithoutCancel(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			i.handle(writeCtx, msg)
		}
	}()
	return done, nil
}

func (i *Ingester) handle(ctx context.Context, msg *message.Message) {
	var m Message
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		i.log.Error("Ingest", "Dropping malformed event", map[string]interface{}{
			"uuid":  msg.UUID,
			"error": err,
		})
		msg.Ack()
		return
	}

	if m.Retracted {
		if err := i.store.Delete(ctx, m.ChatID, m.MessageID); err != nil {
			i.log.Error("Ingest", "Index delete failed", map[string]interface{}{
				"chat_id":    m.ChatID,
				"message_id": m.MessageID,
				"error":      err,
			})
		} else {
			i.log.Info("Ingest", "Dropped vanished archive post", map[string]interface{}{
				"chat_id":    m.ChatID,
				"message_id": m.MessageID,
			})
		}
		msg.Ack()
		return
	}

	if err := i.store.Upsert(ctx, m); err != nil {
		i.log.Error("Ingest", "Index write failed", map[string]interface{}{
			"chat_id":    m.ChatID,
			"message_id": m.MessageID,
			"error":      err,
		})
		msg.Ack()
		return
	}

	i.log.Debug("Ingest", "Indexed archive post", map[string]interface{}{
		"chat_id":    m.ChatID,
		"message_id": m.MessageID,
		"kind":       m.Kind,
	})
	msg.Ack()
}

// WatermillLogger routes watermill's internal logging through ILogger.
type WatermillLogger struct {
	log    logger.ILogger
	fields watermill.LogFields
}

func NewWatermillLogger(log logger.ILogger) *WatermillLogger {
	return &WatermillLogger{log: log, fields: watermill.LogFields{}}
}

func (w *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	d := w.merge(fields)
	d["error"] = err
	w.log.Error("Watermill", msg, d)
}

func (w *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Info("Watermill", msg, w.merge(fields))
}

func (w *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debug("Watermill", msg, w.merge(fields))
}

func (w *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Debug("Watermill", msg, w.merge(fields))
}

func (w *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{log: w.log, fields: w.fields.Add(fields)}
}

func (w *WatermillLogger) merge(fields watermill.LogFields) map[string]interface{} {
	out := make(map[string]interface{}, len(w.fields)+len(fields))
	for k, v := range w.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
