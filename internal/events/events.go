// Package events publishes item change notifications to Kafka so
// downstream consumers (cache invalidators, indexers) can react to
// catalog writes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ItemEvent is the wire payload of one catalog change.
type ItemEvent struct {
	EventID    string    `json:"event_id"`
	Action     Action    `json:"action"`
	Collection string    `json:"collection"`
	ItemID     string    `json:"item_id"`
	Timestamp  time.Time `json:"timestamp"`
}

type Publisher interface {
	PublishItemEvent(ctx context.Context, ev ItemEvent) error
	Close() error
}

// Nop is used when event publishing is disabled.
type Nop struct{}

func (Nop) PublishItemEvent(context.Context, ItemEvent) error { return nil }
func (Nop) Close() error                                      { return nil }

const dedupeWindow = 2 * time.Second

// Kafka publishes events through a synchronous producer. A small LRU
// suppresses duplicate notifications for the same item and action within
// a short window, which retried client requests otherwise produce.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	recent   *lru.Cache[string, time.Time]
	log      zerolog.Logger
}

func NewKafka(brokers []string, topic string, log zerolog.Logger) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return newKafka(producer, topic, log), nil
}

func newKafka(producer sarama.SyncProducer, topic string, log zerolog.Logger) *Kafka {
	recent, _ := lru.New[string, time.Time](1024)
	return &Kafka{producer: producer, topic: topic, recent: recent, log: log}
}

func (k *Kafka) PublishItemEvent(ctx context.Context, ev ItemEvent) error {
	key := fmt.Sprintf("%s|%s|%s", ev.Collection, ev.ItemID, ev.Action)
	if at, ok := k.recent.Get(key); ok && time.Since(at) < dedupeWindow {
		k.log.Debug().Str("key", key).Msg("suppressing duplicate item event")
		return nil
	}

	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode item event: %w", err)
	}

	// keyed by item so a partition preserves per-item ordering
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.Collection + "|" + ev.ItemID),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish item event: %w", err)
	}
	k.recent.Add(key, time.Now())
	k.log.Debug().
		Str("event_id", ev.EventID).
		Str("action", string(ev.Action)).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("item event published")
	return nil
}

func (k *Kafka) Close() error { return k.producer.Close() }
