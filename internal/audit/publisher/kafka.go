// Package publisher fans audit entries out to Kafka for downstream operator
// tooling. The postgres/memory store remains the source of truth; losing a
// fan-out copy is acceptable, losing a store write is not.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
)

// Kafka publishes audit entries to a single topic, keyed by entity ID so one
// entity's history stays in partition order.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka connects to the brokers and ensures the audit topic exists.
func NewKafka(ctx context.Context, seeds []string, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	res, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create audit topic: %w", err)
	}
	for _, tr := range res {
		if tr.Err != nil && !errors.Is(tr.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("create audit topic %q: %w", tr.Topic, tr.Err)
		}
	}

	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// payload is the JSON structure published to the topic.
type payload struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	PerformedBy string `json:"performed_by"`
	PerformedAt string `json:"performed_at"`
	Details     string `json:"details,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
}

// Run consumes entries from the inbox until ctx is cancelled, flushing any
// in-flight produces before returning.
func (k *Kafka) Run(ctx context.Context, inbox <-chan audit.Entry) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = k.client.Flush(flushCtx)
			return ctx.Err()
		case entry := <-inbox:
			k.publish(ctx, entry)
		}
	}
}

func (k *Kafka) publish(ctx context.Context, entry audit.Entry) {
	body, err := json.Marshal(payload{
		ID:          entry.ID.String(),
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		PerformedBy: entry.PerformedBy.String(),
		PerformedAt: entry.PerformedAt.Format(time.RFC3339Nano),
		Details:     entry.Details,
		IPAddress:   entry.IPAddress,
		UserAgent:   entry.UserAgent,
	})
	if err != nil {
		k.logger.ErrorContext(ctx, "marshal audit payload", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(entry.EntityID),
		Value: body,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			k.logger.Error("audit publish failed",
				"action", entry.Action,
				"entity_id", entry.EntityID,
				"error", err,
			)
		}
	})
}

// Close releases the Kafka client.
func (k *Kafka) Close() {
	k.client.Close()
}
