//go:build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
	"github.com/AshishBhandari123/bvas-project/internal/audit/publisher"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/testutil/containers"
)

type publishedEntry struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	PerformedBy string `json:"performed_by"`
	Details     string `json:"details"`
}

func TestKafkaPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t)
	topic := "bvas.audit." + uuid.NewString()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, err := publisher.NewKafka(ctx, broker.Seeds, topic, logger)
	require.NoError(t, err)
	defer pub.Close()

	runCtx, stop := context.WithCancel(ctx)
	inbox := make(chan audit.Entry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pub.Run(runCtx, inbox)
	}()

	actor := domain.NewUserID()
	billID := uuid.NewString()
	entries := []audit.Entry{
		{
			ID:          uuid.New(),
			Action:      audit.ActionCreateBill,
			EntityType:  audit.EntityBill,
			EntityID:    billID,
			PerformedBy: actor,
			PerformedAt: time.Now().UTC(),
			Details:     "Bill BILL-1-000001 created",
		},
		{
			ID:          uuid.New(),
			Action:      audit.ActionSubmitBill,
			EntityType:  audit.EntityBill,
			EntityID:    billID,
			PerformedBy: actor,
			PerformedAt: time.Now().UTC(),
		},
	}
	for _, e := range entries {
		inbox <- e
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Seeds...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	require.Eventually(t, func() bool {
		pollCtx, pollCancel := context.WithTimeout(ctx, 2*time.Second)
		defer pollCancel()
		fetches := consumer.PollFetches(pollCtx)
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
		return len(records) >= len(entries)
	}, 30*time.Second, 100*time.Millisecond)

	require.Len(t, records, len(entries))
	for i, r := range records {
		// Keyed by entity ID so one bill's history stays in order.
		require.Equal(t, billID, string(r.Key))

		var got publishedEntry
		require.NoError(t, json.Unmarshal(r.Value, &got))
		require.Equal(t, entries[i].ID.String(), got.ID)
		require.Equal(t, entries[i].Action, got.Action)
		require.Equal(t, audit.EntityBill, got.EntityType)
		require.Equal(t, actor.String(), got.PerformedBy)
	}

	stop()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}
