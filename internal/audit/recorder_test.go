package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshishBhandari123/bvas-project/pkg/domain"
	"github.com/AshishBhandari123/bvas-project/pkg/requestcontext"
)

type stubStore struct {
	appendErr error
	entries   []Entry
}

func (s *stubStore) Append(_ context.Context, entry Entry) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubStore) List(_ context.Context, _ Query) ([]Entry, int, error) {
	return s.entries, len(s.entries), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordEnrichesFromContext(t *testing.T) {
	store := &stubStore{}
	rec := NewRecorder(store, testLogger())

	actor := domain.NewUserID()
	at := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "test-agent")

	rec.Record(ctx, ActionSubmitBill, EntityBill, "bill-1", actor, "Bill submitted")

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, ActionSubmitBill, e.Action)
	assert.Equal(t, "bill-1", e.EntityID)
	assert.Equal(t, actor, e.PerformedBy)
	assert.Equal(t, at, e.PerformedAt)
	assert.Equal(t, "203.0.113.7", e.IPAddress)
	assert.Equal(t, "test-agent", e.UserAgent)
	assert.NotEqual(t, "", e.ID.String())
}

// A failing trail store must never surface to the caller.
func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := &stubStore{appendErr: errors.New("disk full")}
	rec := NewRecorder(store, testLogger())

	rec.Record(context.Background(), ActionLogin, EntityUser, "user-1", domain.NewUserID(), "")
	assert.Empty(t, store.entries)
}

func TestRecordFanOut(t *testing.T) {
	inbox := make(chan Entry, 1)
	rec := NewRecorder(&stubStore{}, testLogger(), WithInbox(inbox))

	rec.Record(context.Background(), ActionCreateBill, EntityBill, "bill-1", domain.NewUserID(), "")

	select {
	case e := <-inbox:
		assert.Equal(t, ActionCreateBill, e.Action)
	default:
		t.Fatal("expected fan-out copy in inbox")
	}

	// A full inbox drops the copy without blocking.
	inbox <- Entry{}
	done := make(chan struct{})
	go func() {
		rec.Record(context.Background(), ActionDeleteBill, EntityBill, "bill-2", domain.NewUserID(), "")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on full inbox")
	}
}

func TestListNormalizesQuery(t *testing.T) {
	q := Query{Page: 0, Limit: -1}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 50, q.Limit)

	q = Query{Page: 3, Limit: 1000}.Normalize()
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 50, q.Limit)
}
