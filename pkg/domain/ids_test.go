package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	valid := uuid.NewString()

	t.Run("accepts canonical UUIDs", func(t *testing.T) {
		id, err := ParseUserID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, id.String())

		bid, err := ParseBillID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, bid.String())

		did, err := ParseDocumentID(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, did.String())
	})

	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		assert.Error(t, err)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, s := range []string{"not-a-uuid", "550e8400", valid + "x"} {
			_, err := ParseBillID(s)
			assert.Error(t, err, s)
		}
	})

	t.Run("rejects the nil UUID", func(t *testing.T) {
		_, err := ParseDocumentID("00000000-0000-0000-0000-000000000000")
		assert.Error(t, err)
	})
}

func TestIDIsNil(t *testing.T) {
	var zero UserID
	assert.True(t, zero.IsNil())
	assert.False(t, NewUserID().IsNil())
}

func TestIDJSONRoundTrip(t *testing.T) {
	type doc struct {
		User UserID     `json:"user"`
		Bill BillID     `json:"bill"`
		Doc  DocumentID `json:"doc"`
	}
	in := doc{User: NewUserID(), Bill: NewBillID(), Doc: NewDocumentID()}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	// Serialized form is the canonical UUID string.
	assert.Contains(t, string(raw), in.User.String())

	var out doc
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestIDUnmarshalRejectsGarbage(t *testing.T) {
	var id BillID
	assert.Error(t, id.UnmarshalText([]byte("garbage")))
}

func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")

	f.Fuzz(func(t *testing.T, s string) {
		id, err := ParseUserID(s)
		if err == nil && id.IsNil() {
			t.Errorf("ParseUserID(%q) returned nil ID without error", s)
		}
	})
}
