package models

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewBillNumber generates a bill number: a millisecond timestamp plus a
// random suffix. Uniqueness is ultimately enforced by the store's unique
// constraint; the suffix entropy keeps retries rare even for bills created
// in the same millisecond.
func NewBillNumber(now time.Time) string {
	id := uuid.New()
	suffix := binary.BigEndian.Uint32(id[:4]) % 1_000_000
	return fmt.Sprintf("BILL-%d-%06d", now.UnixMilli(), suffix)
}
