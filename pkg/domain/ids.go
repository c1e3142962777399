// Package domain holds shared domain primitives: typed identifiers, roles,
// and the authenticated actor. Typed IDs keep user, bill, and document
// identifiers from being assigned across types by accident.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// UserID identifies a user account.
type UserID uuid.UUID

// BillID identifies a bill.
type BillID uuid.UUID

// DocumentID identifies an uploaded bill document.
type DocumentID uuid.UUID

// ParseUserID validates and returns a UserID. Empty strings, malformed
// UUIDs, and the nil UUID are rejected.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

// ParseBillID validates and returns a BillID.
func ParseBillID(s string) (BillID, error) {
	u, err := parseUUID(s)
	return BillID(u), err
}

// ParseDocumentID validates and returns a DocumentID.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s)
	return DocumentID(u), err
}

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewBillID returns a fresh random BillID.
func NewBillID() BillID { return BillID(uuid.New()) }

// NewDocumentID returns a fresh random DocumentID.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id BillID) String() string     { return uuid.UUID(id).String() }
func (id DocumentID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id BillID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// IDs serialize as canonical UUID strings.

func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id BillID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *BillID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = BillID(u)
	return nil
}

func (id *DocumentID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = DocumentID(u)
	return nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("empty identifier")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed identifier: %w", err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("nil identifier")
	}
	return u, nil
}
