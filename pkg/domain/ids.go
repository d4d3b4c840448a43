// Package domain provides typed identifiers so a screening ID cannot be
// passed where a user ID is expected.
package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"

	dErrors "basecamp/pkg/domain-errors"
)

type (
	ScreeningID uuid.UUID
	UserID      uuid.UUID
)

func NewScreeningID() ScreeningID { return ScreeningID(uuid.New()) }
func NewUserID() UserID           { return UserID(uuid.New()) }

// Parse functions are for trust boundaries (handlers, admin input).

func ParseScreeningID(s string) (ScreeningID, error) {
	id, err := parseUUID(s, "screening ID")
	return ScreeningID(id), err
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func (id ScreeningID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string      { return uuid.UUID(id).String() }

func (id ScreeningID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// Text and SQL encodings delegate to uuid.UUID, whose methods are not
// inherited by the named types.

func (id ScreeningID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *ScreeningID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id ScreeningID) Value() (driver.Value, error) { return uuid.UUID(id).String(), nil }
func (id UserID) Value() (driver.Value, error)      { return uuid.UUID(id).String(), nil }

func (id *ScreeningID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id *UserID) Scan(src any) error      { return scanUUID((*uuid.UUID)(id), src) }

func scanUUID(dst *uuid.UUID, src any) error {
	if err := dst.Scan(src); err != nil {
		return fmt.Errorf("scan uuid: %w", err)
	}
	return nil
}

// parseUUID rejects empty, malformed and nil UUIDs.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, label+" cannot be nil")
	}
	return id, nil
}
