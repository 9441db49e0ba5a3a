package model

import "time"

// Status is the lifecycle state a contact is in, independent of soft deletion.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Contact is the data structure for a person that we know.
// Name and Email are mandatory; the other data fields are optional and nil when unset.
// A non-nil DeletedAt marks the contact as soft-deleted.
type Contact struct {
	Id        int64      `json:"id"         db:"id"`
	Name      string     `json:"name"       db:"name"`
	Email     string     `json:"email"      db:"email"`
	Phone     *string    `json:"phone"      db:"phone"`
	Company   *string    `json:"company"    db:"company"`
	Address   *string    `json:"address"    db:"address"`
	Notes     *string    `json:"notes"      db:"notes"`
	Status    Status     `json:"status"     db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" db:"deleted_at"`
}

// Fields are the data fields of a contact that a client may set. A nil pointer means that the
// field was not supplied. For the optional columns, a supplied empty string clears the column.
type Fields struct {
	Name    *string
	Email   *string
	Phone   *string
	Company *string
	Address *string
	Notes   *string
}
