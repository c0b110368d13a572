package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the canonical reservation date format.
const DateLayout = "2006-01-02"

// Reservation is a booking of one table for one time slot on one date.
// The (Date, Time, TableNumber) triple is unique across all reservations.
type Reservation struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index"`
	Date        string    `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_reservation_slot,priority:1"`
	Time        string    `json:"time" gorm:"type:varchar(5);not null;uniqueIndex:idx_reservation_slot,priority:2"`
	TableNumber int       `json:"table" gorm:"not null;uniqueIndex:idx_reservation_slot,priority:3"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Owner *User `json:"-" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// BeforeCreate sets UUID before creating the record.
func (r *Reservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// OwnedBy reports whether userID created the reservation.
func (r *Reservation) OwnedBy(userID uuid.UUID) bool {
	return r.UserID == userID
}
