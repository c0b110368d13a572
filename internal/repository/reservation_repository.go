package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tablebook/internal/model"
)

// ReservationRepository defines reservation persistence operations. The
// compound unique index on (date, time, table_number) rejects a second
// reservation of the same slot on insert and on update.
type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	UpdateSlot(ctx context.Context, reservation *model.Reservation) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.Reservation, error)
	SearchByUsername(ctx context.Context, substring string) ([]model.Reservation, error)
	TimesOnDate(ctx context.Context, date string) ([]string, error)
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo ReservationRepository) error) error
}

type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

const slotOrder = "date ASC, time ASC, table_number ASC"

// Create inserts a reservation.
func (r *reservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(reservation).Error
}

// UpdateSlot overwrites date, time and table number. The owner is never written.
func (r *reservationRepository) UpdateSlot(ctx context.Context, reservation *model.Reservation) error {
	return r.db.WithContext(ctx).Model(&model.Reservation{ID: reservation.ID}).
		Updates(map[string]interface{}{
			"date":         reservation.Date,
			"time":         reservation.Time,
			"table_number": reservation.TableNumber,
		}).Error
}

// Delete removes a reservation permanently.
func (r *reservationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Reservation{}).Error
}

// FindByID finds a reservation by ID.
func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindByIDForUpdate finds a reservation by ID with a row-level lock where the
// driver supports one.
func (r *reservationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var reservation model.Reservation
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ListByOwner lists the reservations made by one user.
func (r *reservationRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	var reservations []model.Reservation
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order(slotOrder).Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// ListAll lists every reservation with its owner loaded.
func (r *reservationRepository) ListAll(ctx context.Context) ([]model.Reservation, error) {
	var reservations []model.Reservation
	if err := r.db.WithContext(ctx).Preload("Owner").
		Order(slotOrder).Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// SearchByUsername lists reservations whose owner's username contains
// substring, compared case-insensitively. LIKE wildcards in substring match literally.
func (r *reservationRepository) SearchByUsername(ctx context.Context, substring string) ([]model.Reservation, error) {
	pattern := "%" + escapeLike(strings.ToLower(substring)) + "%"
	owners := r.db.Model(&model.User{}).Select("id").
		Where("LOWER(username) LIKE ? ESCAPE '!'", pattern)

	var reservations []model.Reservation
	if err := r.db.WithContext(ctx).Preload("Owner").
		Where("user_id IN (?)", owners).
		Order(slotOrder).Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// TimesOnDate returns the distinct slot times booked on date, any table.
func (r *reservationRepository) TimesOnDate(ctx context.Context, date string) ([]string, error) {
	var times []string
	if err := r.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("date = ?", date).
		Distinct().Pluck("time", &times).Error; err != nil {
		return nil, err
	}
	return times, nil
}

// WithTransaction executes a function within a database transaction.
func (r *reservationRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo ReservationRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &reservationRepository{db: tx}
		return fn(ctx, txRepo)
	})
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
