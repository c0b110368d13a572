package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tablebook/internal/auth"
	"tablebook/internal/cache"
	apperrors "tablebook/internal/errors"
	"tablebook/internal/logging"
	"tablebook/internal/model"
	"tablebook/internal/policy"
	"tablebook/internal/repository"
	"tablebook/internal/slots"
)

const (
	freeSlotsCacheTTL = 30 * time.Second
	// versionTTL outlives every entry keyed by the version it guards.
	versionTTL = 24 * time.Hour
)

// ReservationInput is the raw (date, time, table) triple supplied by a caller.
type ReservationInput struct {
	Date  string
	Time  string
	Table string
}

// OwnedReservation is a reservation listed together with its owner.
type OwnedReservation struct {
	model.Reservation
	Owner model.OwnerSummary `json:"owner"`
}

// ReservationService books, edits and lists table reservations.
type ReservationService interface {
	Create(ctx context.Context, in ReservationInput) (*model.Reservation, error)
	Edit(ctx context.Context, id uuid.UUID, in ReservationInput) (*model.Reservation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListOwn(ctx context.Context) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]OwnedReservation, error)
	Search(ctx context.Context, username string) ([]OwnedReservation, error)
	FreeSlots(ctx context.Context, date string) ([]string, error)
}

type reservationService struct {
	repo    repository.ReservationRepository
	catalog *slots.Catalog
	cache   *cache.Client
	log     logging.Logger
}

// NewReservationService creates a reservation service over catalog.
func NewReservationService(repo repository.ReservationRepository, catalog *slots.Catalog, cache *cache.Client, log logging.Logger) ReservationService {
	return &reservationService{
		repo:    repo,
		catalog: catalog,
		cache:   cache,
		log:     log.With("component", "reservation_service"),
	}
}

type slot struct {
	date  string
	time  string
	table int
}

func (s *reservationService) parse(in ReservationInput) (slot, error) {
	date := strings.TrimSpace(in.Date)
	tm := strings.TrimSpace(in.Time)
	table := strings.TrimSpace(in.Table)

	if date == "" || tm == "" || table == "" {
		return slot{}, fmt.Errorf("%w: date, time and table are required", apperrors.ErrValidation)
	}
	if err := validateDate(date); err != nil {
		return slot{}, err
	}
	n, err := strconv.Atoi(table)
	if err != nil || n <= 0 {
		return slot{}, fmt.Errorf("%w: table must be a positive integer", apperrors.ErrValidation)
	}
	if !s.catalog.Contains(tm) {
		return slot{}, fmt.Errorf("%w: time %q is not a bookable slot", apperrors.ErrValidation, tm)
	}
	return slot{date: date, time: tm, table: n}, nil
}

func validateDate(date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be formatted YYYY-MM-DD", apperrors.ErrValidation)
	}
	return nil
}

// writeErr maps a failed insert or update; the unique slot index reports conflicts.
func writeErr(what string, err error) error {
	if repository.IsDuplicateKey(err) {
		return apperrors.ErrSlotTaken
	}
	return storageErr(what, err)
}

// Create books a table for the caller.
func (s *reservationService) Create(ctx context.Context, in ReservationInput) (*model.Reservation, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	sl, err := s.parse(in)
	if err != nil {
		return nil, err
	}

	reservation := &model.Reservation{
		UserID:      caller.UserID,
		Date:        sl.date,
		Time:        sl.time,
		TableNumber: sl.table,
	}
	if err := s.repo.Create(ctx, reservation); err != nil {
		return nil, writeErr("create reservation", err)
	}
	s.invalidateFree(ctx, sl.date)

	s.log.Info(ctx, "reservation created",
		"reservation_id", reservation.ID, "user_id", caller.UserID,
		"date", sl.date, "time", sl.time, "table", sl.table)
	return reservation, nil
}

// Edit moves a reservation to a new triple. Only the owner or an admin may
// edit, and the new triple must be free.
func (s *reservationService) Edit(ctx context.Context, id uuid.UUID, in ReservationInput) (*model.Reservation, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}

	var (
		updated *model.Reservation
		oldDate string
	)
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.ReservationRepository) error {
		reservation, err := s.lockModifiable(ctx, repo, caller, id)
		if err != nil {
			return err
		}
		sl, err := s.parse(in)
		if err != nil {
			return err
		}

		oldDate = reservation.Date
		reservation.Date, reservation.Time, reservation.TableNumber = sl.date, sl.time, sl.table
		if err := repo.UpdateSlot(ctx, reservation); err != nil {
			return writeErr("update reservation", err)
		}
		updated = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateFree(ctx, oldDate, updated.Date)

	s.log.Info(ctx, "reservation edited",
		"reservation_id", id, "by", caller.UserID,
		"date", updated.Date, "time", updated.Time, "table", updated.TableNumber)
	return updated, nil
}

// Delete removes a reservation. Only the owner or an admin may delete.
func (s *reservationService) Delete(ctx context.Context, id uuid.UUID) error {
	caller, err := callerFrom(ctx)
	if err != nil {
		return err
	}

	var date string
	err = s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.ReservationRepository) error {
		reservation, err := s.lockModifiable(ctx, repo, caller, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return storageErr("delete reservation", err)
		}
		date = reservation.Date
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateFree(ctx, date)

	s.log.Info(ctx, "reservation deleted", "reservation_id", id, "by", caller.UserID)
	return nil
}

// lockModifiable loads the reservation for update, reporting a missing record
// before checking the caller's rights.
func (s *reservationService) lockModifiable(ctx context.Context, repo repository.ReservationRepository, caller auth.Identity, id uuid.UUID) (*model.Reservation, error) {
	reservation, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, storageErr("find reservation", err)
	}
	if err := policy.RequireModify(caller, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// ListOwn returns the caller's reservations.
func (s *reservationService) ListOwn(ctx context.Context) ([]model.Reservation, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	reservations, err := s.repo.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, storageErr("list reservations", err)
	}
	return reservations, nil
}

// ListAll returns every reservation with its owner. Admin only.
func (s *reservationService) ListAll(ctx context.Context) ([]OwnedReservation, error) {
	if err := requireBrowseAll(ctx); err != nil {
		return nil, err
	}
	reservations, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, storageErr("list reservations", err)
	}
	return withOwners(reservations), nil
}

// Search returns reservations whose owner's username contains the given
// text, ignoring case. Admin only.
func (s *reservationService) Search(ctx context.Context, username string) ([]OwnedReservation, error) {
	if err := requireBrowseAll(ctx); err != nil {
		return nil, err
	}
	reservations, err := s.repo.SearchByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, storageErr("search reservations", err)
	}
	return withOwners(reservations), nil
}

func requireBrowseAll(ctx context.Context) error {
	caller, err := callerFrom(ctx)
	if err != nil {
		return err
	}
	return policy.RequireAdmin(caller)
}

func withOwners(reservations []model.Reservation) []OwnedReservation {
	out := make([]OwnedReservation, 0, len(reservations))
	for _, r := range reservations {
		item := OwnedReservation{Reservation: r}
		if r.Owner != nil {
			item.Owner = r.Owner.Summary()
		} else {
			item.Owner = model.OwnerSummary{ID: r.UserID}
		}
		out = append(out, item)
	}
	return out
}

func freeSlotsVersionKey(date string) string {
	return "slots:ver:" + date
}

func freeSlotsKey(date string, version int64) string {
	return fmt.Sprintf("slots:free:%s:%d", date, version)
}

// FreeSlots lists the catalog times on date at which no table is booked.
// Cached lists are keyed by the date's write version, so a list computed
// before a concurrent booking lands under a version nobody reads again.
func (s *reservationService) FreeSlots(ctx context.Context, date string) ([]string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, fmt.Errorf("%w: date is required", apperrors.ErrValidation)
	}
	if err := validateDate(date); err != nil {
		return nil, err
	}

	version, cacheable := s.cache.Version(ctx, freeSlotsVersionKey(date))
	if cacheable {
		if data, _ := s.cache.Get(ctx, freeSlotsKey(date, version)); data != nil {
			var cached []string
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	occupied, err := s.repo.TimesOnDate(ctx, date)
	if err != nil {
		return nil, storageErr("occupied times", err)
	}
	free := s.catalog.Free(occupied)

	if cacheable {
		if payload, err := json.Marshal(free); err == nil {
			_ = s.cache.Set(ctx, freeSlotsKey(date, version), payload, freeSlotsCacheTTL)
		}
	}
	return free, nil
}

// invalidateFree bumps the write version of every date touched by a
// committed change.
func (s *reservationService) invalidateFree(ctx context.Context, dates ...string) {
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		_ = s.cache.Bump(ctx, freeSlotsVersionKey(d), versionTTL)
	}
}
