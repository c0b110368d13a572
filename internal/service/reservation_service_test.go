package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tablebook/internal/auth"
	"tablebook/internal/cache"
	"tablebook/internal/db/dbtest"
	apperrors "tablebook/internal/errors"
	"tablebook/internal/logging"
	"tablebook/internal/model"
	"tablebook/internal/repository"
	"tablebook/internal/slots"
)

type reservationFixture struct {
	db      *gorm.DB
	svc     ReservationService
	users   repository.UserRepository
	u1, u2  context.Context
	admin   context.Context
	u1Ident auth.Identity
}

func newReservationFixture(t *testing.T) *reservationFixture {
	return newCachedReservationFixture(t, cache.New(nil), nil)
}

// newCachedReservationFixture builds the fixture over c. wrap, when set,
// decorates the repository the service sees.
func newCachedReservationFixture(t *testing.T, c *cache.Client, wrap func(repository.ReservationRepository) repository.ReservationRepository) *reservationFixture {
	t.Helper()
	gormDB := dbtest.New(t)
	users := repository.NewUserRepository(gormDB)

	repo := repository.NewReservationRepository(gormDB)
	if wrap != nil {
		repo = wrap(repo)
	}
	f := &reservationFixture{
		db:    gormDB,
		users: users,
		svc:   NewReservationService(repo, slots.Default, c, logging.Nop()),
	}
	f.u1, f.u1Ident = f.login(t, "ana", model.RoleUser)
	f.u2, _ = f.login(t, "bob", model.RoleUser)
	f.admin, _ = f.login(t, "root", model.RoleAdmin)
	return f
}

// newTestCache returns a cache backed by an in-process redis.
func newTestCache(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := cache.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.New(rdb), mr
}

// interleavingRepo runs afterTimes once, between reading the booked times
// and returning them.
type interleavingRepo struct {
	repository.ReservationRepository
	afterTimes func()
}

func (r *interleavingRepo) TimesOnDate(ctx context.Context, date string) ([]string, error) {
	times, err := r.ReservationRepository.TimesOnDate(ctx, date)
	if hook := r.afterTimes; hook != nil {
		r.afterTimes = nil
		hook()
	}
	return times, err
}

func (f *reservationFixture) login(t *testing.T, username string, role model.Role) (context.Context, auth.Identity) {
	t.Helper()
	user := &model.User{Username: username, PasswordHash: "x", Role: role}
	require.NoError(t, f.users.Create(context.Background(), user))
	id := auth.IdentityOf(user)
	return auth.WithIdentity(context.Background(), id), id
}

func TestReservationService_BookingScenario(t *testing.T) {
	f := newReservationFixture(t)
	in := ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "3"}

	r, err := f.svc.Create(f.u1, in)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, f.u1Ident.UserID, r.UserID)
	assert.Equal(t, 3, r.TableNumber)

	_, err = f.svc.Create(f.u2, in)
	assert.ErrorIs(t, err, apperrors.ErrSlotTaken)

	free, err := f.svc.FreeSlots(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.NotContains(t, free, "19:00")
	assert.Len(t, free, len(slots.Default.Slots())-1)

	// Another table at the same time is still bookable.
	_, err = f.svc.Create(f.u2, ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "4"})
	assert.NoError(t, err)
}

func TestReservationService_ConcurrentCreateSameTriple(t *testing.T) {
	f := newReservationFixture(t)
	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		taken     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(ctx context.Context) {
			defer wg.Done()
			_, err := f.svc.Create(ctx, ReservationInput{Date: "2024-06-01", Time: "20:00", Table: "1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, apperrors.ErrSlotTaken):
				taken++
			}
		}([]context.Context{f.u1, f.u2, f.admin}[i%3])
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, taken)

	var count int64
	require.NoError(t, f.db.Model(&model.Reservation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReservationService_CreateValidation(t *testing.T) {
	f := newReservationFixture(t)

	tests := []struct {
		name string
		in   ReservationInput
	}{
		{"missing date", ReservationInput{Time: "19:00", Table: "1"}},
		{"missing time", ReservationInput{Date: "2024-05-01", Table: "1"}},
		{"missing table", ReservationInput{Date: "2024-05-01", Time: "19:00"}},
		{"malformed date", ReservationInput{Date: "01/05/2024", Time: "19:00", Table: "1"}},
		{"table not a number", ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "three"}},
		{"table zero", ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "0"}},
		{"table negative", ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "-2"}},
		{"time outside catalog", ReservationInput{Date: "2024-05-01", Time: "09:00", Table: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(f.u1, tt.in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	_, err := f.svc.Create(context.Background(), ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "1"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestReservationService_Edit(t *testing.T) {
	f := newReservationFixture(t)

	mine, err := f.svc.Create(f.u1, ReservationInput{Date: "2024-05-01", Time: "12:00", Table: "1"})
	require.NoError(t, err)
	theirs, err := f.svc.Create(f.u2, ReservationInput{Date: "2024-05-01", Time: "13:00", Table: "1"})
	require.NoError(t, err)

	t.Run("owner moves reservation", func(t *testing.T) {
		updated, err := f.svc.Edit(f.u1, mine.ID, ReservationInput{Date: "2024-05-02", Time: "14:00", Table: "5"})
		require.NoError(t, err)
		assert.Equal(t, "2024-05-02", updated.Date)
		assert.Equal(t, "14:00", updated.Time)
		assert.Equal(t, 5, updated.TableNumber)
		assert.Equal(t, f.u1Ident.UserID, updated.UserID)
	})

	t.Run("onto an occupied triple", func(t *testing.T) {
		_, err := f.svc.Edit(f.u1, mine.ID, ReservationInput{Date: "2024-05-01", Time: "13:00", Table: "1"})
		assert.ErrorIs(t, err, apperrors.ErrSlotTaken)

		own, err := f.svc.ListOwn(f.u1)
		require.NoError(t, err)
		require.Len(t, own, 1)
		assert.Equal(t, "2024-05-02", own[0].Date)
	})

	t.Run("keeping the same triple", func(t *testing.T) {
		_, err := f.svc.Edit(f.u1, mine.ID, ReservationInput{Date: "2024-05-02", Time: "14:00", Table: "5"})
		assert.NoError(t, err)
	})

	t.Run("foreign reservation as user", func(t *testing.T) {
		_, err := f.svc.Edit(f.u1, theirs.ID, ReservationInput{Date: "2024-05-03", Time: "13:00", Table: "1"})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("forbidden is reported before validation", func(t *testing.T) {
		_, err := f.svc.Edit(f.u1, theirs.ID, ReservationInput{})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("foreign reservation as admin", func(t *testing.T) {
		updated, err := f.svc.Edit(f.admin, theirs.ID, ReservationInput{Date: "2024-05-03", Time: "13:00", Table: "1"})
		require.NoError(t, err)
		assert.Equal(t, theirs.UserID, updated.UserID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := f.svc.Edit(f.admin, uuid.New(), ReservationInput{Date: "2024-05-03", Time: "13:00", Table: "1"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := f.svc.Edit(f.u1, mine.ID, ReservationInput{Date: "2024-05-03", Time: "13:30", Table: "1"})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestReservationService_Delete(t *testing.T) {
	f := newReservationFixture(t)

	theirs, err := f.svc.Create(f.u2, ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "2"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(f.u1, uuid.New()), apperrors.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(f.u1, theirs.ID), apperrors.ErrForbidden)

	require.NoError(t, f.svc.Delete(f.u2, theirs.ID))
	assert.ErrorIs(t, f.svc.Delete(f.u2, theirs.ID), apperrors.ErrNotFound)

	free, err := f.svc.FreeSlots(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, slots.Default.Slots(), free)

	again, err := f.svc.Create(f.u1, ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "2"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(f.admin, again.ID))
}

func TestReservationService_ListAndSearch(t *testing.T) {
	f := newReservationFixture(t)
	mariana, _ := f.login(t, "Mariana", model.RoleUser)

	_, err := f.svc.Create(f.u1, ReservationInput{Date: "2024-05-01", Time: "12:00", Table: "2"})
	require.NoError(t, err)
	_, err = f.svc.Create(f.u2, ReservationInput{Date: "2024-05-01", Time: "12:00", Table: "1"})
	require.NoError(t, err)
	_, err = f.svc.Create(mariana, ReservationInput{Date: "2024-04-30", Time: "21:00", Table: "7"})
	require.NoError(t, err)

	own, err := f.svc.ListOwn(f.u2)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, 1, own[0].TableNumber)

	_, err = f.svc.ListAll(f.u1)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.svc.Search(f.u1, "ana")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	all, err := f.svc.ListAll(f.admin)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Mariana", all[0].Owner.Username)
	assert.Equal(t, "bob", all[1].Owner.Username)
	assert.Equal(t, "ana", all[2].Owner.Username)

	found, err := f.svc.Search(f.admin, "ANA")
	require.NoError(t, err)
	require.Len(t, found, 2)
	for _, r := range found {
		assert.Contains(t, []string{"ana", "Mariana"}, r.Owner.Username)
	}

	none, err := f.svc.Search(f.admin, "zed")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReservationService_FreeSlots(t *testing.T) {
	f := newReservationFixture(t)

	free, err := f.svc.FreeSlots(context.Background(), "2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, slots.Default.Slots(), free)

	_, err = f.svc.FreeSlots(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.svc.FreeSlots(context.Background(), "July 1st")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Create(f.u1, ReservationInput{Date: "2024-07-01", Time: "12:00", Table: "1"})
	require.NoError(t, err)
	_, err = f.svc.Create(f.u2, ReservationInput{Date: "2024-07-01", Time: "12:00", Table: "2"})
	require.NoError(t, err)
	_, err = f.svc.Create(f.u2, ReservationInput{Date: "2024-07-02", Time: "13:00", Table: "2"})
	require.NoError(t, err)

	free, err = f.svc.FreeSlots(context.Background(), "2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, slots.Default.Slots()[1:], free)
}

func TestReservationService_FreeSlotsCached(t *testing.T) {
	c, mr := newTestCache(t)
	f := newCachedReservationFixture(t, c, nil)
	ctx := context.Background()

	free, err := f.svc.FreeSlots(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, slots.Default.Slots(), free)
	assert.True(t, mr.Exists("slots:free:2024-05-01:0"))

	// A row written behind the service's back is hidden by the cached list.
	require.NoError(t, f.db.Create(&model.Reservation{
		UserID: f.u1Ident.UserID, Date: "2024-05-01", Time: "12:00", TableNumber: 9,
	}).Error)
	free, err = f.svc.FreeSlots(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Contains(t, free, "12:00", "second read is served from the cache")

	mr.FastForward(freeSlotsCacheTTL + time.Second)
	free, err = f.svc.FreeSlots(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.NotContains(t, free, "12:00")
}

func TestReservationService_FreeSlotsInvalidatedByWrites(t *testing.T) {
	c, _ := newTestCache(t)
	f := newCachedReservationFixture(t, c, nil)
	ctx := context.Background()

	freeOn := func(date string) []string {
		t.Helper()
		free, err := f.svc.FreeSlots(ctx, date)
		require.NoError(t, err)
		return free
	}

	require.Contains(t, freeOn("2024-05-01"), "19:00")
	r, err := f.svc.Create(f.u1, ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "3"})
	require.NoError(t, err)
	assert.NotContains(t, freeOn("2024-05-01"), "19:00", "create")

	require.Contains(t, freeOn("2024-05-02"), "20:00")
	_, err = f.svc.Edit(f.u1, r.ID, ReservationInput{Date: "2024-05-02", Time: "20:00", Table: "3"})
	require.NoError(t, err)
	assert.Contains(t, freeOn("2024-05-01"), "19:00", "edit frees the old date")
	assert.NotContains(t, freeOn("2024-05-02"), "20:00", "edit books the new date")

	require.NoError(t, f.svc.Delete(f.u1, r.ID))
	assert.Equal(t, slots.Default.Slots(), freeOn("2024-05-02"), "delete")
}

func TestReservationService_FreeSlotsReadRacingBooking(t *testing.T) {
	c, _ := newTestCache(t)
	var repo *interleavingRepo
	f := newCachedReservationFixture(t, c, func(inner repository.ReservationRepository) repository.ReservationRepository {
		repo = &interleavingRepo{ReservationRepository: inner}
		return repo
	})
	ctx := context.Background()

	repo.afterTimes = func() {
		_, err := f.svc.Create(f.u1, ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "3"})
		require.NoError(t, err)
	}
	stale, err := f.svc.FreeSlots(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Contains(t, stale, "19:00", "read started before the booking committed")

	free, err := f.svc.FreeSlots(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.NotContains(t, free, "19:00")
}

func TestReservationService_FreeSlotsRedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	f := newCachedReservationFixture(t, c, nil)
	mr.Close()

	_, err := f.svc.Create(f.u1, ReservationInput{Date: "2024-05-01", Time: "19:00", Table: "3"})
	require.NoError(t, err)
	free, err := f.svc.FreeSlots(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.NotContains(t, free, "19:00")
}
