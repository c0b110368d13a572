package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/db"
	"tablebook/internal/db/dbtest"
	"tablebook/internal/model"
)

func TestMigrate_CreatesSlotIndex(t *testing.T) {
	gormDB := dbtest.New(t)

	assert.True(t, gormDB.Migrator().HasTable(&model.User{}))
	assert.True(t, gormDB.Migrator().HasTable(&model.Reservation{}))
	assert.True(t, gormDB.Migrator().HasIndex(&model.Reservation{}, "idx_reservation_slot"))
}

func TestReset_DropsTables(t *testing.T) {
	gormDB := dbtest.New(t)

	require.NoError(t, db.Reset(gormDB))

	assert.False(t, gormDB.Migrator().HasTable(&model.Reservation{}))
	assert.False(t, gormDB.Migrator().HasTable(&model.User{}))

	require.NoError(t, db.Migrate(gormDB))
	assert.True(t, gormDB.Migrator().HasTable(&model.Reservation{}))
}
