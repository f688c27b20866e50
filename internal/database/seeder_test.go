package database

import (
	"testing"

	"bankcore/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSeeder_FixedUsers(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()

	seeder := NewSeeder(db, bcrypt.MinCost)
	require.NoError(t, seeder.Seed(0))

	var john models.User
	require.NoError(t, db.Where("username = ?", "john").First(&john).Error)
	assert.Equal(t, "john@example.com", john.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(john.PasswordHash), []byte("pass123")))

	var johnAccount models.Account
	require.NoError(t, db.Where("user_id = ?", john.ID).First(&johnAccount).Error)
	assert.True(t, johnAccount.Balance.Equal(decimal.RequireFromString("50000.00")))
	assert.Equal(t, models.AccountStatusActive, johnAccount.Status)

	var jane models.User
	require.NoError(t, db.Where("username = ?", "jane").First(&jane).Error)

	var janeAccount models.Account
	require.NoError(t, db.Where("user_id = ?", jane.ID).First(&janeAccount).Error)
	assert.True(t, janeAccount.Balance.Equal(decimal.RequireFromString("75000.00")))
}

func TestSeeder_Idempotent(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()

	seeder := NewSeeder(db, bcrypt.MinCost)
	require.NoError(t, seeder.Seed(0))

	var john models.User
	require.NoError(t, db.Where("username = ?", "john").First(&john).Error)
	originalHash := john.PasswordHash

	require.NoError(t, seeder.Seed(0))

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	assert.Equal(t, int64(2), userCount)

	require.NoError(t, db.Where("username = ?", "john").First(&john).Error)
	assert.Equal(t, originalHash, john.PasswordHash)
}

func TestSeeder_ExtraRandomUsers(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()

	seeder := NewSeeder(db, bcrypt.MinCost)
	require.NoError(t, seeder.Seed(3))

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	// Two fixed users plus up to three generated ones; generated names failing
	// the username charset are skipped rather than retried.
	assert.GreaterOrEqual(t, userCount, int64(2))
	assert.LessOrEqual(t, userCount, int64(5))

	var accountCount int64
	require.NoError(t, db.Model(&models.Account{}).Count(&accountCount).Error)
	assert.Equal(t, userCount, accountCount)
}
