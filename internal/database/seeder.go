package database

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"bankcore/internal/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// seedUser is one deterministic development login
type seedUser struct {
	username string
	password string
	balance  string
}

// The two fixed demo users every environment knows about.
var fixedSeedUsers = []seedUser{
	{username: "john", password: "pass123", balance: "50000.00"},
	{username: "jane", password: "pass456", balance: "75000.00"},
}

// Seeder populates development databases with demo users and accounts
type Seeder struct {
	db         *DB
	bcryptCost int
}

// NewSeeder creates a seeder
func NewSeeder(db *DB, bcryptCost int) *Seeder {
	return &Seeder{
		db:         db,
		bcryptCost: bcryptCost,
	}
}

// Seed creates the fixed demo users plus extraRandom generated customers.
// Idempotent: existing usernames are left untouched.
func (s *Seeder) Seed(extraRandom int) error {
	for _, su := range fixedSeedUsers {
		if err := s.seedOne(su.username, su.password, su.balance); err != nil {
			return err
		}
	}

	faker := gofakeit.New(0)
	for i := 0; i < extraRandom; i++ {
		username := strings.ToLower(faker.Username())
		if !validSeedUsername(username) {
			continue
		}
		balance := decimal.NewFromFloat(faker.Price(100, 100000)).Round(2).StringFixed(2)
		if err := s.seedOne(username, faker.Password(true, true, true, false, false, 12), balance); err != nil {
			return err
		}
	}

	return nil
}

func (s *Seeder) seedOne(username, password, balance string) error {
	var existing models.User
	err := s.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check seed user %s: %w", username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleCustomer,
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create seed user %s: %w", username, err)
		}

		account := &models.Account{
			AccountNumber: models.GenerateAccountNumber(),
			UserID:        user.ID,
			Balance:       decimal.RequireFromString(balance),
			Status:        models.AccountStatusActive,
		}
		if err := tx.Create(account).Error; err != nil {
			return fmt.Errorf("failed to create seed account for %s: %w", username, err)
		}

		log.Printf("Seeded user %s with account %s (balance %s)", username, account.AccountNumber, balance)
		return nil
	})
}

// validSeedUsername filters generated usernames down to the charset the user
// model accepts.
func validSeedUsername(username string) bool {
	if len(username) < 3 || len(username) > 32 {
		return false
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '-':
		default:
			return false
		}
	}
	return true
}
