package dbmodels

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Status       string
	Role         string
	Created      time.Time
}

type UserBalance struct {
	ID       int64
	UserID   int64
	Currency string
	Amount   decimal.Decimal
	Created  time.Time
}

type Transaction struct {
	ID       int64
	UserID   int64
	Currency string
	Amount   decimal.Decimal
	Status   string
	Created  time.Time
}
