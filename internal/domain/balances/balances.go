package balances

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/avmarkin/ledgersvc/internal/domain/currency"
)

// Balance is one user's holdings in a single currency. The non-negativity
// invariant is enforced by the transaction engine before commit, not here.
type Balance struct {
	id       int64
	userID   int64
	currency currency.Currency
	amount   decimal.Decimal
	created  time.Time
}

// NewBalance creates a zero balance, as seeded at user registration.
func NewBalance(userID int64, cur currency.Currency) *Balance {
	return &Balance{
		userID:   userID,
		currency: cur,
		amount:   decimal.Zero,
		created:  time.Now().UTC(),
	}
}

// RestoreBalance rebuilds a balance entity from stored state.
func RestoreBalance(id, userID int64, cur currency.Currency, amount decimal.Decimal, created time.Time) *Balance {
	return &Balance{
		id:       id,
		userID:   userID,
		currency: cur,
		amount:   amount,
		created:  created,
	}
}

func (b *Balance) ID() int64 {
	return b.id
}

func (b *Balance) UserID() int64 {
	return b.userID
}

func (b *Balance) Currency() currency.Currency {
	return b.currency
}

func (b *Balance) Amount() decimal.Decimal {
	return b.amount
}

func (b *Balance) Created() time.Time {
	return b.created
}

func (b *Balance) SetID(id int64) {
	b.id = id
}

func (b *Balance) SetAmount(amount decimal.Decimal) {
	b.amount = amount
}
