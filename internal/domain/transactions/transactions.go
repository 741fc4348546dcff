package transactions

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avmarkin/ledgersvc/internal/domain/currency"
)

var (
	ErrZeroAmount    = errors.New("transaction amount is zero")
	ErrStatusUnknown = errors.New("unknown transaction status")
)

// Status is the lifecycle state of a ledger entry. The only legal transition
// is StatusProcessed to StatusRollbacked, exactly once.
type Status string

const (
	StatusProcessed  Status = "PROCESSED"
	StatusRollbacked Status = "ROLLBACKED"
)

func (s Status) String() string {
	return string(s)
}

// ParseStatus validates a status value at the boundary.
func ParseStatus(status string) (Status, error) {
	switch status {
	case "PROCESSED":
		return StatusProcessed, nil
	case "ROLLBACKED":
		return StatusRollbacked, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrStatusUnknown, status)
	}
}

// Transaction is an immutable ledger entry. A positive amount is a deposit,
// a negative amount a withdrawal; zero amounts are rejected at construction.
type Transaction struct {
	id      int64
	userID  int64
	cur     currency.Currency
	amount  decimal.Decimal
	status  Status
	created time.Time
}

// New creates a processed ledger entry for the given signed amount.
func New(userID int64, cur currency.Currency, amount decimal.Decimal) (*Transaction, error) {
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}

	return &Transaction{
		userID:  userID,
		cur:     cur,
		amount:  amount,
		status:  StatusProcessed,
		created: time.Now().UTC(),
	}, nil
}

// Restore rebuilds a ledger entry from stored state.
func Restore(id, userID int64, cur currency.Currency, amount decimal.Decimal, status Status, created time.Time) *Transaction {
	return &Transaction{
		id:      id,
		userID:  userID,
		cur:     cur,
		amount:  amount,
		status:  status,
		created: created,
	}
}

func (t *Transaction) ID() int64 {
	return t.id
}

func (t *Transaction) UserID() int64 {
	return t.userID
}

func (t *Transaction) Currency() currency.Currency {
	return t.cur
}

func (t *Transaction) Amount() decimal.Decimal {
	return t.amount
}

func (t *Transaction) Status() Status {
	return t.status
}

func (t *Transaction) Created() time.Time {
	return t.created
}

func (t *Transaction) IsRollbacked() bool {
	return t.status == StatusRollbacked
}

// IsDeposit reports whether the entry credits the balance.
func (t *Transaction) IsDeposit() bool {
	return t.amount.IsPositive()
}

// ReversalDelta is the signed amount that undoes this entry: withdrawals
// refund their magnitude, deposits debit their magnitude.
func (t *Transaction) ReversalDelta() decimal.Decimal {
	return t.amount.Neg()
}

func (t *Transaction) SetID(id int64) {
	t.id = id
}

func (t *Transaction) SetStatus(status Status) {
	t.status = status
}
