package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avmarkin/ledgersvc/internal/domain/balances"
	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

type balanceKey struct {
	userID   int64
	currency currency.Currency
}

// Storage is a mutex-guarded in-memory implementation of storage.Storage.
// A single mutex spans users, balances and transactions so that every
// check-then-update sequence is one atomic unit, matching the transactional
// contract of the Postgres implementation.
type Storage struct {
	mu            sync.Mutex
	users         map[int64]*users.User
	usersByEmail  map[string]int64
	balances      map[balanceKey]*balances.Balance
	transactions  map[int64]*transactions.Transaction
	nextUserID    int64
	nextBalanceID int64
	nextTxnID     int64
}

func NewStorage() *Storage {
	return &Storage{
		users:         make(map[int64]*users.User),
		usersByEmail:  make(map[string]int64),
		balances:      make(map[balanceKey]*balances.Balance),
		transactions:  make(map[int64]*transactions.Transaction),
		nextUserID:    1,
		nextBalanceID: 1,
		nextTxnID:     1,
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}

func (s *Storage) CreateUser(_ context.Context, usr *users.User) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByEmail[usr.Email()]; ok {
		return nil, storage.ErrUserAlreadyExists
	}

	usr.SetID(s.nextUserID)
	s.nextUserID++

	s.users[usr.ID()] = usr
	s.usersByEmail[usr.Email()] = usr.ID()

	for _, cur := range currency.Currencies() {
		blnc := balances.NewBalance(usr.ID(), cur)
		blnc.SetID(s.nextBalanceID)
		s.nextBalanceID++

		s.balances[balanceKey{userID: usr.ID(), currency: cur}] = blnc
	}

	return usr, nil
}

func (s *Storage) GetUser(_ context.Context, userID int64) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	return usr, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.usersByEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	return s.users[userID], nil
}

func (s *Storage) GetUsers(_ context.Context) ([]*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*users.User, 0, len(s.users))
	for _, usr := range s.users {
		list = append(list, usr)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Created().Before(list[j].Created())
	})

	return list, nil
}

func (s *Storage) GetUsersCreatedBetween(_ context.Context, from, to time.Time) ([]*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*users.User, 0)

	for _, usr := range s.users {
		if created := usr.Created(); !created.Before(from) && created.Before(to) {
			list = append(list, usr)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Created().Before(list[j].Created())
	})

	return list, nil
}

func (s *Storage) UpdateUserStatus(_ context.Context, userID int64, status users.Status) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	usr.SetStatus(status)

	return usr, nil
}

func (s *Storage) UpdateUserRole(_ context.Context, userID int64, role users.Role) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	usr.SetRole(role)

	return usr, nil
}

func (s *Storage) UpdateUserPassword(_ context.Context, userID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	usr.SetPasswordHash(passwordHash)

	return nil
}

func (s *Storage) GetUserBalance(_ context.Context, userID int64, cur currency.Currency) (*balances.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blnc, ok := s.balances[balanceKey{userID: userID, currency: cur}]
	if !ok {
		return nil, storage.ErrUserBalanceNotFound
	}

	return blnc, nil
}

func (s *Storage) GetUserBalances(_ context.Context, userID int64) ([]*balances.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*balances.Balance, 0)

	for _, blnc := range s.balances {
		if blnc.UserID() == userID {
			list = append(list, blnc)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Currency() < list[j].Currency()
	})

	return list, nil
}

func (s *Storage) GetTransaction(_ context.Context, transactionID int64) (*transactions.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[transactionID]
	if !ok {
		return nil, storage.ErrTransactionNotFound
	}

	return txn, nil
}

func (s *Storage) GetTransactions(_ context.Context, statuses ...transactions.Status) ([]*transactions.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*transactions.Transaction, 0, len(s.transactions))

	for _, txn := range s.transactions {
		if len(statuses) == 0 {
			list = append(list, txn)

			continue
		}

		for _, status := range statuses {
			if txn.Status() == status {
				list = append(list, txn)

				break
			}
		}
	}

	sortTransactions(list)

	return list, nil
}

func (s *Storage) GetTransactionsByUserID(_ context.Context, userID int64) ([]*transactions.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*transactions.Transaction, 0)

	for _, txn := range s.transactions {
		if txn.UserID() == userID {
			list = append(list, txn)
		}
	}

	sortTransactions(list)

	return list, nil
}

func (s *Storage) GetTransactionsCreatedBetween(_ context.Context, from, to time.Time) ([]*transactions.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*transactions.Transaction, 0)

	for _, txn := range s.transactions {
		if created := txn.Created(); !created.Before(from) && created.Before(to) {
			list = append(list, txn)
		}
	}

	sortTransactions(list)

	return list, nil
}

func (s *Storage) ApplyTransaction(_ context.Context, txn *transactions.Transaction) (*transactions.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blnc, ok := s.balances[balanceKey{userID: txn.UserID(), currency: txn.Currency()}]
	if !ok {
		return nil, storage.ErrUserBalanceNotFound
	}

	newAmount := blnc.Amount().Add(txn.Amount())
	if newAmount.IsNegative() {
		return nil, storage.ErrNegativeBalance
	}

	blnc.SetAmount(newAmount)

	txn.SetID(s.nextTxnID)
	s.nextTxnID++

	s.transactions[txn.ID()] = txn

	return txn, nil
}

func (s *Storage) RollbackTransaction(_ context.Context, transactionID int64) (*transactions.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[transactionID]
	if !ok {
		return nil, storage.ErrTransactionNotFound
	}

	if txn.IsRollbacked() {
		return nil, storage.ErrTransactionAlreadyRollbacked
	}

	blnc, ok := s.balances[balanceKey{userID: txn.UserID(), currency: txn.Currency()}]
	if !ok {
		return nil, storage.ErrUserBalanceNotFound
	}

	newAmount := blnc.Amount().Add(txn.ReversalDelta())
	if newAmount.IsNegative() {
		return nil, storage.ErrNegativeBalance
	}

	blnc.SetAmount(newAmount)
	txn.SetStatus(transactions.StatusRollbacked)

	return txn, nil
}

func sortTransactions(list []*transactions.Transaction) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Created().Equal(list[j].Created()) {
			return list[i].ID() < list[j].ID()
		}

		return list[i].Created().Before(list[j].Created())
	})
}
