package models

import (
	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirmRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type TransactionRequest struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type TransactionResponse struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"user_id"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
	Status   string  `json:"status"`
	Created  string  `json:"created"`
}

type BalanceResponse struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type UserResponse struct {
	ID       int64             `json:"id"`
	Email    string            `json:"email"`
	Status   string            `json:"status"`
	Role     string            `json:"role"`
	Created  string            `json:"created"`
	Balances []BalanceResponse `json:"balances,omitempty"`
}

type AnalyticsWindowResponse struct {
	StartDate                                  string  `json:"start_date"`
	EndDate                                    string  `json:"end_date"`
	RegisteredUserCount                        int     `json:"registered_user_count"`
	RegisteredAndDepositUserCount              int     `json:"registered_and_deposit_user_count"`
	RegisteredAndNotRollbackedDepositUserCount int     `json:"registered_and_not_rollbacked_deposit_user_count"`
	NotRollbackedDepositSum                    float64 `json:"not_rollbacked_deposit_sum"`
	NotRollbackedWithdrawSum                   float64 `json:"not_rollbacked_withdraw_sum"`
	TransactionsCount                          int     `json:"transactions_count"`
	NotRollbackedTransactionsCount             int     `json:"not_rollbacked_transactions_count"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type RoleUpdateRequest struct {
	Role string `json:"role"`
}
