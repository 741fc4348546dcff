package errmsg

import (
	"errors"
	"net/http"
)

type HTTPError struct {
	Code    int
	Message error
}

func NewHTTPError(code int, message error) HTTPError {
	return HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message.Error()
}

var (
	ErrRequestPayloadEmpty = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is empty"),
	)

	ErrRequestPayloadInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is invalid"),
	)
)

var (
	ErrUserAlreadyExists = NewHTTPError(
		http.StatusConflict,
		errors.New("user with this email already exists"),
	)

	ErrUserNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("user does not exist"),
	)

	ErrUserBlocked = NewHTTPError(
		http.StatusForbidden,
		errors.New("user is blocked"),
	)

	ErrUserAlreadyBlocked = NewHTTPError(
		http.StatusBadRequest,
		errors.New("user is already blocked"),
	)

	ErrUserAlreadyActive = NewHTTPError(
		http.StatusBadRequest,
		errors.New("user is already active"),
	)

	ErrUserCredentialsInvalid = NewHTTPError(
		http.StatusUnauthorized,
		errors.New("user credentials invalid"),
	)

	ErrTooManyLoginAttempts = NewHTTPError(
		http.StatusTooManyRequests,
		errors.New("too many failed login attempts, try again later"),
	)
)

var (
	ErrUserBalanceNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("user balance not found"),
	)

	ErrNegativeBalance = NewHTTPError(
		http.StatusPaymentRequired,
		errors.New("operation would make the balance negative"),
	)
)

var (
	ErrTransactionNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("transaction does not exist"),
	)

	ErrTransactionNotOwned = NewHTTPError(
		http.StatusForbidden,
		errors.New("transaction does not belong to user"),
	)

	ErrTransactionAlreadyRollbacked = NewHTTPError(
		http.StatusConflict,
		errors.New("transaction is already rollbacked"),
	)

	ErrTransactionZeroAmount = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("transaction can not have zero amount"),
	)

	ErrCurrencyUnknown = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("unknown currency"),
	)
)

var (
	ErrUserStatusUnknown = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("unknown user status"),
	)

	ErrUserRoleUnknown = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("unknown user role"),
	)

	ErrResetCodeInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("password reset code is invalid or expired"),
	)
)
