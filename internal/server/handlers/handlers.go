package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/avmarkin/ledgersvc/internal/analytics"
	"github.com/avmarkin/ledgersvc/internal/auth"
	"github.com/avmarkin/ledgersvc/internal/directory"
	"github.com/avmarkin/ledgersvc/internal/domain/balances"
	"github.com/avmarkin/ledgersvc/internal/domain/currency"
	"github.com/avmarkin/ledgersvc/internal/domain/transactions"
	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/errmsg"
	"github.com/avmarkin/ledgersvc/internal/ledger"
	"github.com/avmarkin/ledgersvc/internal/loginguard"
	"github.com/avmarkin/ledgersvc/internal/passreset"
	"github.com/avmarkin/ledgersvc/internal/server/models"
	"github.com/avmarkin/ledgersvc/internal/storage"
)

type Handlers struct {
	storage   storage.Storage
	log       *slog.Logger
	auth      *auth.JWTAuth
	directory *directory.Directory
	engine    *ledger.Engine
	reporter  *analytics.Reporter
	guard     *loginguard.Guard
	passreset *passreset.Service
}

// NewHandlers returns a new Handlers instance.
func NewHandlers(
	store storage.Storage,
	dir *directory.Directory,
	engine *ledger.Engine,
	reporter *analytics.Reporter,
	guard *loginguard.Guard,
	reset *passreset.Service,
	opts ...Option,
) *Handlers {
	handlers := &Handlers{
		storage:   store,
		log:       slog.New(slog.NewJSONHandler(os.Stderr, nil)),
		auth:      auth.NewJWTAuth([]byte("")),
		directory: dir,
		engine:    engine,
		reporter:  reporter,
		guard:     guard,
		passreset: reset,
	}

	// Apply options
	for _, opt := range opts {
		opt(handlers)
	}

	return handlers
}

// Option is a functional option for Handlers.
type Option func(h *Handlers)

// WithLogger is a option for Handlers that sets logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		h.log = logger
	}
}

func WithAuth(auth *auth.JWTAuth) Option {
	return func(h *Handlers) {
		h.auth = auth
	}
}

type JSONResponse struct {
	Message any `json:"message,omitempty"`
	Error   any `json:"error,omitempty"`
}

func handleJSONResponse(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func handleError(w http.ResponseWriter, err errmsg.HTTPError) {
	resp := &JSONResponse{
		Error: err.Error(),
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(err.Code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// mapBusinessError translates engine and storage failures into the stable
// user-facing error taxonomy. Unknown failures become a 500.
func mapBusinessError(err error) errmsg.HTTPError {
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return errmsg.ErrUserNotFound
	case errors.Is(err, storage.ErrUserAlreadyExists):
		return errmsg.ErrUserAlreadyExists
	case errors.Is(err, storage.ErrUserBalanceNotFound):
		return errmsg.ErrUserBalanceNotFound
	case errors.Is(err, storage.ErrNegativeBalance):
		return errmsg.ErrNegativeBalance
	case errors.Is(err, storage.ErrTransactionNotFound):
		return errmsg.ErrTransactionNotFound
	case errors.Is(err, storage.ErrTransactionAlreadyRollbacked):
		return errmsg.ErrTransactionAlreadyRollbacked
	case errors.Is(err, ledger.ErrUserBlocked), errors.Is(err, directory.ErrUserBlocked):
		return errmsg.ErrUserBlocked
	case errors.Is(err, ledger.ErrTransactionNotOwned):
		return errmsg.ErrTransactionNotOwned
	case errors.Is(err, directory.ErrUserAlreadyBlocked):
		return errmsg.ErrUserAlreadyBlocked
	case errors.Is(err, directory.ErrUserAlreadyActive):
		return errmsg.ErrUserAlreadyActive
	case errors.Is(err, transactions.ErrZeroAmount):
		return errmsg.ErrTransactionZeroAmount
	default:
		return errmsg.NewHTTPError(http.StatusInternalServerError, err)
	}
}

func transactionResponse(txn *transactions.Transaction) models.TransactionResponse {
	return models.TransactionResponse{
		ID:       txn.ID(),
		UserID:   txn.UserID(),
		Currency: txn.Currency().String(),
		Amount:   txn.Amount().InexactFloat64(),
		Status:   txn.Status().String(),
		Created:  txn.Created().Format(time.RFC3339),
	}
}

func balanceResponses(blncs []*balances.Balance) []models.BalanceResponse {
	resp := make([]models.BalanceResponse, 0, len(blncs))

	for _, blnc := range blncs {
		resp = append(resp, models.BalanceResponse{
			Currency: blnc.Currency().String(),
			Amount:   blnc.Amount().InexactFloat64(),
		})
	}

	return resp
}

// userIDFromToken reads the authenticated user id from the JWT sub claim.
func userIDFromToken(r *http.Request) (int64, error) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(token.Subject(), 10, 64)
	if err != nil {
		return 0, err
	}

	return userID, nil
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.log.Error("storage.Ping", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var payload models.RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return
		}

		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	usr, err := h.directory.CreateUser(r.Context(), payload.Email, payload.FirstName, payload.LastName, payload.Password)
	if err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.log.Error("directory.CreateUser()", slog.Any("error", err))
			handleError(w, errmsg.ErrUserAlreadyExists)

			return
		}

		if errors.Is(err, users.ErrUserEmailEmpty) ||
			errors.Is(err, users.ErrUserEmailInvalid) ||
			errors.Is(err, users.ErrUserPasswdEmpty) {
			h.log.Error("directory.CreateUser()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))

			return
		}

		h.log.Error("directory.CreateUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	token, err := h.auth.CreateJWTString(strconv.FormatInt(usr.ID(), 10), usr.Role())
	if err != nil {
		h.log.Error("auth.CreateJWTString()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	w.Header().Set("Authorization", "Bearer "+token)

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: token})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var payload models.LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return
		}

		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	if err := h.guard.Check(r.Context(), payload.Email); err != nil {
		if errors.Is(err, loginguard.ErrTooManyAttempts) {
			h.log.Error("guard.Check()", slog.Any("error", err))
			handleError(w, errmsg.ErrTooManyLoginAttempts)

			return
		}

		h.log.Error("guard.Check()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	usr, err := h.directory.GetActiveUserByEmail(r.Context(), payload.Email)
	if err != nil {
		h.log.Error("directory.GetActiveUserByEmail()", slog.Any("error", err))
		handleError(w, mapBusinessError(err))

		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash()), []byte(payload.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			if err := h.guard.Fail(r.Context(), payload.Email); err != nil {
				h.log.Error("guard.Fail()", slog.Any("error", err))
			}

			h.log.Error("bcrypt.CompareHashAndPassword()", slog.Any("error", err))
			handleError(w, errmsg.ErrUserCredentialsInvalid)

			return
		}

		h.log.Error("bcrypt.CompareHashAndPassword()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	if err := h.guard.Reset(r.Context(), payload.Email); err != nil {
		h.log.Error("guard.Reset()", slog.Any("error", err))
	}

	token, err := h.auth.CreateJWTString(strconv.FormatInt(usr.ID(), 10), usr.Role())
	if err != nil {
		h.log.Error("auth.CreateJWTString()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	w.Header().Set("Authorization", "Bearer "+token)

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: token})
}

func (h *Handlers) PasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var payload models.PasswordResetRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	if err := h.passreset.Request(r.Context(), payload.Email); err != nil {
		// Deliberately not surfaced: the response must not reveal whether
		// the email is registered.
		h.log.Error("passreset.Request()", slog.Any("error", err))
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{
		Message: "if your email is registered, you will receive password reset instructions",
	})
}

func (h *Handlers) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var payload models.PasswordResetConfirmRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	if err := h.passreset.Confirm(r.Context(), payload.Email, payload.Code, payload.Password); err != nil {
		if errors.Is(err, passreset.ErrNoCode) || errors.Is(err, passreset.ErrCodeInvalid) {
			h.log.Error("passreset.Confirm()", slog.Any("error", err))
			handleError(w, errmsg.ErrResetCodeInvalid)

			return
		}

		h.log.Error("passreset.Confirm()", slog.Any("error", err))
		handleError(w, mapBusinessError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "password changed successfully"})
}

func (h *Handlers) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromToken(r)
	if err != nil {
		h.log.Error("userIDFromToken()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	blncs, err := h.directory.GetUserBalances(r.Context(), userID)
	if err != nil {
		h.log.Error("directory.GetUserBalances()", slog.Any("error", err))
		handleError(w, mapBusinessError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, balanceResponses(blncs))
}

func (h *Handlers) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var payload models.TransactionRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return
		}

		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	userID, err := userIDFromToken(r)
	if err != nil {
		h.log.Error("userIDFromToken()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	cur, err := currency.Parse(payload.Currency)
	if err != nil {
		h.log.Error("currency.Parse()", slog.Any("error", err))
		handleError(w, errmsg.ErrCurrencyUnknown)

		return
	}

	txn, err := h.engine.CreateTransaction(r.Context(), userID, cur, payload.Amount)
	if err != nil {
		h.log.Error("engine.CreateTransaction()", slog.Any("error", err))
		handleError(w, mapBusinessError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, transactionResponse(txn))
}

func (h *Handlers) RollbackTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromToken(r)
	if err != nil {
		h.log.Error("userIDFromToken()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	transactionID, err := strconv.ParseInt(chi.URLParam(r, "transactionID"), 10, 64)
	if err != nil {
		h.log.Error("strconv.ParseInt()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	txn, err := h.engine.RollbackTransaction(r.Context(), userID, transactionID)
	if err != nil {
		h.log.Error("engine.RollbackTransaction()", slog.Any("error", err))
		handleError(w, mapBusinessError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, transactionResponse(txn))
}

func (h *Handlers) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromToken(r)
	if err != nil {
		h.log.Error("userIDFromToken()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	txns, err := h.storage.GetTransactionsByUserID(r.Context(), userID)
	if err != nil {
		h.log.Error("storage.GetTransactionsByUserID()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	if len(txns) == 0 {
		handleJSONResponse(w, http.StatusNoContent, []models.TransactionResponse{})

		return
	}

	resp := make([]models.TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		resp = append(resp, transactionResponse(txn))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) GetUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.directory.ListAccounts(r.Context())
	if err != nil {
		h.log.Error("directory.ListAccounts()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.UserResponse, 0, len(accounts))
	for _, account := range accounts {
		resp = append(resp, models.UserResponse{
			ID:       account.User.ID(),
			Email:    account.User.Email(),
			Status:   account.User.Status().String(),
			Role:     account.User.Role().String(),
			Created:  account.User.Created().Format(time.RFC3339),
			Balances: balanceResponses(account.Balances),
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	var payload models.StatusUpdateRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.log.Error("strconv.ParseInt()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	status, err := users.ParseStatus(payload.Status)
	if err != nil {
		h.log.Error("users.ParseStatus()", slog.Any("error", err))
		handleError(w, errmsg.ErrUserStatusUnknown)

		return
	}

	usr, err := h.directory.UpdateStatus(r.Context(), userID, status)
	if err != nil {
		h.log.Error("directory.UpdateStatus()", slog.Any("error", err))
		handleError(w, mapBusinessError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.UserResponse{
		ID:      usr.ID(),
		Email:   usr.Email(),
		Status:  usr.Status().String(),
		Role:    usr.Role().String(),
		Created: usr.Created().Format(time.RFC3339),
	})
}

func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var payload models.RoleUpdateRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.log.Error("strconv.ParseInt()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	role, err := users.ParseRole(payload.Role)
	if err != nil {
		h.log.Error("users.ParseRole()", slog.Any("error", err))
		handleError(w, errmsg.ErrUserRoleUnknown)

		return
	}

	usr, err := h.directory.UpdateRole(r.Context(), userID, role)
	if err != nil {
		h.log.Error("directory.UpdateRole()", slog.Any("error", err))
		handleError(w, mapBusinessError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.UserResponse{
		ID:      usr.ID(),
		Email:   usr.Email(),
		Status:  usr.Status().String(),
		Role:    usr.Role().String(),
		Created: usr.Created().Format(time.RFC3339),
	})
}

func (h *Handlers) GetTransactions(w http.ResponseWriter, r *http.Request) {
	statuses := make([]transactions.Status, 0, 1)

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status, err := transactions.ParseStatus(statusParam)
		if err != nil {
			h.log.Error("transactions.ParseStatus()", slog.Any("error", err))
			handleError(w, errmsg.ErrRequestPayloadInvalid)

			return
		}

		statuses = append(statuses, status)
	}

	txns, err := h.storage.GetTransactions(r.Context(), statuses...)
	if err != nil {
		h.log.Error("storage.GetTransactions()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.TransactionResponse, 0, len(txns))
	for _, txn := range txns {
		resp = append(resp, transactionResponse(txn))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Report(r.Context())
	if err != nil {
		h.log.Error("reporter.Report()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.AnalyticsWindowResponse, 0, len(report))
	for _, window := range report {
		resp = append(resp, models.AnalyticsWindowResponse{
			StartDate:                     window.StartDate.Format("2006-01-02"),
			EndDate:                       window.EndDate.Format("2006-01-02"),
			RegisteredUserCount:           window.RegisteredUserCount,
			RegisteredAndDepositUserCount: window.RegisteredAndDepositUserCount,
			RegisteredAndNotRollbackedDepositUserCount: window.RegisteredAndNotRollbackedDepositUserCount,
			NotRollbackedDepositSum:                    window.NotRollbackedDepositSum.InexactFloat64(),
			NotRollbackedWithdrawSum:                   window.NotRollbackedWithdrawSum.InexactFloat64(),
			TransactionsCount:                          window.TransactionsCount,
			NotRollbackedTransactionsCount:             window.NotRollbackedTransactionsCount,
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}
