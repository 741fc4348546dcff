package router

import (
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"github.com/avmarkin/ledgersvc/internal/domain/users"
	"github.com/avmarkin/ledgersvc/internal/server/handlers"
)

type Options struct {
	secret []byte
}

type Option func(r *Options)

func WithSecret(secret []byte) Option {
	return func(o *Options) {
		o.secret = secret
	}
}

func NewRouter(h *handlers.Handlers, opts ...Option) chi.Router {
	r := chi.NewRouter()

	rOpts := Options{
		secret: []byte(""),
	}

	for _, opt := range opts {
		opt(&rOpts)
	}

	tokenAuth := jwtauth.New("HS256", rOpts.secret, nil)

	r.Use(
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Logger,
	)

	r.Get("/ping", h.Ping)

	r.Group(func(r chi.Router) {
		r.Post("/api/user/register", h.Register)
		r.Post("/api/user/login", h.Login)
		r.Post("/api/user/password-reset/request", h.PasswordResetRequest)
		r.Post("/api/user/password-reset/confirm", h.PasswordResetConfirm)
	})

	r.Group(func(r chi.Router) {
		r.Use(
			jwtauth.Verifier(tokenAuth),
			jwtauth.Authenticator(tokenAuth),
		)

		r.Get("/api/user/balance", h.GetBalance)
		r.Get("/api/user/transactions", h.GetUserTransactions)
		r.Post("/api/user/transactions", h.CreateTransaction)
		r.Patch("/api/user/transactions/{transactionID}", h.RollbackTransaction)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)

			r.Get("/api/users", h.GetUsers)
			r.Patch("/api/users/{userID}/status", h.UpdateUserStatus)
			r.Patch("/api/users/{userID}/role", h.UpdateUserRole)
			r.Get("/api/transactions", h.GetTransactions)
			r.Get("/api/transactions/analytics", h.GetAnalytics)
		})
	})

	return r
}

// adminOnly rejects authenticated requests whose token does not carry the
// admin role claim.
func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		if role, ok := claims["role"].(string); !ok || role != users.RoleAdmin.String() {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)

			return
		}

		next.ServeHTTP(w, r)
	})
}
