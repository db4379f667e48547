// Package httpapi serves the browser-facing endpoints: the activation link
// embedded in the activation email, a liveness probe and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/tentech/internal/common"
	"github.com/dmitrijs2005/tentech/internal/logging"
	"github.com/dmitrijs2005/tentech/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Activator redeems activation tokens.
type Activator interface {
	Activate(ctx context.Context, token string) (*models.User, error)
}

// NewRouter wires the HTTP routes. metricsHandler may be nil.
func NewRouter(users Activator, metricsHandler http.Handler, logger logging.Logger) http.Handler {
	h := &activationHandler{users: users, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/activate", h.Activate)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	return r
}

type activationHandler struct {
	users  Activator
	logger logging.Logger
}

// Activate handles GET /activate?token=...
func (h *activationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get(common.ActivationTokenParam)
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	user, err := h.users.Activate(r.Context(), token)
	if err != nil {
		code, msg := activationStatus(err)
		if code == http.StatusInternalServerError {
			h.logger.Error(r.Context(), "activation failed", "error", err)
		}
		http.Error(w, msg, code)
		return
	}

	h.logger.Info(r.Context(), "activated via link", "user_id", user.ID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("account activated"))
}

func activationStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest, "invalid activation link"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusGone, "activation link expired"
	case errors.Is(err, common.ErrAlreadyActivated):
		return http.StatusConflict, "account already activated"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "account not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
