package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	coordmodels "tessera/internal/coordinator/models"
	"tessera/internal/platform/middleware"
	"tessera/internal/status"
	"tessera/internal/transport/http/shared"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// StatusService is the read facade the status endpoints delegate to.
type StatusService interface {
	GetCredentialStatus(ctx context.Context, holder id.Holder) (*status.CredentialStatus, error)
	GetOperationStatus(ctx context.Context, nonce id.Nonce) (*coordmodels.OperationRecord, error)
	GetHistory(ctx context.Context, holder id.Holder) (*status.History, error)
}

// StatusHandler serves the read-only credential and operation views.
type StatusHandler struct {
	logger *slog.Logger
	status StatusService
}

// NewStatusHandler creates the read-surface handler.
func NewStatusHandler(statusService StatusService, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{logger: logger, status: statusService}
}

// Register adds the read routes. They are unauthenticated: credential
// status carries no secrets and the relay's consumers poll it.
func (h *StatusHandler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(15 * time.Second))
		gr.Get("/credentials/{holder}", h.handleCredentialStatus)
		gr.Get("/credentials/{holder}/history", h.handleHistory)
		gr.Get("/operations/{nonce}", h.handleOperationStatus)
	})
}

func (h *StatusHandler) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, err := id.ParseHolder(chi.URLParam(r, "holder"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	view, err := h.status.GetCredentialStatus(ctx, holder)
	if err != nil {
		h.logReadFailure(ctx, "credential status lookup failed", holder.String(), err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *StatusHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, err := id.ParseHolder(chi.URLParam(r, "holder"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	hist, err := h.status.GetHistory(ctx, holder)
	if err != nil {
		h.logReadFailure(ctx, "history lookup failed", holder.String(), err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, hist)
}

func (h *StatusHandler) handleOperationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nonce, err := id.ParseNonce(chi.URLParam(r, "nonce"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rec, err := h.status.GetOperationStatus(ctx, nonce)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logReadFailure(ctx, "operation lookup failed", nonce.String(), err)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rec)
}

func (h *StatusHandler) logReadFailure(ctx context.Context, msg, subject string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"subject", subject,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
}
