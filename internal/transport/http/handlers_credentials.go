package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tessera/internal/coordinator/models"
	"tessera/internal/platform/middleware"
	"tessera/internal/transport/http/shared"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// CoordinatorService is the slice of the coordinator the submit surface uses.
type CoordinatorService interface {
	SubmitIssue(ctx context.Context, holder id.Holder, depositAmount int64, nonce id.Nonce) (*models.OperationRecord, error)
	SubmitAccrue(ctx context.Context, holder id.Holder, amount int64, nonce id.Nonce) (*models.OperationRecord, error)
	SubmitTerminate(ctx context.Context, holder id.Holder, nonce id.Nonce) (*models.OperationRecord, error)
	AwaitOutcome(ctx context.Context, nonce id.Nonce, timeout time.Duration) (*models.OperationRecord, error)
}

// CredentialsHandler serves the authenticated submit endpoints. Submission is
// asynchronous: the default response is 202 with the record in SUBMITTED;
// callers that pass ?wait=true block for the terminal outcome.
type CredentialsHandler struct {
	logger       *slog.Logger
	coordinator  CoordinatorService
	auth         middleware.HolderAuthenticator
	awaitTimeout time.Duration
}

// NewCredentialsHandler creates the submit-surface handler.
func NewCredentialsHandler(
	coordinator CoordinatorService,
	auth middleware.HolderAuthenticator,
	logger *slog.Logger,
	awaitTimeout time.Duration,
) *CredentialsHandler {
	if awaitTimeout <= 0 {
		awaitTimeout = 30 * time.Second
	}
	return &CredentialsHandler{
		logger:       logger,
		coordinator:  coordinator,
		auth:         auth,
		awaitTimeout: awaitTimeout,
	}
}

// Register adds the submit routes with their middleware chain.
func (h *CredentialsHandler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(60 * time.Second))
		gr.Use(middleware.ContentTypeJSON)
		gr.Use(middleware.RequireHolder(h.auth, h.logger))
		gr.Post("/credentials/issue", h.handleIssue)
		gr.Post("/credentials/accrue", h.handleAccrue)
		gr.Post("/credentials/terminate", h.handleTerminate)
	})
}

type issueRequest struct {
	Nonce  string `json:"nonce"`
	Amount int64  `json:"amount"`
}

type accrueRequest struct {
	Nonce  string `json:"nonce"`
	Amount int64  `json:"amount"`
}

type terminateRequest struct {
	Nonce string `json:"nonce"`
}

type submitResponse struct {
	Nonce    string `json:"nonce"`
	Status   string `json:"status"`
	Position *int64 `json:"position,omitempty"`
}

func newSubmitResponse(rec *models.OperationRecord) submitResponse {
	return submitResponse{
		Nonce:    rec.Nonce.String(),
		Status:   rec.Status.String(),
		Position: rec.ConsensusPosition,
	}
}

func (h *CredentialsHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, ok := h.requireHolder(ctx, w)
	if !ok {
		return
	}

	var req issueRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.warnRequest(ctx, "invalid issue request", err)
		shared.WriteError(w, err)
		return
	}
	nonce, err := id.ParseNonce(req.Nonce)
	if err != nil {
		h.warnRequest(ctx, "invalid issue request", err)
		shared.WriteError(w, err)
		return
	}

	rec, err := h.coordinator.SubmitIssue(ctx, holder, req.Amount, nonce)
	h.respondSubmit(w, r, holder, rec, err)
}

func (h *CredentialsHandler) handleAccrue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, ok := h.requireHolder(ctx, w)
	if !ok {
		return
	}

	var req accrueRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.warnRequest(ctx, "invalid accrue request", err)
		shared.WriteError(w, err)
		return
	}
	nonce, err := id.ParseNonce(req.Nonce)
	if err != nil {
		h.warnRequest(ctx, "invalid accrue request", err)
		shared.WriteError(w, err)
		return
	}

	rec, err := h.coordinator.SubmitAccrue(ctx, holder, req.Amount, nonce)
	h.respondSubmit(w, r, holder, rec, err)
}

func (h *CredentialsHandler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, ok := h.requireHolder(ctx, w)
	if !ok {
		return
	}

	var req terminateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		h.warnRequest(ctx, "invalid terminate request", err)
		shared.WriteError(w, err)
		return
	}
	nonce, err := id.ParseNonce(req.Nonce)
	if err != nil {
		h.warnRequest(ctx, "invalid terminate request", err)
		shared.WriteError(w, err)
		return
	}

	rec, err := h.coordinator.SubmitTerminate(ctx, holder, nonce)
	h.respondSubmit(w, r, holder, rec, err)
}

// respondSubmit finishes a submit call: translate errors, optionally await
// the terminal outcome, and pick the status line.
func (h *CredentialsHandler) respondSubmit(w http.ResponseWriter, r *http.Request, holder id.Holder, rec *models.OperationRecord, err error) {
	ctx := r.Context()
	if err != nil {
		switch dErrors.CodeOf(err) {
		case dErrors.CodeInternal, dErrors.CodeLedger:
			h.logger.ErrorContext(ctx, "submit failed",
				"holder", holder.String(),
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		default:
			h.warnRequest(ctx, "submit rejected", err)
		}
		shared.WriteError(w, err)
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		out, aerr := h.coordinator.AwaitOutcome(ctx, rec.Nonce, h.awaitTimeout)
		if aerr == nil {
			shared.WriteJSON(w, http.StatusOK, out)
			return
		}
		if !dErrors.HasCode(aerr, dErrors.CodeTimeout) {
			h.logger.ErrorContext(ctx, "await failed",
				"holder", holder.String(),
				"nonce", rec.Nonce.String(),
				"error", aerr.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
			shared.WriteError(w, aerr)
			return
		}
		// The wait expired but the intent stands; fall through to 202.
	}

	shared.WriteJSON(w, http.StatusAccepted, newSubmitResponse(rec))
}

func (h *CredentialsHandler) requireHolder(ctx context.Context, w http.ResponseWriter) (id.Holder, bool) {
	holder := middleware.GetHolder(ctx)
	if holder.IsNil() {
		// Unreachable when RequireHolder is mounted; guard anyway.
		h.logger.ErrorContext(ctx, "holder missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return holder, true
}

func (h *CredentialsHandler) warnRequest(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
}
