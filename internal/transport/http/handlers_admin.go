package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tessera/internal/coordinator/models"
	"tessera/internal/orchestrator"
	"tessera/internal/platform/middleware"
	"tessera/internal/transport/http/shared"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	stringsutil "tessera/pkg/platform/strings"
)

// OperationLister is the admin slice of the coordinator.
type OperationLister interface {
	ListOperations(ctx context.Context, statuses []models.OperationStatus) ([]*models.OperationRecord, error)
}

// HolderVerifier runs the ledger-versus-store reconciliation for one holder.
type HolderVerifier interface {
	VerifyHolder(ctx context.Context, holder id.Holder) (*orchestrator.VerifyReport, error)
}

// TokenIssuer mints holder-bound access tokens for operator use.
type TokenIssuer interface {
	GenerateAccessToken(holder id.Holder, expiresIn time.Duration) (string, error)
}

// AdminHandler serves the operator endpoints behind the shared admin token.
type AdminHandler struct {
	logger     *slog.Logger
	operations OperationLister
	verifier   HolderVerifier
	tokens     TokenIssuer
	adminToken string
}

// NewAdminHandler creates the operator-surface handler. An empty adminToken
// leaves the surface mounted but rejecting everything.
func NewAdminHandler(
	operations OperationLister,
	verifier HolderVerifier,
	tokens TokenIssuer,
	adminToken string,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		logger:     logger,
		operations: operations,
		verifier:   verifier,
		tokens:     tokens,
		adminToken: adminToken,
	}
}

// Register mounts the admin routes.
func (h *AdminHandler) Register(r chi.Router) {
	adminRouter := chi.NewRouter()
	adminRouter.Use(middleware.Timeout(30 * time.Second))
	adminRouter.Use(middleware.ContentTypeJSON)
	adminRouter.Use(middleware.RequireAdminToken(h.adminToken, h.logger))
	adminRouter.Get("/operations", h.handleListOperations)
	adminRouter.Get("/holdings/{holder}", h.handleHoldings)
	adminRouter.Post("/tokens", h.handleMintToken)

	r.Mount("/admin", adminRouter)
}

type listOperationsResponse struct {
	Operations []*models.OperationRecord `json:"operations"`
}

// handleListOperations lists operation records, optionally filtered by a
// comma-separated status list (?status=SUBMITTED,EXECUTING). The filter is
// case-insensitive and repeated values collapse to one.
func (h *AdminHandler) handleListOperations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var statuses []models.OperationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range stringsutil.DedupeAndTrimLower(strings.Split(raw, ",")) {
			statuses = append(statuses, models.OperationStatus(strings.ToUpper(part)))
		}
	}

	records, err := h.operations.ListOperations(ctx, statuses)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "operation listing failed",
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		shared.WriteError(w, err)
		return
	}
	if records == nil {
		records = []*models.OperationRecord{}
	}
	shared.WriteJSON(w, http.StatusOK, listOperationsResponse{Operations: records})
}

// handleHoldings returns the reconciliation report for a holder: expected
// versus actual ledger balances with a per-check verdict.
func (h *AdminHandler) handleHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, err := id.ParseHolder(chi.URLParam(r, "holder"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	report, err := h.verifier.VerifyHolder(ctx, holder)
	if err != nil {
		h.logger.ErrorContext(ctx, "holder verification failed",
			"holder", holder.String(),
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

type mintTokenRequest struct {
	Holder           string `json:"holder"`
	ExpiresInSeconds int64  `json:"expires_in_seconds,omitempty"`
}

type mintTokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// handleMintToken mints a holder-bound bearer token. Operator convenience;
// production deployments front this with a real identity provider.
func (h *AdminHandler) handleMintToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req mintTokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	holder, err := id.ParseHolder(req.Holder)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	expiresIn := time.Duration(req.ExpiresInSeconds) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	token, err := h.tokens.GenerateAccessToken(holder, expiresIn)
	if err != nil {
		h.logger.ErrorContext(ctx, "token mint failed",
			"holder", holder.String(),
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to mint token"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, mintTokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(expiresIn.Seconds()),
	})
}
