package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tessera/internal/coordinator/intent"
	"tessera/internal/coordinator/models"
	credmodels "tessera/internal/credential/models"
	"tessera/internal/orchestrator"
	"tessera/internal/transport/http/mocks"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

//go:generate mockgen -source=handlers_admin.go -destination=mocks/admin-mocks.go -package=mocks OperationLister,HolderVerifier,TokenIssuer

const testAdminToken = "test-admin-token"

type AdminHandlerSuite struct {
	suite.Suite
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

type adminMocks struct {
	operations *mocks.MockOperationLister
	verifier   *mocks.MockHolderVerifier
	tokens     *mocks.MockTokenIssuer
}

func (s *AdminHandlerSuite) newHandler(t *testing.T) (adminMocks, chi.Router) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	m := adminMocks{
		operations: mocks.NewMockOperationLister(ctrl),
		verifier:   mocks.NewMockHolderVerifier(ctrl),
		tokens:     mocks.NewMockTokenIssuer(ctrl),
	}
	handler := NewAdminHandler(m.operations, m.verifier, m.tokens, testAdminToken, logger)
	r := chi.NewRouter()
	handler.Register(r)
	return m, r
}

func (s *AdminHandlerSuite) doAdmin(t *testing.T, router chi.Router, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	}
	return rr.Code, decoded
}

func (s *AdminHandlerSuite) TestHandler_ListOperations() {
	s.T().Run("filtered by status - 200", func(t *testing.T) {
		m, router := s.newHandler(t)
		rec, err := models.NewOperationRecord(id.Nonce(uuid.NewString()), intent.TypeAccrue, time.Now().UTC())
		require.NoError(t, err)
		rec.MarkFailed(nil, "accrual amount exceeds remaining quota", time.Now().UTC())
		m.operations.EXPECT().ListOperations(gomock.Any(), []models.OperationStatus{models.StatusFailed}).
			Return([]*models.OperationRecord{rec}, nil)

		code, body := s.doAdmin(t, router, http.MethodGet, "/admin/operations?status=failed", testAdminToken, "")

		assert.Equal(t, http.StatusOK, code)
		ops, ok := body["operations"].([]any)
		require.True(t, ok)
		require.Len(t, ops, 1)
		first, ok := ops[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "FAILED", first["status"])
	})

	s.T().Run("filter folds case and duplicates - 200", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.operations.EXPECT().ListOperations(gomock.Any(), []models.OperationStatus{models.StatusFailed}).
			Return([]*models.OperationRecord{}, nil)

		code, _ := s.doAdmin(t, router, http.MethodGet, "/admin/operations?status=Failed,failed,FAILED", testAdminToken, "")

		assert.Equal(t, http.StatusOK, code)
	})

	s.T().Run("no filter lists everything - 200", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.operations.EXPECT().ListOperations(gomock.Any(), nil).Return(nil, nil)

		code, body := s.doAdmin(t, router, http.MethodGet, "/admin/operations", testAdminToken, "")

		assert.Equal(t, http.StatusOK, code)
		ops, ok := body["operations"].([]any)
		require.True(t, ok)
		assert.Empty(t, ops)
	})

	s.T().Run("unknown status - 400", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.operations.EXPECT().ListOperations(gomock.Any(), []models.OperationStatus{"BOGUS"}).
			Return(nil, dErrors.Newf(dErrors.CodeValidation, "unknown operation status %q", "BOGUS"))

		code, body := s.doAdmin(t, router, http.MethodGet, "/admin/operations?status=bogus", testAdminToken, "")

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, string(dErrors.CodeValidation), body["error"])
	})

	s.T().Run("missing admin token - 401", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.operations.EXPECT().ListOperations(gomock.Any(), gomock.Any()).Times(0)

		code, body := s.doAdmin(t, router, http.MethodGet, "/admin/operations", "", "")

		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "unauthorized", body["error"])
	})

	s.T().Run("wrong admin token - 401", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.operations.EXPECT().ListOperations(gomock.Any(), gomock.Any()).Times(0)

		code, _ := s.doAdmin(t, router, http.MethodGet, "/admin/operations", "wrong-token", "")

		assert.Equal(t, http.StatusUnauthorized, code)
	})
}

func (s *AdminHandlerSuite) TestHandler_Holdings() {
	s.T().Run("clean reconciliation - 200", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.verifier.EXPECT().VerifyHolder(gomock.Any(), testHolder).Return(&orchestrator.VerifyReport{
			Holder: testHolder,
			Status: credmodels.StatusActiveAccruing,
			Checks: []orchestrator.Check{
				{Name: "membership_units", Expected: 1, Actual: 1, Match: true},
				{Name: "reward_units", Expected: 300, Actual: 300, Match: true},
			},
			Clean: true,
		}, nil)

		code, body := s.doAdmin(t, router, http.MethodGet, "/admin/holdings/holder-1", testAdminToken, "")

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["clean"])
		checks, ok := body["checks"].([]any)
		require.True(t, ok)
		assert.Len(t, checks, 2)
	})

	s.T().Run("ledger unreachable - 502", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.verifier.EXPECT().VerifyHolder(gomock.Any(), testHolder).
			Return(nil, dErrors.Wrap(errors.New("connection refused"), dErrors.CodeLedger, "query membership balance"))

		code, body := s.doAdmin(t, router, http.MethodGet, "/admin/holdings/holder-1", testAdminToken, "")

		assert.Equal(t, http.StatusBadGateway, code)
		assert.Equal(t, string(dErrors.CodeLedger), body["error"])
	})
}

func (s *AdminHandlerSuite) TestHandler_MintToken() {
	s.T().Run("mints holder token - 200", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.tokens.EXPECT().GenerateAccessToken(testHolder, time.Hour).Return("signed-token", nil)

		code, body := s.doAdmin(t, router, http.MethodPost, "/admin/tokens", testAdminToken,
			`{"holder":"holder-1"}`)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "signed-token", body["token"])
		assert.Equal(t, "Bearer", body["token_type"])
		assert.Equal(t, float64(3600), body["expires_in"])
	})

	s.T().Run("custom expiry honored", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.tokens.EXPECT().GenerateAccessToken(testHolder, 5*time.Minute).Return("signed-token", nil)

		code, body := s.doAdmin(t, router, http.MethodPost, "/admin/tokens", testAdminToken,
			`{"holder":"holder-1","expires_in_seconds":300}`)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(300), body["expires_in"])
	})

	s.T().Run("invalid holder - 400", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.tokens.EXPECT().GenerateAccessToken(gomock.Any(), gomock.Any()).Times(0)

		code, body := s.doAdmin(t, router, http.MethodPost, "/admin/tokens", testAdminToken,
			`{"holder":""}`)

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, string(dErrors.CodeValidation), body["error"])
	})

	s.T().Run("signer failure - 500", func(t *testing.T) {
		m, router := s.newHandler(t)
		m.tokens.EXPECT().GenerateAccessToken(testHolder, time.Hour).Return("", errors.New("bad key"))

		code, body := s.doAdmin(t, router, http.MethodPost, "/admin/tokens", testAdminToken,
			`{"holder":"holder-1"}`)

		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, string(dErrors.CodeInternal), body["error"])
	})
}
