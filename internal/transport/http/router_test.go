package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	s.logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

type panicRoutes struct{}

func (panicRoutes) Register(r chi.Router) {
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
}

func (s *RouterSuite) serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func (s *RouterSuite) TestHealthzReportsChecks() {
	health := NewHealthHandler(s.logger,
		HealthCheck{Name: "stream", Ping: func(context.Context) error { return nil }},
		HealthCheck{Name: "store", Ping: func(context.Context) error { return nil }},
	)
	router := NewRouter(s.logger, nil, health)

	rr := s.serve(router, http.MethodGet, "/healthz")

	s.Equal(http.StatusOK, rr.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal("ok", body["status"])
	checks, ok := body["checks"].(map[string]any)
	s.Require().True(ok)
	s.Equal("ok", checks["stream"])
	s.Equal("ok", checks["store"])
}

func (s *RouterSuite) TestHealthzDegradedOnFailedCheck() {
	health := NewHealthHandler(s.logger,
		HealthCheck{Name: "stream", Ping: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)
	router := NewRouter(s.logger, nil, health)

	rr := s.serve(router, http.MethodGet, "/healthz")

	s.Equal(http.StatusServiceUnavailable, rr.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal("degraded", body["status"])
	checks, ok := body["checks"].(map[string]any)
	s.Require().True(ok)
	s.Equal("ok", checks["stream"])
	s.Contains(checks["redis"], "connection refused")
}

func (s *RouterSuite) TestPanicBecomesInternalError() {
	router := NewRouter(s.logger, nil, NewHealthHandler(s.logger), panicRoutes{})

	rr := s.serve(router, http.MethodGet, "/boom")

	s.Equal(http.StatusInternalServerError, rr.Code)
	var body map[string]string
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal("internal", body["error"])
}

func (s *RouterSuite) TestRequestIDAssignedAndEchoed() {
	router := NewRouter(s.logger, nil, NewHealthHandler(s.logger))

	rr := s.serve(router, http.MethodGet, "/healthz")
	s.NotEmpty(rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-chosen-id")
	echo := httptest.NewRecorder()
	router.ServeHTTP(echo, req)
	s.Equal("caller-chosen-id", echo.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestMetricsExposition() {
	router := NewRouter(s.logger, nil, NewHealthHandler(s.logger))

	rr := s.serve(router, http.MethodGet, "/metrics")

	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "go_goroutines")
}
