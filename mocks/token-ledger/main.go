// Command token-ledger is a stand-in for the external token service. It
// implements the slice of the service's JSON API that the coordinator's
// gateway calls, with real balance and freeze semantics held in memory, so a
// full stack can run locally with LEDGER_BASE_URL pointing here.
//
// Configuration:
//
//	MOCK_LEDGER_ADDR      listen address (default :9090)
//	MOCK_LEDGER_API_KEY   if set, requests must carry it in X-API-Key
//	MOCK_TREASURY_ACCOUNT mint and burn act on this account (default treasury)
//	MOCK_VAULT_ACCOUNT    seeded with deposit float at startup (default vault)
//	MOCK_VAULT_FLOAT      size of the deposit float (default 1000000)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"
)

var knownKinds = map[string]bool{
	"membership": true,
	"reward":     true,
	"deposit":    true,
}

type server struct {
	mu       sync.Mutex
	log      *slog.Logger
	apiKey   string
	treasury string
	balances map[string]map[string]int64
	frozen   map[string]map[string]bool
}

func newServer(log *slog.Logger, apiKey, treasury string) *server {
	return &server{
		log:      log,
		apiKey:   apiKey,
		treasury: treasury,
		balances: make(map[string]map[string]int64),
		frozen:   make(map[string]map[string]bool),
	}
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	addr := envOr("MOCK_LEDGER_ADDR", ":9090")
	treasury := envOr("MOCK_TREASURY_ACCOUNT", "treasury")
	vault := envOr("MOCK_VAULT_ACCOUNT", "vault")
	float := envInt64Or("MOCK_VAULT_FLOAT", 1_000_000)

	s := newServer(log, os.Getenv("MOCK_LEDGER_API_KEY"), treasury)
	if float > 0 {
		// The coordinator pays termination refunds out of the vault. Seed it
		// so those transfers clear without a real deposit flow.
		s.credit("deposit", vault, float)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("mock token ledger listening", "addr", addr, "treasury", treasury, "vault_float", float)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("mock token ledger exited", "error", err)
		os.Exit(1)
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tokens/{kind}/mint", s.auth(s.handleMint))
	mux.HandleFunc("POST /v1/tokens/{kind}/transfer", s.auth(s.handleTransfer))
	mux.HandleFunc("POST /v1/tokens/{kind}/freeze", s.auth(s.handleFreeze))
	mux.HandleFunc("POST /v1/tokens/{kind}/unfreeze", s.auth(s.handleUnfreeze))
	mux.HandleFunc("POST /v1/tokens/{kind}/burn", s.auth(s.handleBurn))
	mux.HandleFunc("POST /v1/tokens/{kind}/wipe", s.auth(s.handleWipe))
	mux.HandleFunc("GET /v1/accounts/{account}/tokens/{kind}/balance", s.auth(s.handleBalance))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (s *server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or wrong API key")
			return
		}
		kind := r.PathValue("kind")
		if !knownKinds[kind] {
			writeError(w, http.StatusBadRequest, "unknown_token", "unknown token kind "+strconv.Quote(kind))
			return
		}
		next(w, r)
	}
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type accountRequest struct {
	Account string `json:"account"`
}

type wipeRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

func (s *server) handleMint(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit(kind, s.treasury, req.Amount)
	s.log.Info("minted", "kind", kind, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen[kind][req.From] || s.frozen[kind][req.To] {
		writeError(w, http.StatusConflict, "account_frozen", "account frozen for "+kind)
		return
	}
	if s.balances[kind][req.From] < req.Amount {
		writeError(w, http.StatusUnprocessableEntity, "insufficient_balance", "insufficient "+kind+" balance")
		return
	}
	s.balances[kind][req.From] -= req.Amount
	s.credit(kind, req.To, req.Amount)
	s.log.Info("transferred", "kind", kind, "from", req.From, "to", req.To, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen[kind] == nil {
		s.frozen[kind] = make(map[string]bool)
	}
	s.frozen[kind][req.Account] = true
	s.log.Info("froze", "kind", kind, "account", req.Account)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen[kind] != nil {
		delete(s.frozen[kind], req.Account)
	}
	s.log.Info("unfroze", "kind", kind, "account", req.Account)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleBurn(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[kind][s.treasury] < req.Amount {
		writeError(w, http.StatusUnprocessableEntity, "insufficient_balance", "insufficient treasury balance")
		return
	}
	s.balances[kind][s.treasury] -= req.Amount
	s.log.Info("burned", "kind", kind, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleWipe(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	var req wipeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount must be positive")
		return
	}

	// Wipe is treasury authority: it ignores freezes.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[kind][req.Account] < req.Amount {
		writeError(w, http.StatusUnprocessableEntity, "insufficient_balance", "insufficient "+kind+" balance")
		return
	}
	s.balances[kind][req.Account] -= req.Amount
	s.log.Info("wiped", "kind", kind, "account", req.Account, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleBalance(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	account := r.PathValue("account")

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int64{"balance": s.balances[kind][account]})
}

// credit assumes the caller holds the lock, except during startup seeding.
func (s *server) credit(kind, account string, amount int64) {
	if s.balances[kind] == nil {
		s.balances[kind] = make(map[string]int64)
	}
	s.balances[kind][account] += amount
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
