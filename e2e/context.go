// Package e2e drives a running server through its public HTTP surface with
// godog feature scenarios. It lives in its own module so the main build never
// pulls the cucumber toolchain.
//
// Point it at a server with E2E_BASE_URL (default http://localhost:8080) and
// set E2E_ADMIN_TOKEN to the server's ADMIN_TOKEN so scenarios can mint
// holder tokens.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TestContext carries per-scenario state: the HTTP client, the scenario's
// holder identity, and the last response received.
type TestContext struct {
	baseURL    string
	adminToken string
	client     *http.Client

	holder      string
	accessToken string
	lastNonce   string

	lastStatus int
	lastBody   map[string]any
}

// NewTestContext reads the target server from the environment.
func NewTestContext() *TestContext {
	base := os.Getenv("E2E_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	admin := os.Getenv("E2E_ADMIN_TOKEN")
	if admin == "" {
		admin = "e2e-admin-token"
	}
	return &TestContext{
		baseURL:    strings.TrimRight(base, "/"),
		adminToken: admin,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Reset clears scenario state and picks a fresh holder so scenarios cannot
// observe each other's credentials.
func (tc *TestContext) Reset() {
	tc.holder = "e2e-" + uuid.NewString()[:8]
	tc.accessToken = ""
	tc.lastNonce = ""
	tc.lastStatus = 0
	tc.lastBody = nil
}

// Holder returns the scenario's holder identity.
func (tc *TestContext) Holder() string { return tc.holder }

// SetAccessToken stores the bearer token used by subsequent holder requests.
func (tc *TestContext) SetAccessToken(token string) { tc.accessToken = token }

// NewNonce generates a fresh operation nonce and remembers it as the current
// one, so follow-up steps can resubmit or query it.
func (tc *TestContext) NewNonce() string {
	tc.lastNonce = uuid.NewString()
	return tc.lastNonce
}

// CurrentNonce returns the most recently generated nonce.
func (tc *TestContext) CurrentNonce() string { return tc.lastNonce }

// POST sends a JSON body as the scenario's holder. The access token, when
// held, rides along as a bearer token.
func (tc *TestContext) POST(path string, body any) error {
	headers := map[string]string{}
	if tc.accessToken != "" {
		headers["Authorization"] = "Bearer " + tc.accessToken
	}
	return tc.send(http.MethodPost, path, body, headers)
}

// GET fetches a path with optional extra headers.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.send(http.MethodGet, path, nil, headers)
}

// POSTAsOperator sends a JSON body with the admin token header.
func (tc *TestContext) POSTAsOperator(path string, body any) error {
	return tc.send(http.MethodPost, path, body, map[string]string{"X-Admin-Token": tc.adminToken})
}

// GETAsOperator fetches a path with the admin token header.
func (tc *TestContext) GETAsOperator(path string) error {
	return tc.send(http.MethodGet, path, nil, map[string]string{"X-Admin-Token": tc.adminToken})
}

func (tc *TestContext) send(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if len(raw) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("decode response body %q: %w", string(raw), err)
		}
		tc.lastBody = decoded
	}
	return nil
}

// GetStatus returns the last response status code.
func (tc *TestContext) GetStatus() int { return tc.lastStatus }

// GetResponseField resolves a field from the last JSON response. Dotted
// paths descend into nested objects, e.g. "result.remaining_quota".
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no response body captured")
	}
	var current any = tc.lastBody
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return current, nil
}

// ResponseContains reports whether the last response has the field.
func (tc *TestContext) ResponseContains(field string) bool {
	_, err := tc.GetResponseField(field)
	return err == nil
}
