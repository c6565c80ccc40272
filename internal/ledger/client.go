package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a Ledger backed by the remote token service's JSON API. Each
// method is a single HTTP call; the token service enforces treasury
// authority server-side via the API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a gateway client for the token service at baseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ledger base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse ledger base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type mintRequest struct {
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

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (c *Client) Mint(ctx context.Context, kind TokenKind, amount int64) error {
	return c.post(ctx, fmt.Sprintf("/v1/tokens/%s/mint", kind), mintRequest{Amount: amount}, nil)
}

func (c *Client) Transfer(ctx context.Context, kind TokenKind, from, to string, amount int64) error {
	return c.post(ctx, fmt.Sprintf("/v1/tokens/%s/transfer", kind), transferRequest{From: from, To: to, Amount: amount}, nil)
}

func (c *Client) Freeze(ctx context.Context, kind TokenKind, account string) error {
	return c.post(ctx, fmt.Sprintf("/v1/tokens/%s/freeze", kind), accountRequest{Account: account}, nil)
}

func (c *Client) Unfreeze(ctx context.Context, kind TokenKind, account string) error {
	return c.post(ctx, fmt.Sprintf("/v1/tokens/%s/unfreeze", kind), accountRequest{Account: account}, nil)
}

func (c *Client) Burn(ctx context.Context, kind TokenKind, amount int64) error {
	return c.post(ctx, fmt.Sprintf("/v1/tokens/%s/burn", kind), mintRequest{Amount: amount}, nil)
}

func (c *Client) Wipe(ctx context.Context, kind TokenKind, account string, amount int64) error {
	return c.post(ctx, fmt.Sprintf("/v1/tokens/%s/wipe", kind), wipeRequest{Account: account, Amount: amount}, nil)
}

func (c *Client) Balance(ctx context.Context, account string, kind TokenKind) (int64, error) {
	var out balanceResponse
	path := fmt.Sprintf("/v1/accounts/%s/tokens/%s/balance", url.PathEscape(account), kind)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return c.decodeError(res, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response from %s: %w", path, err)
		}
	}
	return nil
}

// decodeError maps the token service's error codes onto the shared sentinels
// so callers can branch without string matching.
func (c *Client) decodeError(res *http.Response, method, path string) error {
	var body errorResponse
	_ = json.NewDecoder(res.Body).Decode(&body)

	switch body.Error {
	case "insufficient_balance":
		return fmt.Errorf("%s %s: %w", method, path, ErrInsufficientBalance)
	case "account_frozen":
		return fmt.Errorf("%s %s: %w", method, path, ErrAccountFrozen)
	case "unknown_token":
		return fmt.Errorf("%s %s: %w", method, path, ErrUnknownToken)
	}
	if body.Error != "" {
		return fmt.Errorf("%s %s: token service rejected: %s (%s)", method, path, body.Error, body.Description)
	}
	return fmt.Errorf("%s %s: token service returned status %d", method, path, res.StatusCode)
}
