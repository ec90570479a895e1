package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SessionResult carries either a session URL or an error message. Callers
// treat transport and HTTP failures the same way.
type SessionResult struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

func (r SessionResult) OK() bool { return r.Error == "" && r.URL != "" }

// SessionClient calls the billing session endpoints on behalf of a signed-in
// user.
type SessionClient struct {
	BaseURL    string
	HTTP       *http.Client
	SuccessURL string
	CancelURL  string
	ReturnURL  string
}

func NewSessionClient(baseURL, appURL string) *SessionClient {
	appURL = strings.TrimRight(appURL, "/")
	return &SessionClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		SuccessURL: appURL + "/billing?checkout=success",
		CancelURL:  appURL + "/pricing?checkout=cancelled",
		ReturnURL:  appURL + "/billing",
	}
}

type checkoutRequest struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type portalRequest struct {
	CustomerID string `json:"customerId"`
	ReturnURL  string `json:"returnUrl"`
}

func (c *SessionClient) CreateCheckoutSession(ctx context.Context, userID, email, token string) SessionResult {
	return c.post(ctx, "/api/v1/billing/create-checkout-session", token, checkoutRequest{
		UserID: userID, Email: email, SuccessURL: c.SuccessURL, CancelURL: c.CancelURL,
	})
}

func (c *SessionClient) CreatePortalSession(ctx context.Context, customerID, token string) SessionResult {
	return c.post(ctx, "/api/v1/billing/create-portal-session", token, portalRequest{
		CustomerID: customerID, ReturnURL: c.ReturnURL,
	})
}

func (c *SessionClient) post(ctx context.Context, path, token string, payload interface{}) SessionResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return SessionResult{Error: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return SessionResult{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return SessionResult{Error: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var out SessionResult
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error == "" {
			out.Error = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return SessionResult{Error: out.Error}
	}
	if decodeErr != nil {
		return SessionResult{Error: fmt.Sprintf("decode response: %v", decodeErr)}
	}
	if out.URL == "" && out.Error == "" {
		out.Error = "response carried no session url"
	}
	return out
}
