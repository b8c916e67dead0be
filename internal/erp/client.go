// Package erp talks to the MKG REST gateway. Injection is deliberate and
// slow: one line item per request, rate limited, with retry on transient
// gateway failures.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"elcotec/internal"
	"elcotec/internal/config"
	"elcotec/internal/customers"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.MKGTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.MKGRateLimit),
	}
}

// InjectResult summarizes one injection batch.
type InjectResult struct {
	Injected int
	Skipped  int
}

// InjectItems pushes prepared line items into MKG under the customer's
// administration. Items that fail are reported and skipped; the batch keeps
// going because the remaining items are independent transactions.
func (c *Client) InjectItems(ctx context.Context, profile customers.Profile, classified internal.ContentType, items []internal.LineItem) (InjectResult, error) {
	var result InjectResult
	for _, item := range items {
		if err := c.InjectItem(ctx, profile, classified, item); err != nil {
			fmt.Printf("erp: inject %s %s failed: %v\n", classified, item.ArticleCode, err)
			result.Skipped++
			continue
		}
		result.Injected++
	}
	return result, nil
}

func (c *Client) InjectItem(ctx context.Context, profile customers.Profile, classified internal.ContentType, item internal.LineItem) error {
	endpoint, payload, err := injectionPayload(profile, classified, item)
	if err != nil {
		return err
	}

	if c.cfg.MKGDryRun {
		body, _ := json.Marshal(payload)
		fmt.Printf("erp: dry-run POST %s %s\n", endpoint, string(body))
		return nil
	}

	_, err = c.postJSON(ctx, endpoint, payload)
	return err
}

func injectionPayload(profile customers.Profile, classified internal.ContentType, item internal.LineItem) (string, map[string]any, error) {
	payload := map[string]any{
		"administration": profile.Administration,
		"debtor":         profile.DebtorNumber,
		"relation":       profile.RelationNumber,
		"articleCode":    item.ArticleCode,
		"description":    item.Description,
		"unit":           item.Unit,
		"priority":       item.Priority,
		"status":         item.Status,
	}
	if item.Quantity != nil {
		payload["quantity"] = *item.Quantity
	}

	switch {
	case classified == internal.ContentOrder && item.Order != nil:
		payload["poNumber"] = item.Order.PONumber
		if item.Order.UnitPrice != nil {
			payload["unitPrice"] = *item.Order.UnitPrice
		}
		if item.Order.RequestedDate != "" {
			payload["requestedDate"] = item.Order.RequestedDate
		}
		return "sales-orders", payload, nil

	case classified == internal.ContentQuote && item.Quote != nil:
		payload["rfqNumber"] = item.Quote.RFQNumber
		if item.Quote.QuotedPrice != nil {
			payload["quotedPrice"] = *item.Quote.QuotedPrice
		}
		if item.Quote.ValidUntil != "" {
			payload["validUntil"] = item.Quote.ValidUntil
		}
		return "quotations", payload, nil

	case classified == internal.ContentRevision && item.Revision != nil:
		payload["currentRev"] = item.Revision.CurrentRev
		payload["newRev"] = item.Revision.NewRev
		payload["reason"] = item.Revision.Reason
		payload["approvalRequired"] = item.Revision.ApprovalRequired
		if item.Revision.DrawingNumber != "" {
			payload["drawingNumber"] = item.Revision.DrawingNumber
		}
		return "revisions", payload, nil
	}

	return "", nil, fmt.Errorf("item %s does not match classification %s", item.ArticleCode, classified)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	if strings.TrimSpace(c.cfg.MKGAPIToken) == "" {
		return nil, errors.New("missing MKG_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.MKGAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.MKGAPIToken)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("mkg status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("mkg api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("mkg api unsuccessful: %s", string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("mkg request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
