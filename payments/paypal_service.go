package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
)

// PayoutItem is a single transfer to a PayPal account. SenderBatchID must be
// stable across retries so PayPal can reject duplicates.
type PayoutItem struct {
	SenderBatchID string
	Receiver      string
	Amount        decimal.Decimal
	Currency      string
	Note          string
}

type PayPalClient struct {
	apiBase      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	attempts     uint
	delay        time.Duration
}

func NewPayPalClient(apiBase, clientID, clientSecret string) *PayPalClient {
	return &PayPalClient{
		apiBase:      strings.TrimRight(apiBase, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		attempts:     3,
		delay:        500 * time.Millisecond,
	}
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type payoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

// statusError is returned for non-success responses; 5xx and 429 are retried.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("paypal returned %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (p *PayPalClient) getAccessToken(ctx context.Context) (string, error) {
	reqBody := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/v1/oauth2/token", reqBody)
	if err != nil {
		return "", err
	}

	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &statusError{code: resp.StatusCode, body: string(body)}
	}

	var tokenResp accessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}
	return tokenResp.AccessToken, nil
}

// SendPayout submits the item and returns PayPal's payout batch id.
func (p *PayPalClient) SendPayout(ctx context.Context, item PayoutItem) (string, error) {
	currency := item.Currency
	if currency == "" {
		currency = "USD"
	}
	payload := map[string]interface{}{
		"sender_batch_header": map[string]string{
			"sender_batch_id": item.SenderBatchID,
			"email_subject":   "You have a payout!",
		},
		"items": []map[string]interface{}{
			{
				"recipient_type": "EMAIL",
				"receiver":       item.Receiver,
				"note":           item.Note,
				"sender_item_id": item.SenderBatchID,
				"amount": map[string]string{
					"value":    item.Amount.StringFixed(2),
					"currency": currency,
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var batchID string
	err = retry.Do(
		func() error {
			id, err := p.postPayout(ctx, body)
			if err != nil {
				slog.Warn("paypal payout attempt failed", slog.String("batch", item.SenderBatchID), slog.Any("error", err))
				return err
			}
			batchID = id
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
	if err != nil {
		return "", fmt.Errorf("send paypal payout: %w", err)
	}
	return batchID, nil
}

func (p *PayPalClient) postPayout(ctx context.Context, body []byte) (string, error) {
	accessToken, err := p.getAccessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/v1/payments/payouts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	var out payoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.BatchHeader.PayoutBatchID, nil
}
