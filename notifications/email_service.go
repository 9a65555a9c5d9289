package notifications

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

	"github.com/anjiri1684/tutor_ledger/metrics"
	"github.com/avast/retry-go"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

var ErrInvalidRecipient = errors.New("invalid recipient email")

type Email struct {
	ToName  string
	ToEmail string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, email Email) error
}

type BrevoService struct {
	apiKey      string
	senderEmail string
	senderName  string
	endpoint    string
	client      *http.Client
	attempts    uint
	delay       time.Duration
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewBrevoService returns nil when any setting is missing; callers fall back to Nop.
func NewBrevoService(apiKey, senderEmail, senderName string) *BrevoService {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		slog.Warn("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		return nil
	}
	slog.Info("✅ Email service initialized successfully.")
	return &BrevoService{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
		attempts:    3,
		delay:       time.Second,
	}
}

func (s *BrevoService) Send(ctx context.Context, email Email) error {
	if email.ToEmail == "" || !strings.Contains(email.ToEmail, "@") {
		return fmt.Errorf("%w: %s", ErrInvalidRecipient, email.ToEmail)
	}

	recipientName := email.ToName
	if recipientName == "" {
		recipientName = email.ToEmail[:strings.Index(email.ToEmail, "@")]
	}

	body, err := json.Marshal(brevoPayload{
		Sender:      map[string]string{"name": s.senderName, "email": s.senderEmail},
		To:          []map[string]string{{"email": email.ToEmail, "name": recipientName}},
		Subject:     email.Subject,
		HTMLContent: email.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return retry.Do(
		func() error { return s.post(ctx, body) },
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var perm permanentError
			return !errors.As(err, &perm)
		}),
	)
}

// permanentError marks a 4xx answer from Brevo, which a retry cannot fix.
type permanentError struct {
	status int
	body   string
}

func (e permanentError) Error() string {
	return fmt.Sprintf("brevo rejected email: status %d: %s", e.status, e.body)
}

func (s *BrevoService) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return permanentError{status: resp.StatusCode, body: string(bodyBytes)}
	}
	return fmt.Errorf("brevo API error: status %d: %s", resp.StatusCode, string(bodyBytes))
}

// Nop drops every email. It is used when Brevo is not configured.
type Nop struct{}

func (Nop) Send(context.Context, Email) error { return nil }

// Notifier delivers emails in the background so request handlers never wait
// on the mail provider.
type Notifier struct {
	sender  Sender
	log     *slog.Logger
	timeout time.Duration
}

func NewNotifier(sender Sender, log *slog.Logger) *Notifier {
	if sender == nil {
		sender = Nop{}
	}
	return &Notifier{sender: sender, log: log, timeout: 30 * time.Second}
}

// Deliver sends email synchronously and records the outcome.
func (n *Notifier) Deliver(ctx context.Context, email Email) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.sender.Send(ctx, email); err != nil {
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		n.log.Error("🔥 Failed to send email", slog.String("to", email.ToEmail), slog.Any("error", err))
		return err
	}
	metrics.EmailsSent.WithLabelValues("sent").Inc()
	n.log.Info("✅ Email sent successfully", slog.String("to", email.ToEmail), slog.String("subject", email.Subject))
	return nil
}

// Go sends email on its own goroutine.
func (n *Notifier) Go(email Email) {
	go func() {
		_ = n.Deliver(context.Background(), email)
	}()
}
