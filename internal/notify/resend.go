package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vigil/internal/services"
)

const DefaultResendURL = "https://api.resend.com/emails"

type ResendConfig struct {
	APIKey   string
	From     string
	Endpoint string
}

type ResendOption func(*ResendNotifier)

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(c *http.Client) ResendOption {
	return func(n *ResendNotifier) { n.client = c }
}

// ResendNotifier delivers email through a Resend-compatible HTTP API.
type ResendNotifier struct {
	cfg    ResendConfig
	client *http.Client
	log    *zap.Logger
}

func NewResendNotifier(cfg ResendConfig, log *zap.Logger, opts ...ResendOption) *ResendNotifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultResendURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	n := &ResendNotifier{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}, log: log}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *ResendNotifier) SendResults(ctx context.Context, msg services.ResultMessage) (string, error) {
	r, err := renderResults(msg)
	if err != nil {
		return "", fmt.Errorf("render results email: %w", err)
	}
	return n.send(ctx, msg.To, r)
}

func (n *ResendNotifier) SendWelcome(ctx context.Context, msg services.WelcomeMessage) (string, error) {
	r, err := renderWelcome(msg)
	if err != nil {
		return "", fmt.Errorf("render welcome email: %w", err)
	}
	return n.send(ctx, msg.To, r)
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (n *ResendNotifier) send(ctx context.Context, to string, r rendered) (string, error) {
	body, err := json.Marshal(resendRequest{From: n.cfg.From, To: []string{to}, Subject: r.Subject, HTML: r.HTML})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("email api request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("email api returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode email api response: %w", err)
	}
	n.log.Debug("email accepted", zap.String("delivery_id", out.ID), zap.String("subject", r.Subject))
	return out.ID, nil
}

var _ services.ResultNotifier = (*ResendNotifier)(nil)
