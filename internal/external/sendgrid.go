package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"daypass/internal/types"
)

const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridClient implements EmailProvider over the SendGrid v3 mail/send API
// with inline content.
type SendGridClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	logger  *slog.Logger
}

// SendGridConfig configures a SendGridClient.
type SendGridConfig struct {
	APIKey  types.SecretString
	BaseURL string // defaults to the public API
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewSendGridClient creates a SendGridClient. base may be nil to build one
// with the default retry policy.
func NewSendGridClient(base *BaseClient, cfg SendGridConfig) *SendGridClient {
	if base == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		base = NewBaseClient(&http.Client{Timeout: timeout}, "sendgrid", DefaultRetryPolicy(), "daypass/1.0",
			WithUpstreamCode(types.ErrCodeUpstreamEmailProvider))
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
	CustomArgs       map[string]string   `json:"custom_args,omitempty"`
}

type sgErrors struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Send posts the message. SendGrid answers 202 with the ID in X-Message-Id.
func (s *SendGridClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	msg := sgMail{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: input.To}}}},
		From:             sgAddress{Email: input.From.Address, Name: input.From.Name},
		Subject:          input.Subject,
	}
	// text/plain must precede text/html.
	if input.BodyText != "" {
		msg.Content = append(msg.Content, sgContent{Type: "text/plain", Value: input.BodyText})
	}
	if input.BodyHTML != "" {
		msg.Content = append(msg.Content, sgContent{Type: "text/html", Value: input.BodyHTML})
	}
	if input.ReferenceID != "" {
		msg.CustomArgs = map[string]string{"reference_id": input.ReferenceID}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode SendGrid payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build SendGrid request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey.Unmask())

	resp, err := s.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return resp.Header.Get("X-Message-Id"), nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(raw))
	var parsed sgErrors
	if json.Unmarshal(raw, &parsed) == nil && len(parsed.Errors) > 0 {
		detail = parsed.Errors[0].Message
	}

	code := types.ErrCodeUpstreamEmailProvider
	if resp.StatusCode == http.StatusForbidden {
		code = types.ErrCodeEmailBlocked
	}
	return "", types.NewAppError(code, fmt.Sprintf("SendGrid returned %d: %s", resp.StatusCode, detail), nil)
}

var _ EmailProvider = (*SendGridClient)(nil)
