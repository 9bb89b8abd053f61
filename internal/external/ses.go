package external

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"daypass/internal/types"
)

// SESAPI is the subset of *sesv2.Client used by SESClient.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClient implements EmailProvider with AWS SES v2 simple content. The SDK
// retries throttling itself, so no BaseClient is involved.
type SESClient struct {
	api       SESAPI
	configSet string
	logger    *slog.Logger
}

// NewSESClient creates an SESClient. configSet may be empty.
func NewSESClient(api SESAPI, configSet string, logger *slog.Logger) *SESClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SESClient{api: api, configSet: configSet, logger: logger}
}

// NewSESClientFromConfig builds the SES v2 client from an AWS config.
func NewSESClientFromConfig(cfg aws.Config, configSet string, logger *slog.Logger) *SESClient {
	return NewSESClient(sesv2.NewFromConfig(cfg), configSet, logger)
}

// Send delivers input through SES.
func (s *SESClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	from := input.From.Address
	if input.From.Name != "" {
		from = (&mail.Address{Name: input.From.Name, Address: input.From.Address}).String()
	}

	body := &sestypes.Body{}
	if input.BodyHTML != "" {
		body.Html = utf8Content(input.BodyHTML)
	}
	if input.BodyText != "" {
		body.Text = utf8Content(input.BodyText)
	}

	params := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &sestypes.Destination{ToAddresses: []string{input.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: utf8Content(input.Subject),
				Body:    body,
			},
		},
	}
	if s.configSet != "" {
		params.ConfigurationSetName = aws.String(s.configSet)
	}
	if input.ReferenceID != "" {
		params.EmailTags = []sestypes.MessageTag{{
			Name:  aws.String("reference_id"),
			Value: aws.String(input.ReferenceID),
		}}
	}

	out, err := s.api.SendEmail(ctx, params)
	if err != nil {
		return "", mapSESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func utf8Content(data string) *sestypes.Content {
	return &sestypes.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

func mapSESError(err error) error {
	var (
		rejected  *sestypes.MessageRejected
		throttled *sestypes.TooManyRequestsException
		paused    *sestypes.SendingPausedException
	)
	switch {
	case errors.As(err, &rejected):
		return types.NewAppError(types.ErrCodeEmailBlocked, "SES rejected the message", err)
	case errors.As(err, &throttled):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SES rate limit exceeded", err)
	case errors.As(err, &paused):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SES sending is paused for the account", err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider, "SES send failed", err)
	}
}

var _ EmailProvider = (*SESClient)(nil)
