package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/fablehouse/hourglass/internal/models"
)

// SESAPI defines the subset of the SES v2 client used by EmailSender.
// Extracted so tests can provide a mock implementation.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailSender delivers notifications over AWS SES v2.
type EmailSender struct {
	api           SESAPI
	from          string
	configSetName string
}

// Compile-time check that EmailSender implements Sender.
var _ Sender = (*EmailSender)(nil)

// EmailSenderConfig holds the configuration for creating an EmailSender.
type EmailSenderConfig struct {
	// From is the verified sender address.
	From string
	// ConfigSetName is the SES configuration set for tracking. Optional.
	ConfigSetName string
}

// NewEmailSender creates an email sender from an AWS config.
func NewEmailSender(awsCfg aws.Config, cfg EmailSenderConfig) (*EmailSender, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("email from address not set")
	}
	return &EmailSender{
		api:           sesv2.NewFromConfig(awsCfg),
		from:          cfg.From,
		configSetName: cfg.ConfigSetName,
	}, nil
}

// NewEmailSenderWithAPI creates an EmailSender with a pre-configured SESAPI.
// Useful for testing with a mock SES interface.
func NewEmailSenderWithAPI(api SESAPI, cfg EmailSenderConfig) (*EmailSender, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("email from address not set")
	}
	return &EmailSender{api: api, from: cfg.From, configSetName: cfg.ConfigSetName}, nil
}

func (s *EmailSender) Channel() string { return models.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, n models.Notification) error {
	if n.RecipientEmail == "" {
		return models.ErrMissingRecipientEmail
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.RecipientEmail},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(n.Subject())},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(n.Body())},
				},
			},
		},
	}
	if s.configSetName != "" {
		input.ConfigurationSetName = aws.String(s.configSetName)
	}

	out, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed for turn %s: %w", n.TurnID, err)
	}
	slog.Debug("EmailSender.Send: email accepted", "turnID", n.TurnID, "messageID", aws.ToString(out.MessageId))
	return nil
}
