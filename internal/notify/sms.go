package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/fablehouse/hourglass/internal/models"
)

// phoneNumberRegex matches every character that is not a digit or leading plus.
var phoneNumberRegex = regexp.MustCompile(`[^\d+]`)

// SMSMessageCreator is the subset of the Twilio REST API used by SMSSender.
type SMSMessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio SMS sender.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Option defines a configuration option for the Twilio SMS sender.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID (overrides $TWILIO_ACCOUNT_SID).
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token (overrides $TWILIO_AUTH_TOKEN).
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number (overrides $TWILIO_FROM_NUMBER).
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.From = from }
}

// SMSSender delivers notifications as SMS via the Twilio API.
type SMSSender struct {
	api  SMSMessageCreator
	from string
}

// Compile-time check that SMSSender implements Sender.
var _ Sender = (*SMSSender)(nil)

// NewSMSSender creates a Twilio-backed SMS sender, falling back to the
// TWILIO_* environment variables for unset options.
func NewSMSSender(opts ...Option) (*SMSSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSSender{api: client.Api, from: cfg.From}, nil
}

// NewSMSSenderWithAPI creates an SMSSender over a pre-configured message
// creator. Useful for testing with a mock Twilio interface.
func NewSMSSenderWithAPI(api SMSMessageCreator, from string) *SMSSender {
	return &SMSSender{api: api, from: from}
}

func (s *SMSSender) Channel() string { return models.ChannelSMS }

// canonicalizePhone strips formatting characters and validates the result has
// at least 6 digits.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrMissingRecipientPhone
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	digits := len(canonical)
	if len(canonical) > 0 && canonical[0] == '+' {
		digits--
	}
	if digits < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

func (s *SMSSender) Send(ctx context.Context, n models.Notification) error {
	to, err := canonicalizePhone(n.RecipientPhone)
	if err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(n.Body())

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send sms for turn %s: %w", n.TurnID, err)
	}
	slog.Debug("SMSSender.Send: sms sent", "turnID", n.TurnID)
	return nil
}
