package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/fablehouse/hourglass/internal/models"
)

func sampleNotification() models.Notification {
	due := time.Date(2026, 3, 14, 12, 5, 0, 0, time.UTC)
	return models.Notification{
		Kind:            models.NotificationTurn,
		BranchID:        "b1",
		TurnID:          "t1",
		StoryTitle:      "Night Train",
		Prompt:          "What happens next?",
		Channels:        []string{models.ChannelWeb},
		RecipientHandle: "ada",
		DueAt:           &due,
		RemainingMs:     240_000,
		DeepLink:        "https://stories.example.com/branches/b1/turns/t1",
	}
}

// --- Web ---

type memFeed struct {
	rows []models.WebNotification
	err  error
}

func (f *memFeed) AddWebNotification(n models.WebNotification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, n)
	return nil
}

func TestWebSenderAppendsToFeed(t *testing.T) {
	feed := &memFeed{}
	s := NewWebSender(feed)

	if err := s.Send(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(feed.rows) != 1 {
		t.Fatalf("expected 1 feed row, got %d", len(feed.rows))
	}
	row := feed.rows[0]
	if row.TurnID != "t1" || row.RecipientHandle != "ada" || row.Kind != models.NotificationTurn {
		t.Errorf("unexpected feed row: %+v", row)
	}
	if row.ID == "" || !strings.HasPrefix(row.ID, "wn_") {
		t.Errorf("expected generated wn_ id, got %q", row.ID)
	}
	if !strings.Contains(row.Body, "Night Train") {
		t.Errorf("body missing story title: %q", row.Body)
	}
}

func TestWebSenderRequiresHandle(t *testing.T) {
	s := NewWebSender(&memFeed{})
	n := sampleNotification()
	n.RecipientHandle = ""
	if err := s.Send(context.Background(), n); err == nil {
		t.Fatal("expected error for missing recipient handle")
	}
}

// --- Email ---

type mockSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestEmailSenderSendsViaSES(t *testing.T) {
	api := &mockSES{}
	s, err := NewEmailSenderWithAPI(api, EmailSenderConfig{From: "turns@stories.example.com", ConfigSetName: "hourglass"})
	if err != nil {
		t.Fatalf("NewEmailSenderWithAPI failed: %v", err)
	}

	n := sampleNotification()
	n.RecipientEmail = "ada@example.com"
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(api.inputs) != 1 {
		t.Fatalf("expected 1 SES call, got %d", len(api.inputs))
	}
	input := api.inputs[0]
	if got := input.Destination.ToAddresses; len(got) != 1 || got[0] != "ada@example.com" {
		t.Errorf("unexpected destination: %v", got)
	}
	if aws.ToString(input.ConfigurationSetName) != "hourglass" {
		t.Errorf("config set not propagated: %v", input.ConfigurationSetName)
	}
	subject := aws.ToString(input.Content.Simple.Subject.Data)
	if !strings.Contains(subject, "Night Train") {
		t.Errorf("subject missing story title: %q", subject)
	}
}

func TestEmailSenderMissingAddress(t *testing.T) {
	s, _ := NewEmailSenderWithAPI(&mockSES{}, EmailSenderConfig{From: "turns@stories.example.com"})
	if err := s.Send(context.Background(), sampleNotification()); !errors.Is(err, models.ErrMissingRecipientEmail) {
		t.Fatalf("expected ErrMissingRecipientEmail, got %v", err)
	}
}

func TestEmailSenderRequiresFrom(t *testing.T) {
	if _, err := NewEmailSenderWithAPI(&mockSES{}, EmailSenderConfig{}); err == nil {
		t.Fatal("expected error for missing from address")
	}
}

// --- SMS ---

type mockTwilio struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (m *mockTwilio) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return &twilioApi.ApiV2010Message{}, nil
}

func TestSMSSenderCanonicalizesRecipient(t *testing.T) {
	api := &mockTwilio{}
	s := NewSMSSenderWithAPI(api, "+15550001111")

	n := sampleNotification()
	n.RecipientPhone = "+1 (555) 010-2020"
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(api.params) != 1 {
		t.Fatalf("expected 1 Twilio call, got %d", len(api.params))
	}
	if got := *api.params[0].To; got != "+15550102020" {
		t.Errorf("expected canonical number, got %q", got)
	}
}

func TestSMSSenderRejectsShortNumbers(t *testing.T) {
	s := NewSMSSenderWithAPI(&mockTwilio{}, "+15550001111")
	n := sampleNotification()
	n.RecipientPhone = "+123"
	if err := s.Send(context.Background(), n); err == nil {
		t.Fatal("expected error for too-short phone number")
	}
	n.RecipientPhone = ""
	if err := s.Send(context.Background(), n); !errors.Is(err, models.ErrMissingRecipientPhone) {
		t.Fatalf("expected ErrMissingRecipientPhone, got %v", err)
	}
}

// --- Discord ---

func TestDiscordSenderPostsWebhook(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("invalid webhook payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSenderWithClient(srv.Client(), "")
	n := sampleNotification()
	n.RecipientDiscordWebhook = srv.URL
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.Contains(body["content"], "Night Train") {
		t.Errorf("webhook content missing story title: %q", body["content"])
	}
}

func TestDiscordSenderFallsBackToDefaultWebhook(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSenderWithClient(srv.Client(), srv.URL)
	if err := s.Send(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected 1 webhook hit, got %d", hits)
	}
}

func TestDiscordSenderMissingWebhook(t *testing.T) {
	s := NewDiscordSender("")
	if err := s.Send(context.Background(), sampleNotification()); !errors.Is(err, models.ErrMissingWebhook) {
		t.Fatalf("expected ErrMissingWebhook, got %v", err)
	}
}

func TestDiscordSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewDiscordSenderWithClient(srv.Client(), srv.URL)
	if err := s.Send(context.Background(), sampleNotification()); err == nil {
		t.Fatal("expected error for non-2xx webhook response")
	}
}
