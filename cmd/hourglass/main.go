// Command hourglass runs the turn timeout and notification scheduler.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"

	"github.com/fablehouse/hourglass/internal/events"
	"github.com/fablehouse/hourglass/internal/genai"
	"github.com/fablehouse/hourglass/internal/notify"
	"github.com/fablehouse/hourglass/internal/scheduler"
	"github.com/fablehouse/hourglass/internal/store"
	"github.com/fablehouse/hourglass/internal/util"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil {
		slog.Error("Hourglass failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Hourglass exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN           string
	TickInterval          time.Duration
	WarningThreshold      time.Duration
	BatchSize             int
	OpenAIKey             string
	AIModel               string
	BaseURL               string
	DefaultDiscordWebhook string
	EmailFrom             string
	EmailConfigSet        string
	TwilioAccountSID      string
	TwilioAuthToken       string
	TwilioFromNumber      string
	EventsEndpoint        string
	EventsAPIKey          string
	CronExpr              string
}

// Flags holds command line flag values
type Flags struct {
	once     *bool
	dbDSN    *string
	baseURL  *string
	aiModel  *string
	cronExpr *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("HOURGLASS_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DatabaseDSN:           os.Getenv("HOURGLASS_DB_DSN"),
		TickInterval:          util.ParseMillisEnv("HOURGLASS_TICK_INTERVAL_MS", scheduler.DefaultTickInterval),
		WarningThreshold:      util.ParseMillisEnv("HOURGLASS_WARNING_THRESHOLD_MS", scheduler.DefaultWarningThreshold),
		BatchSize:             util.ParseIntEnv("HOURGLASS_BATCH_SIZE", scheduler.DefaultBatchSize),
		OpenAIKey:             os.Getenv("OPENAI_API_KEY"),
		AIModel:               os.Getenv("HOURGLASS_AI_MODEL"),
		BaseURL:               os.Getenv("HOURGLASS_BASE_URL"),
		DefaultDiscordWebhook: os.Getenv("HOURGLASS_DEFAULT_DISCORD_WEBHOOK"),
		EmailFrom:             os.Getenv("HOURGLASS_EMAIL_FROM"),
		EmailConfigSet:        os.Getenv("HOURGLASS_EMAIL_CONFIG_SET"),
		TwilioAccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:      os.Getenv("TWILIO_FROM_NUMBER"),
		EventsEndpoint:        os.Getenv("HOURGLASS_EVENTS_ENDPOINT"),
		EventsAPIKey:          os.Getenv("HOURGLASS_EVENTS_API_KEY"),
		CronExpr:              os.Getenv("HOURGLASS_CRON"),
	}

	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
	}

	slog.Debug("environment variables loaded",
		"HOURGLASS_DB_DSN_SET", config.DatabaseDSN != "",
		"tick_interval", config.TickInterval,
		"warning_threshold", config.WarningThreshold,
		"batch_size", config.BatchSize,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"base_url", config.BaseURL,
		"email_from_set", config.EmailFrom != "",
		"twilio_configured", config.TwilioAccountSID != "" && config.TwilioAuthToken != "",
		"events_endpoint_set", config.EventsEndpoint != "",
		"cron", config.CronExpr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		once:     flag.Bool("once", false, "execute a single tick and exit (for cron-style scheduling)"),
		dbDSN:    flag.String("db-dsn", config.DatabaseDSN, "database DSN (overrides $HOURGLASS_DB_DSN or $DATABASE_URL)"),
		baseURL:  flag.String("base-url", config.BaseURL, "base URL for deep links (overrides $HOURGLASS_BASE_URL)"),
		aiModel:  flag.String("ai-model", config.AIModel, "model identifier for autofill generation (overrides $HOURGLASS_AI_MODEL)"),
		cronExpr: flag.String("cron", config.CronExpr, "cron expression driving ticks instead of a fixed interval (overrides $HOURGLASS_CRON)"),
	}
	flag.Parse()
	return flags
}

// buildStore opens the turn store selected by the DSN.
func buildStore(dsn string) (store.TurnRepo, error) {
	if dsn == "" {
		slog.Warn("No database DSN provided, using in-memory store; turns will not survive restarts")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildDispatcher wires every channel sender whose configuration is present.
// A channel with missing credentials is simply not registered; the dispatcher
// skips it per turn without failing the others.
func buildDispatcher(ctx context.Context, config Config, repo store.TurnRepo) notify.Dispatcher {
	senders := []notify.Sender{notify.NewWebSender(repo)}

	if config.EmailFrom != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Warn("AWS config load failed, email channel disabled", "error", err)
		} else {
			emailSender, err := notify.NewEmailSender(awsCfg, notify.EmailSenderConfig{
				From:          config.EmailFrom,
				ConfigSetName: config.EmailConfigSet,
			})
			if err != nil {
				slog.Warn("Email sender init failed, email channel disabled", "error", err)
			} else {
				senders = append(senders, emailSender)
			}
		}
	} else {
		slog.Debug("No email from address configured, email channel disabled")
	}

	if config.TwilioAccountSID != "" && config.TwilioAuthToken != "" && config.TwilioFromNumber != "" {
		smsSender, err := notify.NewSMSSender(
			notify.WithAccountSID(config.TwilioAccountSID),
			notify.WithAuthToken(config.TwilioAuthToken),
			notify.WithFromNumber(config.TwilioFromNumber),
		)
		if err != nil {
			slog.Warn("SMS sender init failed, sms channel disabled", "error", err)
		} else {
			senders = append(senders, smsSender)
		}
	} else {
		slog.Debug("Twilio credentials incomplete, sms channel disabled")
	}

	senders = append(senders, notify.NewDiscordSender(config.DefaultDiscordWebhook))

	return notify.NewMultiDispatcher(senders...)
}

// buildRecorder wires the analytics recorder, or a no-op when unconfigured.
func buildRecorder(config Config) events.Recorder {
	if config.EventsEndpoint == "" {
		slog.Debug("No events endpoint configured, analytics disabled")
		return events.NoopRecorder{}
	}
	recorder, err := events.NewHTTPRecorder(
		events.WithEndpoint(config.EventsEndpoint),
		events.WithAPIKey(config.EventsAPIKey),
	)
	if err != nil {
		slog.Warn("Events recorder init failed, analytics disabled", "error", err)
		return events.NoopRecorder{}
	}
	return recorder
}

func run(config Config, flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := buildStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	if closer, ok := repo.(io.Closer); ok {
		defer closer.Close()
	}

	var genaiOpts []genai.Option
	if config.OpenAIKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(config.OpenAIKey))
	}
	if *flags.aiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.aiModel))
	}
	generator, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	dispatcher := buildDispatcher(ctx, config, repo)
	recorder := buildRecorder(config)

	sched := scheduler.New(repo, dispatcher, generator, recorder, scheduler.Config{
		BatchSize:             config.BatchSize,
		WarningThreshold:      config.WarningThreshold,
		BaseURL:               *flags.baseURL,
		DefaultDiscordWebhook: config.DefaultDiscordWebhook,
		AIModel:               *flags.aiModel,
	})

	if *flags.once {
		slog.Info("Hourglass running a single tick")
		return sched.RunOnce(ctx)
	}

	if *flags.cronExpr != "" {
		slog.Info("Hourglass running on cron schedule", "cron", *flags.cronExpr)
		c := scheduler.NewCron()
		defer c.Stop()
		if err := c.AddTick(*flags.cronExpr, func() { sched.Tick(ctx) }); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}

	sched.RunForever(ctx, config.TickInterval)
	return nil
}
