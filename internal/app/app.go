// Package app wires the shared orchestrators used by both the desk server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/skynet/internal/audio"
	"github.com/snappy-loop/skynet/internal/balancer"
	"github.com/snappy-loop/skynet/internal/chat"
	"github.com/snappy-loop/skynet/internal/config"
	"github.com/snappy-loop/skynet/internal/database"
	"github.com/snappy-loop/skynet/internal/kafka"
	"github.com/snappy-loop/skynet/internal/llm"
	"github.com/snappy-loop/skynet/internal/storage"
	"github.com/snappy-loop/skynet/internal/webhook"
	"github.com/snappy-loop/skynet/migrations"
)

// Options tunes the parts of the wiring that differ between front-ends.
type Options struct {
	// OnNarrationURL receives the archive URL of every narration uploaded to S3.
	OnNarrationURL func(url string)
	// ExtraDevices play alongside the narration file writer.
	ExtraDevices []audio.Device
}

// App holds one process-wide instance of every orchestrator.
type App struct {
	Config   *config.Config
	LLM      *llm.Client
	DB       *database.DB // nil without DATABASE_URL
	Balancer *balancer.Orchestrator
	Chat     *chat.Orchestrator
	Audio    *audio.Context
	Player   *audio.Player
	Narrator *audio.Narrator
	Files    *audio.FileDevice

	producer     *kafka.Producer
	webhook      *webhook.Publisher
	balancerOpts []balancer.Option
	balancers    []*balancer.Orchestrator
}

// New builds the application. Optional backends that are configured but
// unreachable are fatal; unconfigured ones are skipped.
// ctx bounds startup work such as migrations.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	a.LLM = llm.NewClient(llm.Options{
		APIKey:         cfg.GeminiAPIKey,
		Endpoint:       cfg.GeminiAPIEndpoint,
		ModelBalance:   cfg.GeminiModelBalance,
		ModelChat:      cfg.GeminiModelChat,
		ModelTTS:       cfg.GeminiModelTTS,
		TTSVoice:       cfg.GeminiTTSVoice,
		BalanceBackend: cfg.GeminiBalanceBackend,
	})

	var balancerOpts []balancer.Option
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.DB = db
		if err := migrations.Run(ctx, db.DB); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		balancerOpts = append(balancerOpts, balancer.WithCache(database.NewResultCacheRepository(db)))
	} else {
		log.Info().Msg("DATABASE_URL not set - result cache disabled")
	}

	if cfg.KafkaEnabled() {
		a.producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		balancerOpts = append(balancerOpts, balancer.WithPublisher(a.producer))
	}
	if cfg.WebhookEnabled() {
		a.webhook = webhook.NewPublisher(webhook.Options{
			URL:            cfg.WebhookURL,
			Secret:         cfg.WebhookSecret,
			MaxRetries:     cfg.WebhookMaxRetries,
			RetryBaseDelay: cfg.WebhookRetryBaseDelay,
			RetryMaxDelay:  cfg.WebhookRetryMaxDelay,
		})
		balancerOpts = append(balancerOpts, balancer.WithPublisher(a.webhook))
	}

	devices := append([]audio.Device{}, opts.ExtraDevices...)
	a.Files = &audio.FileDevice{Dir: cfg.NarrationDir}
	devices = append(devices, a.Files)
	if cfg.S3Enabled() {
		storageClient, err := storage.NewClient(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
			cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3PublicURL,
		)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize storage client: %w", err)
		}
		devices = append(devices, storage.NewAudioSink(storageClient, "narrations/", opts.OnNarrationURL))
	}

	var device audio.Device = audio.Multi(devices)
	if cfg.NarrationPaced {
		device = audio.Paced{Next: device}
	}

	a.balancerOpts = balancerOpts
	a.Balancer = a.NewBalancer()
	a.Chat = chat.New(a.LLM)
	a.Audio = audio.NewContextWithDevice(device)
	a.Player = audio.NewPlayer(a.Audio)
	a.Narrator = audio.NewNarrator(a.LLM, a.Player)
	return a, nil
}

// NewBalancer returns an orchestrator sharing the cache and publishers of
// a.Balancer but holding its own view.
func (a *App) NewBalancer() *balancer.Orchestrator {
	b := balancer.New(a.LLM, a.balancerOpts...)
	a.balancers = append(a.balancers, b)
	return b
}

// Close releases every backend that was opened.
func (a *App) Close() {
	if a.Chat != nil {
		a.Chat.Close()
	}
	// Pending cache writes and events need the backends closed below.
	for _, b := range a.balancers {
		b.Drain()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Kafka producer")
		}
	}
	if a.webhook != nil {
		a.webhook.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.LLM != nil {
		a.LLM.Close()
	}
}
