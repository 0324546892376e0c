package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"

	shared "github.com/lancerinf/garmin-importer/pkg"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/database"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/lock"
	infrapubsub "github.com/lancerinf/garmin-importer/pkg/infrastructure/pubsub"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/secrets"
	"github.com/lancerinf/garmin-importer/pkg/infrastructure/sentry"
	infrastorage "github.com/lancerinf/garmin-importer/pkg/infrastructure/storage"
	"github.com/lancerinf/garmin-importer/pkg/observability"
)

// Service holds initialized dependencies
type Service struct {
	DB      shared.Database
	Store   shared.BlobStore
	Pub     shared.Publisher
	Secrets shared.SecretStore
	Lock    lock.Locker
	Metrics *observability.Metrics
	Config  *Config
}

// GetSlogHandlerOptions returns standard handler options for GCP
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Map standard keys to Cloud Logging keys
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// ComponentHandler wraps a slog.Handler to prepend [component] to the message
type ComponentHandler struct {
	slog.Handler
	component string
}

// WithGroup implements slog.Handler
func (h *ComponentHandler) WithGroup(name string) slog.Handler {
	return &ComponentHandler{
		Handler:   h.Handler.WithGroup(name),
		component: h.component,
	}
}

// WithAttrs implements slog.Handler
func (h *ComponentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	comp := h.component
	for _, a := range attrs {
		if a.Key == "component" {
			comp = a.Value.String()
		}
	}
	return &ComponentHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		component: comp,
	}
}

// Handle implements slog.Handler
func (h *ComponentHandler) Handle(ctx context.Context, r slog.Record) error {
	comp := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			comp = a.Value.String()
			return false
		}
		return true
	})

	if comp != "" {
		// The component attribute stays in the structured payload.
		prefixed := slog.NewRecord(r.Time, r.Level, fmt.Sprintf("[%s] %s", comp, r.Message), r.PC)
		r.Attrs(func(a slog.Attr) bool {
			prefixed.AddAttrs(a)
			return true
		})
		r = prefixed
	}

	return h.Handler.Handle(ctx, r)
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the Cloud Logging JSON handler used by every logger.
func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	return &ComponentHandler{Handler: slog.NewJSONHandler(w, GetSlogHandlerOptions(level))}
}

// InitLogger configures structured logging with Cloud Logging compatible keys
func InitLogger(level slog.Level) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, level)))
}

// NewLogger creates a configured logger instance
func NewLogger(serviceName string) *slog.Logger {
	return slog.New(NewHandler(os.Stdout, ParseLevel(os.Getenv("LOG_LEVEL")))).With("service", serviceName)
}

// NewService initializes all standard dependencies
func NewService(ctx context.Context) (*Service, error) {
	cfg := LoadConfig()
	InitLogger(ParseLevel(cfg.LogLevel))

	slog.Info("Initializing service", "project_id", cfg.ProjectID, "environment", cfg.Environment)

	if err := sentry.Init(sentry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          os.Getenv("K_REVISION"),
		ServerName:       os.Getenv("K_SERVICE"),
		TracesSampleRate: 0,
	}, slog.Default()); err != nil {
		// Error tracking is optional.
		slog.Warn("Continuing without Sentry", "error", err)
	}

	// Firestore
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Firestore init failed", "error", err)
		return nil, fmt.Errorf("firestore init: %w", err)
	}

	// Pub/Sub
	var pubAdapter shared.Publisher
	if cfg.EnablePublish {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			slog.Error("PubSub init failed", "error", err)
			return nil, fmt.Errorf("pubsub init: %w", err)
		}
		pubAdapter = &infrapubsub.PubSubAdapter{Client: psClient}
		slog.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
	} else {
		pubAdapter = &infrapubsub.LogPublisher{}
		slog.Info("Pub/Sub: MOCK (LogPublisher)")
	}

	// Storage
	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		slog.Error("Storage init failed", "error", err)
		return nil, fmt.Errorf("storage init: %w", err)
	}

	// Secret Manager
	secretsAdapter, err := secrets.NewSecretsAdapter(ctx)
	if err != nil {
		slog.Error("Secret Manager init failed", "error", err)
		return nil, fmt.Errorf("secretmanager init: %w", err)
	}

	// Run lock
	var locker lock.Locker = lock.NoopLock{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		locker = lock.NewRedisLock(rdb, cfg.LockTTL)
		slog.Info("Run lock: REDIS", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	} else {
		slog.Info("Run lock: NONE (REDIS_ADDR not set)")
	}

	return &Service{
		DB:      database.NewFirestoreAdapter(fsClient),
		Pub:     pubAdapter,
		Store:   infrastorage.NewStorageAdapter(gcsClient),
		Secrets: secretsAdapter,
		Lock:    locker,
		Metrics: observability.NewMetrics(),
		Config:  cfg,
	}, nil
}
