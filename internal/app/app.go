// Package app initializes and holds long-lived application services, acting
// as the composition root for the crawl engine.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/api"
	"github.com/seedline/crawld/internal/clock/system"
	"github.com/seedline/crawld/internal/config"
	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/events"
	"github.com/seedline/crawld/internal/events/sinks"
	"github.com/seedline/crawld/internal/fetcher"
	collygetter "github.com/seedline/crawld/internal/fetcher/colly"
	"github.com/seedline/crawld/internal/frontier"
	"github.com/seedline/crawld/internal/id/uuid"
	"github.com/seedline/crawld/internal/logging"
	"github.com/seedline/crawld/internal/parse"
	"github.com/seedline/crawld/internal/politeness"
	"github.com/seedline/crawld/internal/politeness/ratelimit"
	"github.com/seedline/crawld/internal/politeness/robots"
	"github.com/seedline/crawld/internal/predict"
	pubmemory "github.com/seedline/crawld/internal/publisher/memory"
	pubgcp "github.com/seedline/crawld/internal/publisher/pubsub"
	"github.com/seedline/crawld/internal/scheduler"
	"github.com/seedline/crawld/internal/storage"
	"github.com/seedline/crawld/internal/storage/gcs"
	"github.com/seedline/crawld/internal/storage/local"
	"github.com/seedline/crawld/internal/storage/memory"
	"github.com/seedline/crawld/internal/storage/postgres"
)

// App holds all the shared, long-lived services for the application. It is
// built once at startup and handed to the commands that need it.
type App struct {
	Cfg       config.Config
	Logger    *zap.Logger
	Frontier  *frontier.URLFrontier
	Hub       *events.Hub
	Scheduler *scheduler.Scheduler
	Predictor *predict.Client
	API       *api.Server

	closers []func(context.Context) error
}

// New wires the full engine from configuration. It fails fast when any
// backend cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Cfg: cfg, Logger: logger}

	a.Frontier = frontier.New(frontier.Config{
		MaxSize:         cfg.Frontier.MaxSize,
		DefaultPriority: cfg.Frontier.DefaultPriority,
		PriorityLevels:  cfg.Frontier.PriorityLevels,
		DedupWindow:     cfg.Frontier.DedupWindow,
	}, logger)

	gate := politeness.New(politeness.Config{
		RobotsEnforcement: cfg.Politeness.RespectRobots,
		RateLimit: ratelimit.Config{
			DefaultRPS:   cfg.Politeness.DefaultRPS,
			DefaultBurst: cfg.Politeness.DefaultBurst,
			DefaultDelay: cfg.Politeness.CrawlDelay,
			DomainRPS:    cfg.Politeness.DomainRPS,
			MaxDomains:   cfg.Politeness.MaxDomains,
		},
		Robots: robots.Config{
			UserAgent: cfg.Politeness.UserAgent,
			TTL:       cfg.Politeness.RobotsTTL,
			Timeout:   cfg.FetchTimeout(),
		},
	}, logger)

	getter := collygetter.New(collygetter.Config{
		UserAgent: cfg.Politeness.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	fetch := fetcher.New(gate, getter, fetcher.Config{
		RetryAttempts: cfg.HTTP.MaxRetries,
		RetryDelay:    cfg.BackoffInitial(),
	}, logger)

	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}

	a.Hub = events.NewHub(events.Config{Logger: logger},
		sinks.NewLog(logger), sinks.NewPrometheus())
	a.closers = append(a.closers, a.Hub.Close)

	a.Scheduler = scheduler.New(
		scheduler.Config{
			MaxConcurrent:     cfg.Scheduler.MaxConcurrent,
			DefaultMaxRetries: cfg.Scheduler.DefaultMaxRetries,
			IdleWait:          cfg.Scheduler.IdleWait,
		},
		a.Frontier,
		fetch,
		parse.New(logger),
		store,
		a.Hub,
		uuid.New(),
		system.New(),
		logger,
	)
	a.closers = append(a.closers, a.Scheduler.Close)

	if err := a.buildPredictor(ctx); err != nil {
		return nil, err
	}
	a.Scheduler.SetPredictor(a.Predictor)

	a.API = api.NewServer(a.Scheduler, api.Config{
		DefaultPriority: cfg.Frontier.DefaultPriority,
	}, logger)

	return a, nil
}

func (a *App) buildStore(ctx context.Context) (crawl.Store, error) {
	cfg := a.Cfg
	recCfg := storage.RecordStoreConfig{
		Prefix:      cfg.Storage.Prefix,
		ContentType: cfg.Storage.ContentType,
	}

	switch cfg.Storage.Provider {
	case "memory":
		a.Logger.Info("using in-memory record store")
		return storage.NewRecordStore(memory.NewBlobStore(), recCfg, a.Logger)
	case "local":
		a.Logger.Info("using local record store", zap.String("dir", cfg.Storage.LocalDir))
		blobs, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return storage.NewRecordStore(blobs, recCfg, a.Logger)
	case "gcs":
		a.Logger.Info("using gcs record store", zap.String("bucket", cfg.Storage.GCSBucket))
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return storage.NewRecordStore(blobs, recCfg, a.Logger)
	case "postgres":
		a.Logger.Info("using postgres record store")
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func (a *App) buildPredictor(ctx context.Context) error {
	cfg := a.Cfg
	var pub crawl.Publisher
	if cfg.PubSub.Enabled {
		a.Logger.Info("publishing predictions to pub/sub",
			zap.String("project", cfg.PubSub.ProjectID), zap.String("topic", cfg.PubSub.TopicName))
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		p, err := pubgcp.New(client, cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return p.Close() })
		pub = p
	} else {
		pub = pubmemory.New()
	}

	predictor, err := predict.New(predict.Config{
		Topic:     cfg.PubSub.TopicName,
		QueueSize: cfg.Predict.QueueSize,
		Timeout:   cfg.Predict.Timeout,
	}, pub, a.Logger)
	if err != nil {
		return fmt.Errorf("init prediction client: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		predictor.Close()
		return nil
	})
	a.Predictor = predictor
	return nil
}

// Close shuts services down in reverse initialization order.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = a.Logger.Sync()
	return firstErr
}
