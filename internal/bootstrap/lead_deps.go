package bootstrap

import (
	"context"
	"fmt"
	"time"

	"leadscout/adapter/out/llm"
	"leadscout/adapter/out/mongodb"
	"leadscout/adapter/out/persistence"
	"leadscout/adapter/out/provider"
	"leadscout/config"
	"leadscout/core/port/out"
	"leadscout/core/service/classification"
	"leadscout/core/service/processor"
	"leadscout/core/service/sync"
	"leadscout/infra/database"
	"leadscout/pkg/logger"
	"leadscout/pkg/ratelimit"
	"leadscout/pkg/retry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies holds every wired component shared by the API and worker
// entrypoints.
type Dependencies struct {
	Config *config.Config

	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	CursorStore out.CursorStore
	Locker      out.MessageLocker
	Sink        out.CRMSink
	RuleStore   out.SignalRuleStore
	Holder      *classification.MatcherHolder
	Provider    *provider.GmailMailbox
	Model       out.IntentModel

	Syncer    *sync.Syncer
	Engine    *classification.Engine
	Processor *processor.Processor
}

// NewDependencies wires every adapter and service from configuration.
// Postgres is mandatory; Redis and MongoDB degrade to in-memory and
// built-in fallbacks with a warning.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Postgres (pgxpool for health checks, sqlx for the lead sink)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres connect: %w", err)
	}
	deps.DB = db
	cleanups = append(cleanups, db.Close)

	sqlDB, err := database.NewSqlx(cfg.DatabaseURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("sqlx connect: %w", err)
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { _ = sqlDB.Close() })
	deps.Sink = persistence.NewLeadSinkAdapter(sqlDB)

	// Redis backs the cursor store and the message locker. Without it the
	// in-memory versions keep a single process correct.
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-memory cursor store and locker")
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { _ = redisClient.Close() })
		}
	}
	if deps.Redis != nil {
		deps.CursorStore = persistence.NewRedisCursorStore(deps.Redis, cfg.CursorKey)
		deps.Locker = persistence.NewRedisLocker(deps.Redis, "gmail")
	} else {
		deps.CursorStore = persistence.NewMemoryCursorStore()
		deps.Locker = persistence.NewMemoryLocker()
	}

	// MongoDB stores versioned signal rule sets. Without it the built-in
	// rules apply and PUT /admin/rules is rejected.
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.WithError(err).Warn("MongoDB unavailable, using built-in signal rules")
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mongoClient.Disconnect(ctx)
			})
			ruleStore := mongodb.NewSignalRuleAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := ruleStore.EnsureIndexes(context.Background()); err != nil {
				logger.WithError(err).Warn("Failed to ensure signal rule indexes")
			}
			deps.RuleStore = ruleStore
		}
	}

	deps.Holder = classification.NewMatcherHolder(loadMatcher(deps.RuleStore))

	// Intent model is optional. Without a key the deterministic ladder
	// classifies alone.
	if cfg.OpenAIAPIKey != "" {
		deps.Model = llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
			MaxRetries:  cfg.LLMMaxRetries,
		})
	} else {
		logger.Warn("OPENAI_API_KEY not set, classification runs on heuristics only")
	}

	deps.Provider = provider.NewGmailMailbox(&provider.GmailConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RefreshToken: cfg.GoogleRefreshToken,
		ProjectID:    cfg.GoogleProjectID,
	})

	retrier := retry.New(retry.DefaultConfig())
	limiter := ratelimit.NewWindowLimiter(cfg.BatchWindowMax, cfg.BatchWindow)

	deps.Syncer = sync.NewSyncer(deps.Provider, deps.CursorStore, retrier, sync.Config{
		ScanPageSize:   cfg.ScanPageSize,
		ChangePageSize: cfg.ChangePageSize,
	})
	deps.Engine = classification.NewEngine(deps.Model, deps.Holder)
	deps.Processor = processor.New(deps.Provider, deps.Sink, deps.Locker, deps.Engine, limiter, processor.Config{
		ProcessedLabel:    cfg.ProcessedLabel,
		InterMessageDelay: cfg.InterMessageDelay,
		OutreachAddress:   cfg.OutreachAddress,
	})

	if cfg.ResetOnStart {
		if err := deps.Syncer.Reset(context.Background()); err != nil {
			logger.WithError(err).Warn("Cursor reset on start failed")
		} else {
			logger.Info("Cursor cleared, next sync re-baselines from the live mailbox")
		}
	}

	// Periodic rule refresh keeps long-lived processes on the newest
	// published rule set.
	if deps.RuleStore != nil && cfg.RuleRefreshInterval > 0 {
		refreshCtx, stopRefresh := context.WithCancel(context.Background())
		cleanups = append(cleanups, stopRefresh)
		go refreshRules(refreshCtx, deps.RuleStore, deps.Holder, cfg.RuleRefreshInterval)
	}

	return deps, cleanup, nil
}

// loadMatcher builds the initial matcher from the stored rule set, falling
// back to the built-in rules when no store or no document exists.
func loadMatcher(rules out.SignalRuleStore) *classification.Matcher {
	if rules == nil {
		return classification.NewMatcher(nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	active, err := rules.LoadActive(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to load signal rules, using built-in set")
		return classification.NewMatcher(nil)
	}
	if active == nil {
		logger.Info("No stored signal rules, using built-in set")
		return classification.NewMatcher(nil)
	}
	logger.Info("Loaded signal rule set version %d", active.Version)
	return classification.NewMatcher(active)
}

func refreshRules(ctx context.Context, rules out.SignalRuleStore, holder *classification.MatcherHolder, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active, err := rules.LoadActive(ctx)
			if err != nil {
				logger.WithError(err).Warn("Signal rule refresh failed")
				continue
			}
			if active == nil {
				continue
			}
			if active.Version == holder.Get().Version() {
				continue
			}
			holder.Swap(classification.NewMatcher(active))
			logger.Info("Signal rule set refreshed to version %d", active.Version)
		}
	}
}
