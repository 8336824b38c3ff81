package bootstrap

import (
	handler "leadscout/adapter/in/http"
	"leadscout/config"
	"leadscout/infra/middleware"
	"leadscout/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
)

// NewAPI builds the HTTP application: push webhook, health probes and the
// admin surface.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             1 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Pub/Sub push verification guards the webhook routes only.
	pushAuth := middleware.PushAuth(cfg.PushAudience, cfg.PushAllowedFrom)
	app.Use("/webhook", pushAuth)
	app.Use("/webhooks", pushAuth)

	webhookHandler := handler.NewWebhookHandler(deps.Syncer, deps.Processor)
	webhookHandler.Register(app)

	healthHandler := handler.NewHealthHandler(deps.DB, deps.Redis, deps.MongoDB, webhookHandler)
	healthHandler.Register(app)

	adminHandler := handler.NewAdminHandler(deps.Syncer, deps.RuleStore, deps.Holder)
	adminHandler.Register(app)

	return app, cleanup, nil
}
