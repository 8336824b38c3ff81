package http

import (
	"fmt"
	"regexp"
	"time"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/core/service/classification"
	"leadscout/core/service/sync"
	"leadscout/pkg/apperr"
	"leadscout/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Admin Surface
// =============================================================================

// AdminHandler exposes the operational endpoints: cursor reset and the
// reviewed rule-table update.
type AdminHandler struct {
	syncer *sync.Syncer
	rules  out.SignalRuleStore
	holder *classification.MatcherHolder
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(syncer *sync.Syncer, rules out.SignalRuleStore, holder *classification.MatcherHolder) *AdminHandler {
	return &AdminHandler{syncer: syncer, rules: rules, holder: holder}
}

// Register mounts the admin routes.
func (h *AdminHandler) Register(app fiber.Router) {
	admin := app.Group("/admin")
	admin.Post("/reset-cursor", h.ResetCursor)
	admin.Get("/rules", h.GetRules)
	admin.Put("/rules", h.PutRules)
}

// ResetCursor clears the stored cursor and records the reset marker. The next
// sync cycle re-baselines from the mailbox profile.
func (h *AdminHandler) ResetCursor(c *fiber.Ctx) error {
	if err := h.syncer.Reset(c.Context()); err != nil {
		return err
	}

	logger.Warn("sync cursor reset via admin endpoint")
	return c.JSON(fiber.Map{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetRules returns the active rule set. When nothing is stored the compiled
// defaults are reported with version 0.
func (h *AdminHandler) GetRules(c *fiber.Ctx) error {
	if h.rules == nil {
		return c.JSON(classification.DefaultRuleSet())
	}

	rs, err := h.rules.LoadActive(c.Context())
	if err != nil {
		return err
	}
	if rs == nil {
		return c.JSON(classification.DefaultRuleSet())
	}
	return c.JSON(rs)
}

// PutRules stores a new rule set version and swaps it into the running
// engine. The version must be strictly greater than the active one; a taken
// version answers 409.
func (h *AdminHandler) PutRules(c *fiber.Ctx) error {
	if h.rules == nil {
		return apperr.New(apperr.CodeConfig, "rule store not configured", fiber.StatusServiceUnavailable)
	}

	var rs domain.SignalRuleSet
	if err := c.BodyParser(&rs); err != nil {
		return apperr.New(apperr.CodeBadRequest, "invalid rule set payload", fiber.StatusBadRequest)
	}
	if rs.Version <= 0 {
		return apperr.New(apperr.CodeBadRequest, "version must be positive", fiber.StatusBadRequest)
	}
	if len(rs.Patterns) == 0 {
		return apperr.New(apperr.CodeBadRequest, "patterns must not be empty", fiber.StatusBadRequest)
	}
	for category, exprs := range rs.Patterns {
		for _, expr := range exprs {
			if _, err := regexp.Compile(expr); err != nil {
				return apperr.New(apperr.CodeBadRequest,
					fmt.Sprintf("invalid pattern in %q: %v", category, err), fiber.StatusBadRequest)
			}
		}
	}

	active, err := h.rules.LoadActive(c.Context())
	if err != nil {
		return err
	}
	if active != nil && rs.Version <= active.Version {
		return apperr.New(apperr.CodeBadRequest,
			"version must exceed the active rule set", fiber.StatusBadRequest)
	}

	rs.UpdatedAt = time.Now().UTC()
	if err := h.rules.Save(c.Context(), &rs); err != nil {
		return err
	}

	if h.holder != nil {
		h.holder.Swap(classification.NewMatcher(&rs))
	}

	logger.WithFields(map[string]any{
		"version":    rs.Version,
		"updated_by": rs.UpdatedBy,
	}).Info("signal rule set updated")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"version": rs.Version,
	})
}
