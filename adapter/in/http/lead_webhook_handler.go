// Package http implements the inbound HTTP surface.
package http

import (
	"context"
	"encoding/base64"
	"strconv"
	"sync/atomic"
	"time"

	"leadscout/core/service/processor"
	"leadscout/core/service/sync"
	"leadscout/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Pub/Sub Push Webhook
// =============================================================================

// pipelineTimeout bounds one notification-triggered sync+process run.
const pipelineTimeout = 10 * time.Minute

// PushEnvelope is the Pub/Sub push wrapper.
type PushEnvelope struct {
	Message struct {
		Data        string `json:"data"`
		MessageID   string `json:"messageId"`
		PublishTime string `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PushData is the decoded Gmail notification payload.
type PushData struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// WebhookMetrics counts webhook outcomes for the health surface.
type WebhookMetrics struct {
	Received  int64
	Malformed int64
	Synced    int64
	Errors    int64
}

// WebhookHandler receives Gmail push notifications and drives one pipeline
// run per notification. Notifications are always acknowledged: Pub/Sub
// redelivery cannot fix a bad envelope, and sync failures are repaired by the
// next notification or the scheduled scan.
type WebhookHandler struct {
	syncer    *sync.Syncer
	processor *processor.Processor
	metrics   WebhookMetrics
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(syncer *sync.Syncer, proc *processor.Processor) *WebhookHandler {
	return &WebhookHandler{syncer: syncer, processor: proc}
}

// Register mounts the webhook routes.
func (h *WebhookHandler) Register(app fiber.Router) {
	app.Post("/webhook/gmail", h.GmailPush)
	app.Post("/webhooks/gmail", h.GmailPush)
}

// Metrics returns a snapshot of the webhook counters.
func (h *WebhookHandler) Metrics() WebhookMetrics {
	return WebhookMetrics{
		Received:  atomic.LoadInt64(&h.metrics.Received),
		Malformed: atomic.LoadInt64(&h.metrics.Malformed),
		Synced:    atomic.LoadInt64(&h.metrics.Synced),
		Errors:    atomic.LoadInt64(&h.metrics.Errors),
	}
}

// GmailPush handles one push notification. The response is 204 regardless of
// payload quality; a malformed envelope just runs the pipeline without a
// cursor hint.
func (h *WebhookHandler) GmailPush(c *fiber.Ctx) error {
	atomic.AddInt64(&h.metrics.Received, 1)

	notifCursor, ok := DecodePushCursor(c.Body())
	if !ok {
		atomic.AddInt64(&h.metrics.Malformed, 1)
		logger.Warn("malformed push envelope, syncing without cursor hint")
	}

	go h.runPipeline(notifCursor)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *WebhookHandler) runPipeline(notifCursor string) {
	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	delta, err := h.syncer.Sync(ctx, notifCursor)
	if err != nil {
		atomic.AddInt64(&h.metrics.Errors, 1)
		logger.WithError(err).Error("notification sync failed")
		return
	}
	atomic.AddInt64(&h.metrics.Synced, 1)

	if len(delta.IDs) > 0 {
		result := h.processor.ProcessBatch(ctx, delta.IDs)
		logger.WithBatchID(result.BatchID).WithFields(map[string]any{
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"skipped":   result.Skipped,
		}).Info("notification batch complete")
	}

	if err := h.syncer.Commit(ctx, delta); err != nil {
		logger.WithError(err).Error("cursor commit failed")
	}
}

// DecodePushCursor extracts the history cursor hint from a raw push body.
// Any malformation yields ("", false): the notification is still serviced,
// just without the hint.
func DecodePushCursor(body []byte) (string, bool) {
	var envelope PushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", false
	}
	if envelope.Message.Data == "" {
		return "", false
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return "", false
	}

	var data PushData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", false
	}
	if data.HistoryID == 0 {
		return "", false
	}

	return strconv.FormatUint(data.HistoryID, 10), true
}
