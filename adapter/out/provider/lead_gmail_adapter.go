// Package provider implements mailbox provider adapters.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/pkg/apperr"
	"leadscout/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/net/html"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// =============================================================================
// Gmail Mailbox Adapter
// =============================================================================

const inboxLabelID = "INBOX"

// GmailConfig holds the single-account OAuth credentials.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	ProjectID    string
}

// GmailMailbox implements out.MailboxProvider against the Gmail API using a
// long-lived refresh token for one monitored account.
type GmailMailbox struct {
	oauth     *oauth2.Config
	token     *oauth2.Token
	topicName string
	cb        *gobreaker.CircuitBreaker

	mu  sync.Mutex
	svc *gmail.Service
}

// NewGmailMailbox creates a new Gmail mailbox adapter.
func NewGmailMailbox(cfg *GmailConfig) *GmailMailbox {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailModifyScope,
			gmail.GmailLabelsScope,
		},
		Endpoint: google.Endpoint,
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &GmailMailbox{
		oauth:     oauthCfg,
		token:     &oauth2.Token{RefreshToken: cfg.RefreshToken},
		topicName: fmt.Sprintf("projects/%s/topics/gmail-push", cfg.ProjectID),
		cb:        gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// Source identifies the provider for lock keys and record rows.
func (a *GmailMailbox) Source() string {
	return "gmail"
}

// =============================================================================
// Cursor & Change Log
// =============================================================================

// ProfileCursor returns the mailbox's current history position.
func (a *GmailMailbox) ProfileCursor(ctx context.Context) (string, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return "", err
	}

	var profile *gmail.Profile
	cbErr := a.executeWithCircuitBreaker(ctx, "GetProfile", func() error {
		var callErr error
		profile, callErr = svc.Users.GetProfile("me").Context(ctx).Do()
		return callErr
	})
	if cbErr != nil {
		return "", a.wrapError(cbErr, "failed to get profile")
	}

	return strconv.FormatUint(profile.HistoryId, 10), nil
}

// ListChanges returns one page of "message added" events at or after the
// query's start cursor.
func (a *GmailMailbox) ListChanges(ctx context.Context, q out.ChangeQuery) (*out.ChangePage, error) {
	start, err := strconv.ParseUint(q.StartCursor, 10, 64)
	if err != nil {
		return nil, apperr.StaleCursor(fmt.Sprintf("unusable start cursor %q", q.StartCursor))
	}

	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	req := svc.Users.History.List("me").
		StartHistoryId(start).
		HistoryTypes("messageAdded")
	if q.PageSize > 0 {
		req = req.MaxResults(q.PageSize)
	}
	if q.PageToken != "" {
		req = req.PageToken(q.PageToken)
	}

	var resp *gmail.ListHistoryResponse
	cbErr := a.executeWithCircuitBreaker(ctx, "ListChanges", func() error {
		var callErr error
		resp, callErr = req.Context(ctx).Do()
		return callErr
	})
	if cbErr != nil {
		// Gmail rejects history ids outside its retention window with 404.
		if apiErr, ok := cbErr.(*googleapi.Error); ok && apiErr.Code == 404 {
			return nil, apperr.StaleCursor(fmt.Sprintf("history id %d expired", start))
		}
		return nil, a.wrapError(cbErr, "failed to list history")
	}

	page := &out.ChangePage{
		NextPageToken: resp.NextPageToken,
	}
	if resp.HistoryId > 0 {
		page.LatestCursor = strconv.FormatUint(resp.HistoryId, 10)
	}

	for _, h := range resp.History {
		for _, added := range h.MessagesAdded {
			if added.Message == nil || added.Message.Id == "" {
				continue
			}
			page.Events = append(page.Events, out.ChangeEvent{
				MessageID: added.Message.Id,
				Labels:    added.Message.LabelIds,
			})
		}
	}

	return page, nil
}

// ListInbox returns up to max message ids currently in the inbox, newest
// first, paging as needed.
func (a *GmailMailbox) ListInbox(ctx context.Context, max int64) ([]string, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	if max <= 0 {
		max = 100
	}

	var ids []string
	pageToken := ""

	for {
		req := svc.Users.Messages.List("me").
			LabelIds(inboxLabelID).
			MaxResults(max - int64(len(ids)))
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		var resp *gmail.ListMessagesResponse
		cbErr := a.executeWithCircuitBreaker(ctx, "ListInbox", func() error {
			var callErr error
			resp, callErr = req.Context(ctx).Do()
			return callErr
		})
		if cbErr != nil {
			return nil, a.wrapError(cbErr, "failed to list inbox")
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}

		if resp.NextPageToken == "" || int64(len(ids)) >= max {
			break
		}
		pageToken = resp.NextPageToken
	}

	if int64(len(ids)) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// =============================================================================
// Messages & Labels
// =============================================================================

// GetMessage fetches the full message, including a decoded text body.
func (a *GmailMailbox) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	cbErr := a.executeWithCircuitBreaker(ctx, "GetMessage", func() error {
		var callErr error
		msg, callErr = svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return callErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to get message")
	}

	return a.convertMessage(msg), nil
}

// AddLabel applies a label to a message.
func (a *GmailMailbox) AddLabel(ctx context.Context, id, labelID string) error {
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}

	modReq := &gmail.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}

	cbErr := a.executeWithCircuitBreaker(ctx, "AddLabel", func() error {
		_, callErr := svc.Users.Messages.Modify("me", id, modReq).Context(ctx).Do()
		return callErr
	})
	if cbErr != nil {
		return a.wrapError(cbErr, "failed to modify labels")
	}
	return nil
}

// ListLabels returns the mailbox's labels as lowercased name -> id.
func (a *GmailMailbox) ListLabels(ctx context.Context) (map[string]string, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	var resp *gmail.ListLabelsResponse
	cbErr := a.executeWithCircuitBreaker(ctx, "ListLabels", func() error {
		var callErr error
		resp, callErr = svc.Users.Labels.List("me").Context(ctx).Do()
		return callErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to list labels")
	}

	labels := make(map[string]string, len(resp.Labels))
	for _, l := range resp.Labels {
		labels[strings.ToLower(l.Name)] = l.Id
	}
	return labels, nil
}

// Watch registers inbox push notifications and returns the cursor baseline
// Gmail reports for the watch.
func (a *GmailMailbox) Watch(ctx context.Context) (*out.WatchResult, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	watchReq := &gmail.WatchRequest{
		TopicName: a.topicName,
		LabelIds:  []string{inboxLabelID},
	}

	var resp *gmail.WatchResponse
	cbErr := a.executeWithCircuitBreaker(ctx, "Watch", func() error {
		var callErr error
		resp, callErr = svc.Users.Watch("me", watchReq).Context(ctx).Do()
		return callErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to register watch")
	}

	result := &out.WatchResult{
		Expiration: time.Unix(0, resp.Expiration*int64(time.Millisecond)),
	}
	if resp.HistoryId > 0 {
		result.Cursor = strconv.FormatUint(resp.HistoryId, 10)
	}

	logger.WithFields(map[string]any{
		"topic":      a.topicName,
		"cursor":     result.Cursor,
		"expiration": result.Expiration.Format(time.RFC3339),
	}).Info("gmail watch registered")

	return result, nil
}

// =============================================================================
// Message Conversion
// =============================================================================

func (a *GmailMailbox) convertMessage(msg *gmail.Message) *domain.Message {
	result := &domain.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Labels:   msg.LabelIds,
	}

	if msg.InternalDate > 0 {
		result.InternalTimestamp = time.Unix(0, msg.InternalDate*int64(time.Millisecond))
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				result.From = h.Value
			case "to":
				result.To = h.Value
			case "cc":
				result.Cc = h.Value
			case "reply-to":
				result.ReplyTo = h.Value
			case "subject":
				result.Subject = h.Value
			}
		}
	}

	result.Body = extractTextBody(msg)
	return result
}

// extractTextBody walks the MIME tree collecting text parts. Plain text wins;
// HTML parts are stripped to text only when no plain part exists, and the
// snippet is the last resort.
func extractTextBody(msg *gmail.Message) string {
	var plainParts, htmlParts []string

	var walk func(part *gmail.MessagePart)
	walk = func(part *gmail.MessagePart) {
		if part == nil {
			return
		}

		if part.Body != nil && part.Body.Data != "" {
			switch part.MimeType {
			case "text/plain":
				if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
					plainParts = append(plainParts, string(data))
				}
			case "text/html":
				if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
					htmlParts = append(htmlParts, string(data))
				}
			}
		}

		for _, p := range part.Parts {
			walk(p)
		}
	}
	walk(msg.Payload)

	if len(plainParts) > 0 {
		if text := strings.TrimSpace(strings.Join(plainParts, "\n")); text != "" {
			return text
		}
	}

	if len(htmlParts) > 0 {
		var texts []string
		for _, h := range htmlParts {
			texts = append(texts, htmlToText(h))
		}
		if text := strings.TrimSpace(strings.Join(texts, "\n")); text != "" {
			return text
		}
	}

	return msg.Snippet
}

// htmlToText strips markup from an HTML body, skipping script and style
// content entirely.
func htmlToText(src string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (a *GmailMailbox) service(ctx context.Context) (*gmail.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.svc != nil {
		return a.svc, nil
	}

	// The token source refreshes access tokens itself; the service is built
	// once and reused for the account's lifetime, so it is not tied to the
	// caller's context.
	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(
		a.oauth.TokenSource(context.Background(), a.token),
	))
	if err != nil {
		return nil, apperr.External(err, "failed to build gmail client")
	}

	a.svc = svc
	return svc, nil
}

// executeWithCircuitBreaker wraps an API call with circuit breaker protection.
// This prevents cascading failures when the Gmail API is experiencing issues.
func (a *GmailMailbox) executeWithCircuitBreaker(ctx context.Context, operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					// Server-side failures trip the circuit breaker
					return nil, err
				case 400, 401, 403, 404:
					// Client errors should not open the circuit
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	// Unwrap non-circuit errors
	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}

	if err != nil {
		logger.WithFields(map[string]any{
			"operation": operation,
			"state":     a.cb.State().String(),
		}).WithError(err).Warn("gmail call failed")
	}

	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// CircuitState returns the current breaker state for health reporting.
func (a *GmailMailbox) CircuitState() string {
	return a.cb.State().String()
}

func (a *GmailMailbox) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperr.RateLimited("gmail circuit breaker open")
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 404:
			return apperr.NotFound("gmail resource not found")
		case 429:
			return apperr.RateLimited("gmail quota exceeded")
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") || strings.Contains(apiErr.Message, "quota") {
				return apperr.RateLimited("gmail rate limit exceeded")
			}
			return apperr.External(err, "gmail access denied")
		case 401:
			return apperr.External(err, "gmail credentials rejected")
		}
	}

	return apperr.External(err, defaultMsg)
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.MailboxProvider = (*GmailMailbox)(nil)
