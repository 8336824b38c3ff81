package provider

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"leadscout/core/port/out"
	"leadscout/pkg/apperr"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestConvertMessageHeadersAndTimestamp(t *testing.T) {
	a := NewGmailMailbox(&GmailConfig{ProjectID: "test-project"})

	msg := &gmail.Message{
		Id:           "m1",
		ThreadId:     "t1",
		InternalDate: 1700000000000,
		LabelIds:     []string{"INBOX", "UNREAD"},
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Brand Manager <brand@acme.com>"},
				{Name: "To", Value: "leads@ourmedia.com"},
				{Name: "Reply-To", Value: "agency@partners.com"},
				{Name: "Subject", Value: "Partnership proposal"},
			},
			MimeType: "text/plain",
			Body:     &gmail.MessagePartBody{Data: b64("We have budget for a multi-year deal.")},
		},
	}

	got := a.convertMessage(msg)
	if got.ID != "m1" || got.ThreadID != "t1" {
		t.Fatalf("ids = %q/%q", got.ID, got.ThreadID)
	}
	if got.From != "Brand Manager <brand@acme.com>" {
		t.Errorf("From = %q", got.From)
	}
	if got.To != "leads@ourmedia.com" {
		t.Errorf("To = %q", got.To)
	}
	if got.ReplyTo != "agency@partners.com" {
		t.Errorf("ReplyTo = %q", got.ReplyTo)
	}
	if got.Subject != "Partnership proposal" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.Body != "We have budget for a multi-year deal." {
		t.Errorf("Body = %q", got.Body)
	}
	if !got.HasLabel("INBOX") {
		t.Error("expected INBOX label")
	}
	want := time.Unix(0, 1700000000000*int64(time.Millisecond))
	if !got.InternalTimestamp.Equal(want) {
		t.Errorf("InternalTimestamp = %v, want %v", got.InternalTimestamp, want)
	}
}

func TestExtractTextBodyPrefersPlainText(t *testing.T) {
	msg := &gmail.Message{
		Snippet: "snippet text",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("plain body")}},
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>html body</p>")}},
			},
		},
	}

	if got := extractTextBody(msg); got != "plain body" {
		t.Errorf("body = %q, want plain part", got)
	}
}

func TestExtractTextBodyFallsBackToStrippedHTML(t *testing.T) {
	html := `<html><head><style>.x{color:red}</style></head>` +
		`<body><script>var a=1;</script><p>We would like a  media kit</p></body></html>`
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{
			MimeType: "text/html",
			Body:     &gmail.MessagePartBody{Data: b64(html)},
		},
	}

	if got := extractTextBody(msg); got != "We would like a media kit" {
		t.Errorf("body = %q", got)
	}
}

func TestExtractTextBodyFallsBackToSnippet(t *testing.T) {
	msg := &gmail.Message{
		Snippet: "only a snippet",
		Payload: &gmail.MessagePart{MimeType: "multipart/mixed"},
	}

	if got := extractTextBody(msg); got != "only a snippet" {
		t.Errorf("body = %q", got)
	}
}

func TestExtractTextBodyWalksNestedParts(t *testing.T) {
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("nested plain")}},
					},
				},
			},
		},
	}

	if got := extractTextBody(msg); got != "nested plain" {
		t.Errorf("body = %q", got)
	}
}

func TestWrapErrorMapsAPICodes(t *testing.T) {
	a := NewGmailMailbox(&GmailConfig{ProjectID: "test-project"})

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"not found", &googleapi.Error{Code: 404}, apperr.CodeNotFound},
		{"quota", &googleapi.Error{Code: 429}, apperr.CodeRateLimited},
		{"rate limited 403", &googleapi.Error{Code: 403, Message: "Rate Limit Exceeded"}, apperr.CodeRateLimited},
		{"forbidden", &googleapi.Error{Code: 403, Message: "insufficient scope"}, apperr.CodeExternal},
		{"unauthorized", &googleapi.Error{Code: 401}, apperr.CodeExternal},
		{"server", &googleapi.Error{Code: 503}, apperr.CodeExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.wrapError(tt.err, "call failed")
			if code := apperr.CodeOf(got); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}

	if a.wrapError(nil, "call failed") != nil {
		t.Error("nil error should stay nil")
	}
}

func TestStaleStartCursorRejectedLocally(t *testing.T) {
	a := NewGmailMailbox(&GmailConfig{ProjectID: "test-project"})

	_, err := a.ListChanges(context.Background(), out.ChangeQuery{StartCursor: "not-a-number"})
	if !apperr.IsStaleCursor(err) {
		t.Fatalf("err = %v, want STALE_CURSOR", err)
	}
}
