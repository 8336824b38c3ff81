package http

import (
	"encoding/base64"
	"testing"
)

func envelope(data string) []byte {
	return []byte(`{"message":{"data":"` + data + `","messageId":"pub-1"},"subscription":"sub"}`)
}

func TestDecodePushCursor(t *testing.T) {
	good := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"leads@ourmedia.com","historyId":48201}`))
	zeroID := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"leads@ourmedia.com"}`))
	badJSON := base64.StdEncoding.EncodeToString([]byte(`{"historyId":`))

	tests := []struct {
		name       string
		body       []byte
		wantCursor string
		wantOK     bool
	}{
		{"valid notification", envelope(good), "48201", true},
		{"not json at all", []byte("definitely not json"), "", false},
		{"empty body", nil, "", false},
		{"missing data field", []byte(`{"message":{"messageId":"pub-1"}}`), "", false},
		{"broken base64", envelope("!!!not-base64!!!"), "", false},
		{"broken inner json", envelope(badJSON), "", false},
		{"zero history id", envelope(zeroID), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, ok := DecodePushCursor(tt.body)
			if cursor != tt.wantCursor || ok != tt.wantOK {
				t.Errorf("DecodePushCursor = (%q, %v), want (%q, %v)",
					cursor, ok, tt.wantCursor, tt.wantOK)
			}
		})
	}
}
