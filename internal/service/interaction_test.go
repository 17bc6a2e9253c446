package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linklytics/gateway/internal/model"
)

func TestClassifyInteraction(t *testing.T) {
	tests := []struct {
		name      string
		eventType model.EventType
		referer   string
		isBot     bool
		userAgent string
		want      model.InteractionType
	}{
		{"scan event wins", model.EventTypeScan, "https://example.com", false, uaChromeWindows, model.InteractionScan},
		{"scan beats bot", model.EventTypeScan, "", true, uaGooglebot, model.InteractionScan},
		{"bot beats api agent", model.EventTypeClick, "", true, "curl-bot/1.0", model.InteractionBot},
		{"curl is api", model.EventTypeClick, "https://example.com", false, "curl/8.4.0", model.InteractionAPI},
		{"python requests is api", model.EventTypeClick, "", false, "python-requests/2.31.0", model.InteractionAPI},
		{"go http client is api", model.EventTypeClick, "", false, "Go-http-client/2.0", model.InteractionAPI},
		{"empty referer is direct", model.EventTypeClick, "", false, uaChromeWindows, model.InteractionDirect},
		{"dash referer is direct", model.EventTypeClick, "-", false, uaChromeWindows, model.InteractionDirect},
		{"literal direct referer", model.EventTypeClick, "Direct", false, uaChromeWindows, model.InteractionDirect},
		{"referred browser hit is click", model.EventTypeClick, "https://news.ycombinator.com", false, uaChromeWindows, model.InteractionClick},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyInteraction(tt.eventType, tt.referer, tt.isBot, tt.userAgent, nil)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("stored metadata classification is reused verbatim", func(t *testing.T) {
		meta := &model.EventMetadata{InteractionType: model.InteractionAPI}
		got := ClassifyInteraction(model.EventTypeScan, "https://example.com", true, uaGooglebot, meta)
		assert.Equal(t, model.InteractionAPI, got)
	})

	t.Run("unrecognized metadata classification is ignored", func(t *testing.T) {
		meta := &model.EventMetadata{InteractionType: "bogus"}
		got := ClassifyInteraction(model.EventTypeClick, "https://example.com", false, uaChromeWindows, meta)
		assert.Equal(t, model.InteractionClick, got)
	})
}
