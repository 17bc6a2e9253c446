package service

import (
	"strings"

	"github.com/linklytics/gateway/internal/model"
)

// apiSignatures are user-agent substrings of CLI tools and HTTP client
// libraries whose hits classify as api rather than click.
var apiSignatures = []string{
	"curl", "wget", "httpie", "postman", "insomnia",
	"python-requests", "python-urllib", "go-http-client",
	"okhttp", "axios", "node-fetch", "java/", "libwww",
}

// directReferers are referer values treated as "no referer".
var directReferers = map[string]struct{}{
	"":        {},
	"direct":  {},
	"unknown": {},
	"-":       {},
}

// ClassifyInteraction assigns the semantic interaction category for a hit.
// Precedence: stored metadata verbatim (supports re-derivation from
// persisted events), then scan event type, then the bot flag, then CLI and
// HTTP-library user agents, then missing referers, then click.
func ClassifyInteraction(eventType model.EventType, referer string, isBot bool, userAgent string, metadata *model.EventMetadata) model.InteractionType {
	if metadata != nil {
		switch metadata.InteractionType {
		case model.InteractionClick, model.InteractionScan, model.InteractionDirect,
			model.InteractionAPI, model.InteractionBot:
			return metadata.InteractionType
		}
	}

	if eventType == model.EventTypeScan {
		return model.InteractionScan
	}
	if isBot {
		return model.InteractionBot
	}

	lower := strings.ToLower(userAgent)
	for _, sig := range apiSignatures {
		if strings.Contains(lower, sig) {
			return model.InteractionAPI
		}
	}

	if _, ok := directReferers[strings.ToLower(strings.TrimSpace(referer))]; ok {
		return model.InteractionDirect
	}
	return model.InteractionClick
}
