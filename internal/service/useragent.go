package service

import "strings"

// DeviceInfo is the parsed shape of a raw user-agent string.
type DeviceInfo struct {
	Device  string
	OS      string
	Browser string
}

const unknown = "unknown"

// botSignatures are case-insensitive substrings marking bot-like agents.
var botSignatures = []string{"bot", "spider", "crawl", "headless", "preview"}

// osSignatures map user-agent substrings to OS names, checked in order.
// More specific entries come first (Android UAs also contain "linux").
var osSignatures = []struct{ match, name string }{
	{"android", "android"},
	{"iphone", "ios"},
	{"ipad", "ios"},
	{"windows", "windows"},
	{"mac os x", "macos"},
	{"macintosh", "macos"},
	{"cros", "chromeos"},
	{"linux", "linux"},
}

// browserSignatures map user-agent substrings to browser names, checked in
// order. Chrome must come after Edge/Opera since those UAs embed "chrome";
// Safari comes last since Chrome UAs embed "safari".
var browserSignatures = []struct{ match, name string }{
	{"edg/", "edge"},
	{"edge", "edge"},
	{"opr/", "opera"},
	{"opera", "opera"},
	{"samsungbrowser", "samsung"},
	{"firefox", "firefox"},
	{"chrome", "chrome"},
	{"crios", "chrome"},
	{"safari", "safari"},
	{"msie", "ie"},
	{"trident", "ie"},
}

// ParseUserAgent classifies a raw user-agent string into device, OS and
// browser. An undetermined device defaults to desktop; a missing user agent
// yields unknown across the board so "no UA supplied" stays distinguishable
// from "UA supplied but undetermined".
func ParseUserAgent(ua string) DeviceInfo {
	if ua == "" {
		return DeviceInfo{Device: unknown, OS: unknown, Browser: unknown}
	}

	lower := strings.ToLower(ua)
	info := DeviceInfo{Device: "desktop", OS: unknown, Browser: unknown}

	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		info.Device = "tablet"
	case strings.Contains(lower, "mobi") || strings.Contains(lower, "iphone") ||
		strings.Contains(lower, "android"):
		info.Device = "mobile"
	}

	for _, sig := range osSignatures {
		if strings.Contains(lower, sig.match) {
			info.OS = sig.name
			break
		}
	}
	for _, sig := range browserSignatures {
		if strings.Contains(lower, sig.match) {
			info.Browser = sig.name
			break
		}
	}
	return info
}

// IsBot reports whether the user agent matches a known bot signature.
// The absence of a user agent is not itself a bot signal.
func IsBot(ua string) bool {
	if ua == "" {
		return false
	}
	lower := strings.ToLower(ua)
	for _, sig := range botSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
