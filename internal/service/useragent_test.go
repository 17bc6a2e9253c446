package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaEdgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaGooglebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		device  string
		os      string
		browser string
	}{
		{"chrome on windows desktop", uaChromeWindows, "desktop", "windows", "chrome"},
		{"safari on iphone", uaSafariIPhone, "mobile", "ios", "safari"},
		{"edge beats embedded chrome token", uaEdgeWindows, "desktop", "windows", "edge"},
		{"firefox on linux", uaFirefoxLinux, "desktop", "linux", "firefox"},
		{
			"chrome on android tablet",
			"Mozilla/5.0 (Linux; Android 13; SM-X700 Tablet) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"tablet", "android", "chrome",
		},
		{
			"ipad counts as tablet",
			"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			"tablet", "ios", "safari",
		},
		{
			"android phone is mobile not linux",
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			"mobile", "android", "chrome",
		},
		{"unrecognized ua defaults to desktop", "SomeObscureAgent/1.0", "desktop", "unknown", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseUserAgent(tt.ua)
			assert.Equal(t, tt.device, info.Device)
			assert.Equal(t, tt.os, info.OS)
			assert.Equal(t, tt.browser, info.Browser)
		})
	}

	t.Run("empty user agent is fully unknown", func(t *testing.T) {
		info := ParseUserAgent("")
		assert.Equal(t, DeviceInfo{Device: "unknown", OS: "unknown", Browser: "unknown"}, info)
	})
}

func TestIsBot(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want bool
	}{
		{"googlebot", uaGooglebot, true},
		{"spider", "Baiduspider/2.0", true},
		{"crawler", "SomeCrawler (crawl@example.com)", true},
		{"headless browser", "Mozilla/5.0 HeadlessChrome/120.0.0.0", true},
		{"link preview fetcher", "Slack-LinkPreview 1.0", true},
		{"regular browser", uaChromeWindows, false},
		{"empty ua is not a bot", "", false},
		{"case insensitive", "MYBOT/1.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBot(tt.ua))
		})
	}
}
