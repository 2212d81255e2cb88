package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		name       string
		userAgent  string
		wantType   string
		wantOS     string
		wantBot    bool
		wantPrefix string
	}{
		{
			name:       "iPhone Safari",
			userAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantType:   "mobile",
			wantPrefix: "Safari",
		},
		{
			name:       "iPad",
			userAgent:  "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			wantType:   "tablet",
			wantPrefix: "Safari",
		},
		{
			name:       "desktop Chrome",
			userAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantType:   "desktop",
			wantOS:     "Windows",
			wantPrefix: "Chrome 120",
		},
		{
			name:      "crawler",
			userAgent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			wantType:  "desktop",
			wantBot:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseDevice(tt.userAgent, "203.0.113.5")
			assert.Equal(t, tt.wantType, info.DeviceType)
			assert.Equal(t, tt.wantBot, info.IsBot)
			assert.Equal(t, "203.0.113.5", info.IPAddress)
			if tt.wantOS != "" {
				assert.Contains(t, info.OS, tt.wantOS)
			}
			if tt.wantPrefix != "" {
				assert.Contains(t, info.Browser, tt.wantPrefix)
			}
		})
	}
}

func TestParseDevice_Empty(t *testing.T) {
	info := ParseDevice("", "")
	assert.Equal(t, "unknown", info.DeviceType)
	assert.Equal(t, "Unknown", info.OS)
	assert.Equal(t, "Unknown", info.Browser)
}
