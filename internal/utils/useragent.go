package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"

	"github.com/smarttravel/checkout-backend/internal/models"
)

var tabletIndicators = []string{
	"ipad",
	"tablet",
	"kindle",
	"playbook",
	"nexus 7",
	"nexus 9",
	"nexus 10",
	"xoom",
	"sm-t", // Samsung tablets
}

// ParseDevice describes the browser that opened a checkout
func ParseDevice(userAgent, ip string) models.DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return models.DeviceInfo{
			DeviceType: "unknown",
			OS:         "Unknown",
			Browser:    "Unknown",
			IPAddress:  ip,
		}
	}

	parser := ua.New(userAgent)
	return models.DeviceInfo{
		DeviceType: deviceType(parser),
		OS:         osName(parser),
		Browser:    browserName(parser),
		IsBot:      parser.Bot(),
		IPAddress:  ip,
	}
}

func deviceType(parser *ua.UserAgent) string {
	if !parser.Mobile() {
		return "desktop"
	}
	lower := strings.ToLower(parser.UA())
	for _, indicator := range tabletIndicators {
		if strings.Contains(lower, indicator) {
			return "tablet"
		}
	}
	return "mobile"
}

func osName(parser *ua.UserAgent) string {
	info := parser.OSInfo()
	if info.Name == "" {
		return "Unknown"
	}
	if info.Version != "" {
		return info.Name + " " + info.Version
	}
	return info.Name
}

func browserName(parser *ua.UserAgent) string {
	name, version := parser.Browser()
	if name == "" {
		return "Unknown"
	}
	if major, _, ok := strings.Cut(version, "."); ok && major != "" {
		return name + " " + major
	}
	return name
}
