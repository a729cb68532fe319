package enrich

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device classes.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
)

// Browser and OS label for a user agent outside the known label sets.
const Other = "Other"

// browserLabels keeps the browser dimension to a bounded set of values.
var browserLabels = map[string]string{
	"Chrome":            "Chrome",
	"Chromium":          "Chromium",
	"Edge":              "Edge",
	"Firefox":           "Firefox",
	"Safari":            "Safari",
	"Opera":             "Opera",
	"Internet Explorer": "Internet Explorer",
	"Samsung Browser":   "Samsung Internet",
	"SamsungBrowser":    "Samsung Internet",
}

// Tools the parser does not flag as crawlers.
var botNeedles = []string{"curl/", "wget/", "python-requests", "go-http-client"}

// ParseUserAgent classifies a raw User-Agent header into device class,
// browser and operating system. An empty header yields empty strings.
// Crawlers report Other for browser and OS.
func ParseUserAgent(userAgent string) (device, browser, os string) {
	raw := strings.TrimSpace(userAgent)
	if raw == "" {
		return "", "", ""
	}

	ua := useragent.New(raw)
	if ua.Bot() || containsAny(strings.ToLower(raw), botNeedles) {
		return DeviceBot, Other, Other
	}

	os = osLabel(ua)
	return deviceOf(ua, os), browserLabel(ua), os
}

func deviceOf(ua *useragent.UserAgent, os string) string {
	switch {
	case ua.Platform() == "iPad":
		return DeviceTablet
	// Android tablets omit "Mobile" from their user agent.
	case os == "Android" && !ua.Mobile():
		return DeviceTablet
	case ua.Mobile():
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

func browserLabel(ua *useragent.UserAgent) string {
	name, _ := ua.Browser()
	if label, ok := browserLabels[name]; ok {
		return label
	}
	return Other
}

func osLabel(ua *useragent.UserAgent) string {
	switch ua.Platform() {
	case "iPhone", "iPad", "iPod":
		return "iOS"
	}

	name := ua.OSInfo().Name
	switch {
	case strings.HasPrefix(name, "Windows Phone"):
		return "Windows Phone"
	case strings.HasPrefix(name, "Windows"):
		return "Windows"
	case strings.HasPrefix(name, "Android"):
		return "Android"
	case strings.HasPrefix(name, "Mac OS"):
		return "macOS"
	case strings.HasPrefix(name, "CrOS"):
		return "Chrome OS"
	case strings.HasPrefix(name, "Linux"):
		return "Linux"
	default:
		return Other
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
