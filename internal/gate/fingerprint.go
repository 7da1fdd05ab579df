// Package gate enforces the per-device account limit.
package gate

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// DeviceAttrs are the client attributes the fingerprint is derived from
type DeviceAttrs struct {
	UserAgent string `json:"userAgent"`
	Language  string `json:"language"`
	Cores     int    `json:"cores"`
	Screen    string `json:"screen"`
	Platform  string `json:"platform"`
}

// Fingerprint derives a stable device id from client attributes. The
// hash is the classic 32-bit signed h*31+c rolling hash over UTF-16
// code units; existing stored ids depend on this exact scheme, so it
// must not change.
func Fingerprint(attrs DeviceAttrs) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{
		attrs.UserAgent,
		attrs.Language,
		coresString(attrs.Cores),
		attrs.Screen,
		attrs.Platform,
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return "device_" + hashBase36(strings.Join(parts, "|"))
}

func coresString(cores int) string {
	if cores <= 0 {
		return ""
	}
	return strconv.Itoa(cores)
}

func hashBase36(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h<<5 - h + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
