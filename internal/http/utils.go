package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// fallbackIP is used when no forwarding header identifies the client.
const fallbackIP = "0.0.0.0"

// getClientIP extracts the client address: the first comma-separated entry of
// X-Forwarded-For, else X-Real-IP, else a fixed fallback. The header value is
// not validated as a well-formed IP.
func getClientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	return fallbackIP
}
