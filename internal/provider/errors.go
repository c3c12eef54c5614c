package provider

import (
	"net/http"
	"strings"

	"github.com/hongjs/code-tanuki/internal/apperr"
)

var authMarkers = []string{
	"authentication",
	"apikey",
	"api key",
	"authtoken",
	"invalid_api_key",
	"unauthenticated",
	"permission_denied",
	"401",
}

// classifyMessage is the last-resort auth detector for failures that carry
// no status code.
func classifyMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// upstreamError builds the typed error for a failed provider call. status
// is 0 when no response was received.
func upstreamError(service apperr.Service, name string, status int, detail string, err error) *apperr.Error {
	auth := status == http.StatusUnauthorized || status == http.StatusForbidden
	if status == 0 {
		text := detail
		if err != nil {
			text += " " + err.Error()
		}
		auth = classifyMessage(text)
	}

	var msg string
	switch {
	case auth:
		msg = name + " API authentication failed. Please verify the configured API key."
	case status == http.StatusTooManyRequests:
		msg = name + " API rate limit exceeded"
	case detail != "":
		msg = "Failed to get AI review: " + detail
	default:
		msg = "Failed to get AI review"
	}

	e := apperr.Upstream(service, status, msg, err)
	e.Auth = auth
	return e
}
