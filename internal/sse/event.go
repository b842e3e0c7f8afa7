// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sse implements the Server-Sent Events plumbing of the dev server.
package sse

import (
	"fmt"
	"strings"
)

// Event names sent to the live-reload client.
const (
	EventConnected = "connected"
	EventReload    = "reload"
	EventError     = "build-error"
)

// FormatEvent formats a message as an SSE event with optional event name.
// Multiline content is properly prefixed with "data:".
func FormatEvent(eventName, data string) string {
	var sb strings.Builder

	if eventName != "" {
		sb.WriteString(fmt.Sprintf("event: %s\n", eventName))
	}

	// Handle multiline data
	lines := strings.Split(data, "\n")
	for _, line := range lines {
		sb.WriteString(fmt.Sprintf("data: %s\n", line))
	}

	sb.WriteString("\n") // Empty line marks end of event
	return sb.String()
}

// Heartbeat is an SSE comment that keeps the connection alive.
// Comments (lines starting with :) are ignored by SSE clients.
const Heartbeat = ": heartbeat\n\n"
