package rvlink

import "strings"

// WebSocketURL derives the event stream endpoint from the server's HTTP base URL: http://… becomes ws://… and
// https://… becomes wss://…. Trailing slashes are dropped.
func WebSocketURL(serverURL string) string {
	if strings.HasPrefix(serverURL, "http") {
		serverURL = "ws" + strings.TrimPrefix(serverURL, "http")
	}
	return strings.TrimRight(serverURL, "/")
}
