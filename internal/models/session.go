package models

import "time"

// TokenState tracks the aggregator handshake.
// Fields are set in order: LinkToken, PublicToken, AccessToken.
type TokenState struct {
	LinkToken   string `json:"link_token,omitempty"`
	PublicToken string `json:"public_token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// LogCategory classifies an activity log entry
type LogCategory string

const (
	LogRequest  LogCategory = "request"
	LogResponse LogCategory = "response"
	LogError    LogCategory = "error"
)

// LogEntry is one immutable line of operator-visible traffic
type LogEntry struct {
	Message   string      `json:"message"`
	Category  LogCategory `json:"category"`
	Timestamp string      `json:"timestamp"`
	Time      time.Time   `json:"-"`
}
