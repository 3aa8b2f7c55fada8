package models

import "time"

// AuditEntry records a single request event for the structured audit trail.
type AuditEntry struct {
	RequestID      string
	Timestamp      time.Time
	UserID         string
	Event          string
	Environment    string
	GroupID        string
	Operation      string
	Path           string
	Status         string
	ResponseCode   int
	ResponseTimeMs int64
	ClientIP       string
	Metadata       map[string]any
}
