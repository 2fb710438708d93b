package models

import "time"

// Severity of a user-facing notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification describes one terminal failure or resource warning together
// with a suggested remedy.
type Notification struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Severity Severity  `json:"severity"`
	Subject  string    `json:"subject"`
	Cause    string    `json:"cause"`
	Remedy   string    `json:"remedy,omitempty"`
}
