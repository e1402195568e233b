// Package attendance records confirmed attendance events and applies the
// identity-authorization policy that gates them.
package attendance

import "time"

// Capture paths for an attendance record.
const (
	ModeStream     = "stream"      // derived from the most recent live video frame
	ModeSingleShot = "single-shot" // derived from one uploaded still image
)

// Record is a single attendance event. Records are append-only: the log is
// never rewritten.
type Record struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM:SS
	Mode string `json:"mode"`
}

// NewRecord builds a record for name stamped with the given moment.
func NewRecord(name, mode string, now time.Time) Record {
	return Record{
		Name: name,
		Date: now.Format("2006-01-02"),
		Time: now.Format("15:04:05"),
		Mode: mode,
	}
}

// Session is the authenticated caller context, supplied by the auth
// collaborator before any attendance operation runs. Read-only here.
type Session struct {
	Role     Role
	Username string
}

// Role of an authenticated session.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)
