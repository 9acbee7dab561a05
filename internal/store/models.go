package store

import "time"

// Setting keys known to flowctl.
const (
	KeyAPIURL    = "api_url"
	KeyAuthToken = "auth_token"
	KeyLanguage  = "language"
)

// Keys lists the accepted setting keys in display order.
var Keys = []string{KeyAPIURL, KeyAuthToken, KeyLanguage}

// ValidKey reports whether key is a known setting.
func ValidKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Action is what flowctl did to a task on the server.
type Action string

const (
	ActionCreated   Action = "created"
	ActionCopied    Action = "copied"
	ActionCancelled Action = "cancelled"
	ActionDeleted   Action = "deleted"
)

// Entry is one line of the local task history: tasks this machine created,
// copied, cancelled or deleted, so they can be found again later.
type Entry struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	Name      string    `json:"name,omitempty"`
	Action    Action    `json:"action"`
	BaseURL   string    `json:"base_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
