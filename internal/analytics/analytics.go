// Package analytics keeps a local SQLite journal of store commands and cloud
// operations: what ran, against which target, how long it took and how it failed.
package analytics

import "os"

const (
	// TargetLocal marks commands that only touch reminders.json
	TargetLocal = "local"
	// TargetDrive marks operations that talk to Google Drive
	TargetDrive = "drive"
)

// Event represents a single journal entry
type Event struct {
	ID         int64
	Timestamp  int64
	Command    string
	Target     string
	Success    bool
	DurationMs int64
	ErrorKind  string
}

// IsEnabledFromEnv checks REMINDAT_ANALYTICS_ENABLED, which overrides the config value.
func IsEnabledFromEnv(configEnabled bool) bool {
	envVal := os.Getenv("REMINDAT_ANALYTICS_ENABLED")
	if envVal == "" {
		return configEnabled
	}
	return envVal == "true" || envVal == "1"
}
