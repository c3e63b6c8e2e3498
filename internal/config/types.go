package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Storage  StorageConfig  `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ScheduleConfig controls the outage-schedule source and the notify engine.
//
// All durations are Go duration strings (e.g. "30s", "5m").
type ScheduleConfig struct {
	// SourceURL is the operator page listing hourly outage intervals.
	SourceURL string `json:"source_url"`
	// QueueInfoURL is shown to users so they can look up their own subgroup.
	QueueInfoURL string `json:"queue_info_url,omitempty"`

	NotifyAhead  string `json:"notify_ahead,omitempty"`  // default "30m"
	PollInterval string `json:"poll_interval,omitempty"` // default "5m"
	FetchTimeout string `json:"fetch_timeout,omitempty"` // default "15s"

	// Timezone is the IANA zone all HH:MM strings are interpreted in.
	Timezone string `json:"timezone,omitempty"` // default "Europe/Kyiv"
}

// StorageConfig controls the persistence layer.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": in-process map store (tests, throwaway runs)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
