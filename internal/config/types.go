package config

// Settings is the top-level runtime configuration. It covers the ambient
// concerns of the wizard (logging, history, timing); the flow definition
// itself lives in its own TOML file.
type Settings struct {
	// LogFile receives structured logs. Empty disables file logging.
	LogFile string `json:"log_file,omitempty"`

	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// HistoryPath is the sqlite database recording sessions, answers,
	// and task runs. Empty keeps history in memory.
	HistoryPath string `json:"history_path,omitempty"`

	// PollIntervalMS bounds how long the UI blocks waiting for input
	// when no timer is pending.
	PollIntervalMS int `json:"poll_interval_ms,omitempty"`

	// MaxWorkers caps concurrent task processes.
	MaxWorkers int `json:"max_workers,omitempty"`

	// WatchFlow reloads the flow definition when its file changes.
	WatchFlow *bool `json:"watch_flow,omitempty"`
}

// Watch reports whether flow watching is enabled, defaulting to true.
func (s *Settings) Watch() bool {
	if s.WatchFlow == nil {
		return true
	}
	return *s.WatchFlow
}
