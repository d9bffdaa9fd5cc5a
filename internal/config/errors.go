package config

const (
	// Config errors
	ErrReadConfigFmt  = "failed to read config file: %w"
	ErrParseConfigFmt = "failed to parse config file: %w"

	// Storage errors
	ErrInitializeDatabaseFmt = "failed to initialize database: %w"
	ErrOpenStorageFmt        = "failed to open storage backend: %w"

	// Collaboration errors, surfaced to the user per action
	ErrActionFailedFmt = "failed to %s"

	// Channel
	MsgLiveUpdatesPaused = "live updates paused"
	MsgMaxReconnects     = "Max reconnection attempts reached"
)
