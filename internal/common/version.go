package common

// Version information, set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)
