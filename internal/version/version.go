package version

// Set via -ldflags at release time.
var (
	AppName   = "GameBuddy"
	Version   = "dev"
	BuildDate = "unknown"
)
