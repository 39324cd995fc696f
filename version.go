package llmtrace

// Version information for the llmtrace library
const (
	// Version is the current library version
	Version = "development"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
