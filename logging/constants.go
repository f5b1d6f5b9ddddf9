package logging

// These constants identify the services which log, as the value of the "module" field of their sub-logger.
const (
	// COMPILATION_SERVICE identifies the compilation package
	COMPILATION_SERVICE = "compilation"
	// SANDBOX_SERVICE identifies the sandbox package
	SANDBOX_SERVICE = "sandbox"
	// CLI_SERVICE identifies the cmd package
	CLI_SERVICE = "cli"
)
