package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeHandledError indicates an error occurred which was already logged, so it should not be printed again.
	ExitCodeHandledError = 6

	// ExitCodeBuildFailed indicates a build produced no artifact.
	ExitCodeBuildFailed = 7

	// ExitCodeBuildPartial indicates a build produced an artifact without some of its units.
	ExitCodeBuildPartial = 8
)
