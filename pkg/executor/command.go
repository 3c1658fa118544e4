package executor

// Command is one process invocation inside a workspace.
type Command struct {
	// Args is the argv. Args[0] is resolved through PATH.
	Args []string

	// Dir is the working directory. Empty means the workspace root.
	Dir string

	// Env is appended to the provider's base environment.
	Env []string

	// Stdin is piped to the process.
	Stdin string

	// MaxOutputBytes caps each captured stream. Zero means unlimited.
	MaxOutputBytes int64
}
