package toolchain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ToolError is returned when an external tool exits with a non-zero status.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	// Output is the tool's combined stdout and stderr, exactly as produced.
	Output []byte
}

// Error implements the error interface for ToolError. The tool's output is
// not part of the message; callers print Output as is.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with status %d", filepath.Base(e.Tool), e.ExitCode)
}

// CommandLine renders the failing invocation for diagnostics.
func (e *ToolError) CommandLine() string {
	return strings.Join(append([]string{e.Tool}, e.Args...), " ")
}
