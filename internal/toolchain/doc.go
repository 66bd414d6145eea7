// Package toolchain wraps every external program the build pipeline drives
// behind one typed operation per stage.
//
// The rest of the application never assembles command lines itself: it calls
// Toolchain methods with explicit request structs. Exec is the production
// implementation, running real binaries through a Runner; tests substitute a
// fake Toolchain or a recording Runner.
//
// Every non-zero exit is reported as a *ToolError carrying the tool's raw
// combined output, unmodified.
package toolchain
