// Package cli is the command-line adapter for the application. It parses
// arguments with cobra, validates them into an app.Config, runs the app and
// maps every failure to an *ExitError carrying the process exit code.
package cli
