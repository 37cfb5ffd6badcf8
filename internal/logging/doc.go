// Package logging builds the process zerolog.Logger for the gosession
// binaries: level and format parsing, console or JSON output and an
// optional lumberjack-rotated file.
package logging
