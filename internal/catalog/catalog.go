// Package catalog lists example commands for each platform dialect.
package catalog

import (
	"github.com/jmgilman/xcmd/internal/platform"
)

// Entry is an example command with a short description.
type Entry struct {
	Command     string `json:"command" yaml:"command"`
	Arguments   string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Description string `json:"description" yaml:"description"`
}

// Line returns the command as it would be typed.
func (e Entry) Line() string {
	if e.Arguments == "" {
		return e.Command
	}
	return e.Command + " " + e.Arguments
}

// String formats the entry as "<line> | <description>".
func (e Entry) String() string {
	return e.Line() + " | " + e.Description
}

// Separator divides the examples from the notes in Lines.
const Separator = "---"

var windows = []Entry{
	{"ping", "google.com -n 4", "Send 4 pings to google.com"},
	{"dir", "/b", "List files and directories (bare format)"},
	{"ipconfig", "/all", "Show full network configuration"},
	{"netstat", "-an", "Show all connections and ports"},
	{"tasklist", "/v", "List processes with details"},
	{"systeminfo", "", "Show complete system information"},
	{"echo", "Hello World", "Print text"},
	{"type", "file.txt", "Show file contents"},
	{"hostname", "", "Show computer name"},
	{"whoami", "", "Show current user"},
	{"date", "/t", "Show current date"},
	{"time", "/t", "Show current time"},
	{"cls", "", "Clear the screen"},
}

var unix = []Entry{
	{"ping", "google.com -c 4", "Send 4 pings to google.com"},
	{"ls", "-la", "List files in detail, including hidden ones"},
	{"pwd", "", "Show current directory"},
	{"ifconfig", "-a", "Show all network configuration"},
	{"netstat", "-an", "Show all connections and ports"},
	{"ps", "aux", "List all system processes"},
	{"uname", "-a", "Show complete system information"},
	{"echo", "'Hello World'", "Print text"},
	{"cat", "file.txt", "Show file contents"},
	{"hostname", "", "Show computer name"},
	{"whoami", "", "Show current user"},
	{"date", "", "Show current date and time"},
	{"clear", "", "Clear the screen"},
}

var notes = []string{
	"NOTE: commands are translated automatically between operating systems",
	"Example: 'ping -c 4' on Linux becomes 'ping -n 4' on Windows",
}

// ForPlatform returns the examples for p. Linux and Mac share the Unix list.
// Auto is not resolved here and yields the Unix list.
func ForPlatform(p platform.Platform) []Entry {
	src := unix
	if p.IsWindows() {
		src = windows
	}
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}

// Notes returns the translation notes shown after the examples.
func Notes() []string {
	out := make([]string, len(notes))
	copy(out, notes)
	return out
}

// Lines renders the examples for p followed by Separator and the notes.
func Lines(p platform.Platform) []string {
	entries := ForPlatform(p)
	lines := make([]string, 0, len(entries)+1+len(notes))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	lines = append(lines, Separator)
	lines = append(lines, notes...)
	return lines
}
