// Package translate rewrites common command names and flags between the
// Windows and Unix command dialects.
//
// Translation is textual and best-effort: flags are rewritten with pattern
// replacement, one rule at a time over the whole argument string. Unknown
// commands and arguments pass through unchanged, and translation never fails.
package translate

import (
	"strings"

	"github.com/jmgilman/xcmd/internal/platform"
)

// Command is a platform-specific command name and argument string.
type Command struct {
	Name      string `json:"command" yaml:"command"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// Line joins the name and arguments the way a shell would receive them.
func (c Command) Line() string {
	if c.Arguments == "" {
		return c.Name
	}
	return c.Name + " " + c.Arguments
}

// Translator maps logical commands to the dialect of a target platform.
// The host is used to resolve platform.Auto.
type Translator struct {
	host platform.Host
}

// New returns a Translator that resolves Auto against host.
func New(host platform.Host) *Translator {
	return &Translator{host: host}
}

// Translate rewrites command and arguments for target. Bare commands (empty
// or blank arguments) are returned unchanged.
func (t *Translator) Translate(command, arguments string, target platform.Platform) Command {
	resolved := t.host.Resolve(target)

	if strings.TrimSpace(arguments) == "" {
		return Command{Name: command, Arguments: arguments}
	}

	f, ok := lookup(command)
	if !ok {
		return Command{Name: command, Arguments: arguments}
	}

	return f.apply(command, arguments, resolved)
}
