// Package platform models the operating system dialects a command can target
// and the host the service actually runs on.
package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPlatform is returned when a platform name cannot be parsed.
var ErrUnknownPlatform = errors.New("unknown platform")

// Platform is a target operating system dialect.
type Platform string

const (
	Windows Platform = "WINDOWS"
	Linux   Platform = "LINUX"
	Mac     Platform = "MAC"

	// Auto defers the choice to the executing host. It is resolved with
	// Host.Resolve and never appears in a translation or execution result.
	Auto Platform = "AUTO"
)

// Names returns the accepted platform names.
func Names() []string {
	return []string{string(Windows), string(Linux), string(Mac), string(Auto)}
}

// Parse converts a case-insensitive name to a Platform.
// An empty name parses as Auto.
func Parse(name string) (Platform, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", string(Auto):
		return Auto, nil
	case string(Windows):
		return Windows, nil
	case string(Linux):
		return Linux, nil
	case string(Mac):
		return Mac, nil
	}
	return "", fmt.Errorf("%w: %s (valid: %s)", ErrUnknownPlatform, name, strings.Join(Names(), ", "))
}

// IsWindows reports whether p uses the Windows dialect.
func (p Platform) IsWindows() bool {
	return p == Windows
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// FromGOOS maps a Go GOOS value to a concrete Platform. Anything that is
// neither Windows nor macOS is treated as a Unix-family Linux host.
func FromGOOS(goos string) Platform {
	switch goos {
	case "windows":
		return Windows
	case "darwin", "ios":
		return Mac
	default:
		return Linux
	}
}
