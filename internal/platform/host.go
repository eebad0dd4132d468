package platform

import (
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Host describes the machine that runs the commands.
type Host struct {
	Platform Platform // Concrete platform, never Auto
	Name     string   // Human-readable OS name (e.g., "Linux")
	Version  string   // Kernel or platform version
	Arch     string
	Hostname string
}

// Detect inspects the running machine. Fields gopsutil cannot provide fall
// back to the Go runtime values.
func Detect() Host {
	h := Host{
		Platform: FromGOOS(runtime.GOOS),
		Name:     osName(runtime.GOOS),
		Arch:     runtime.GOARCH,
	}

	info, err := host.Info()
	if err == nil && info != nil {
		h.Hostname = info.Hostname
		if info.KernelArch != "" {
			h.Arch = info.KernelArch
		}
		switch h.Platform {
		case Linux:
			h.Version = info.KernelVersion
		default:
			h.Version = info.PlatformVersion
		}
	}

	if h.Hostname == "" {
		h.Hostname, _ = os.Hostname()
	}

	return h
}

// Resolve returns p, or the host platform when p is Auto or empty.
func (h Host) Resolve(p Platform) Platform {
	if p == Auto || p == "" {
		return h.Platform
	}
	return p
}

// ShellPrefix returns the interpreter invocation used to run a command line.
func (h Host) ShellPrefix() []string {
	if h.Platform.IsWindows() {
		return []string{"cmd", "/c"}
	}
	return []string{"/bin/sh", "-c"}
}

// LineSeparator returns the host's natural line terminator.
func (h Host) LineSeparator() string {
	if h.Platform.IsWindows() {
		return "\r\n"
	}
	return "\n"
}

// Description returns "<name> <version>", e.g. "Linux 6.8.0-45-generic".
func (h Host) Description() string {
	return strings.TrimSpace(h.Name + " " + h.Version)
}

func osName(goos string) string {
	switch goos {
	case "windows":
		return "Windows"
	case "darwin":
		return "Mac OS X"
	case "linux":
		return "Linux"
	case "":
		return ""
	default:
		return strings.ToUpper(goos[:1]) + goos[1:]
	}
}
