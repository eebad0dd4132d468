package translate

import (
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/jmgilman/xcmd/internal/platform"
)

// Family identifies a group of equivalent commands across dialects.
type Family string

const (
	FamilyPing    Family = "ping"
	FamilyList    Family = "list"
	FamilyProcess Family = "process"
	FamilyNetwork Family = "network"
	FamilySearch  Family = "search"
	FamilyRead    Family = "read"
	FamilyDelete  Family = "delete"
	FamilyCopy    Family = "copy"
	FamilyMove    Family = "move"
	FamilyClear   Family = "clear"
)

// rewrite transforms an argument string. A nil rewrite leaves it unchanged.
type rewrite func(args string) string

// family is one variant of the closed translation table.
type family struct {
	id      Family
	windows string
	unix    string

	// keepName leaves the caller's spelling of the command untouched.
	keepName bool

	toWindows rewrite
	toUnix    rewrite
}

var families = []family{
	{
		id:       FamilyPing,
		windows:  "ping",
		unix:     "ping",
		keepName: true,
		toWindows: chain(
			replace(`-c\s+(\d+)`, "-n $1"),
			replace(`-i\s+(\d+)`, "-w ${1}000"), // seconds to milliseconds
			replace(`-s\s+(\d+)`, "-l $1"),
		),
		toUnix: chain(
			replace(`-n\s+(\d+)`, "-c $1"),
			replace(`-w\s+(\d+)`, "-W $1"),
			replace(`-l\s+(\d+)`, "-s $1"),
		),
	},
	{
		id:      FamilyList,
		windows: "dir",
		unix:    "ls",
		toWindows: chain(
			replace(`-la?`, "/a"),
			replace(`-R`, "/s"),
			replace(`-h`, ""),
		),
		toUnix: chain(
			replace(`/a`, "-la"),
			replace(`/s`, "-R"),
			replace(`/b`, "-1"),
		),
	},
	{
		id:        FamilyProcess,
		windows:   "tasklist",
		unix:      "ps",
		toWindows: replaceWhenContains("/v", "-e", "aux"),
		toUnix:    replaceWhenContains("aux", "/v"),
	},
	{
		id:        FamilyNetwork,
		windows:   "ipconfig",
		unix:      "ifconfig",
		toWindows: replaceWhenContains("/all", "-a"),
		toUnix:    replaceWhenContains("-a", "/all"),
	},
	{
		id:      FamilySearch,
		windows: "findstr",
		unix:    "grep",
		toWindows: chain(
			replace(`-i`, "/i"),
			replace(`-r`, "/s"),
			replace(`-n`, "/n"),
		),
		toUnix: chain(
			replace(`/i`, "-i"),
			replace(`/s`, "-r"),
			replace(`/n`, "-n"),
		),
	},
	{
		id:      FamilyRead,
		windows: "type",
		unix:    "cat",
	},
	{
		id:      FamilyDelete,
		windows: "del",
		unix:    "rm",
		toWindows: chain(
			replace(`-r`, "/s"),
			replace(`-f`, "/f"),
		),
		toUnix: chain(
			replace(`/s`, "-r"),
			replace(`/f`, "-f"),
		),
	},
	{
		id:        FamilyCopy,
		windows:   "copy",
		unix:      "cp",
		toWindows: replace(`-r`, "/s"),
		toUnix:    replace(`/s`, "-r"),
	},
	{
		id:      FamilyMove,
		windows: "move",
		unix:    "mv",
	},
	{
		id:        FamilyClear,
		windows:   "cls",
		unix:      "clear",
		toWindows: discard,
		toUnix:    discard,
	},
}

// byName indexes families by both dialect names, lowercased.
var byName = func() map[string]*family {
	m := make(map[string]*family, len(families)*2)
	for i := range families {
		f := &families[i]
		m[f.windows] = f
		m[f.unix] = f
	}
	return m
}()

func lookup(command string) (*family, bool) {
	f, ok := byName[strings.ToLower(command)]
	return f, ok
}

func (f *family) apply(command, arguments string, target platform.Platform) Command {
	name, rw := f.unix, f.toUnix
	if target.IsWindows() {
		name, rw = f.windows, f.toWindows
	}
	if f.keepName {
		name = command
	}
	if rw != nil {
		arguments = rw(arguments)
	}
	return Command{Name: name, Arguments: arguments}
}

// replace compiles pattern once and returns a rewrite substituting every match.
// Replacement groups use the ${n} syntax.
func replace(pattern, replacement string) rewrite {
	re := regexp2.MustCompile(pattern, regexp2.None)
	return func(args string) string {
		out, err := re.Replace(args, replacement, -1, -1)
		if err != nil {
			return args
		}
		return out
	}
}

// replaceWhenContains swaps the whole argument string for to when any needle
// occurs in it.
func replaceWhenContains(to string, needles ...string) rewrite {
	return func(args string) string {
		for _, n := range needles {
			if strings.Contains(args, n) {
				return to
			}
		}
		return args
	}
}

func chain(rs ...rewrite) rewrite {
	return func(args string) string {
		for _, r := range rs {
			args = r(args)
		}
		return args
	}
}

func discard(string) string { return "" }

// FamilyInfo describes one row of the translation table.
type FamilyInfo struct {
	Family  Family `json:"family" yaml:"family"`
	Windows string `json:"windows" yaml:"windows"`
	Unix    string `json:"unix" yaml:"unix"`
}

// Families lists the supported command families in table order.
func Families() []FamilyInfo {
	out := make([]FamilyInfo, 0, len(families))
	for _, f := range families {
		out = append(out, FamilyInfo{Family: f.id, Windows: f.windows, Unix: f.unix})
	}
	return out
}

// Lookup returns the family a command name belongs to.
func Lookup(command string) (Family, bool) {
	f, ok := lookup(command)
	if !ok {
		return "", false
	}
	return f.id, true
}

// Equivalent returns the other dialect's name for command (e.g. "dir" for
// "ls"). Families whose names match in both dialects are not reported.
func Equivalent(command string) (string, bool) {
	f, ok := lookup(command)
	if !ok || f.windows == f.unix {
		return "", false
	}
	if strings.EqualFold(command, f.windows) {
		return f.unix, true
	}
	return f.windows, true
}
