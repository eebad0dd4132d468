package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/xcmd/internal/platform"
)

func TestEntry_Line(t *testing.T) {
	assert.Equal(t, "ls -la", Entry{Command: "ls", Arguments: "-la"}.Line())
	assert.Equal(t, "pwd", Entry{Command: "pwd"}.Line())
	assert.Equal(t, "pwd | Show it", Entry{Command: "pwd", Description: "Show it"}.String())
}

func TestForPlatform(t *testing.T) {
	t.Run("windows", func(t *testing.T) {
		entries := ForPlatform(platform.Windows)
		require.Len(t, entries, 13)
		assert.Equal(t, "ping google.com -n 4", entries[0].Line())
		assert.Equal(t, "cls", entries[len(entries)-1].Line())
	})

	for _, p := range []platform.Platform{platform.Linux, platform.Mac} {
		t.Run(p.String(), func(t *testing.T) {
			entries := ForPlatform(p)
			require.Len(t, entries, 13)
			assert.Equal(t, "ping google.com -c 4", entries[0].Line())
			assert.Equal(t, "clear", entries[len(entries)-1].Line())
		})
	}

	t.Run("returns a copy", func(t *testing.T) {
		entries := ForPlatform(platform.Linux)
		entries[0].Command = "changed"
		assert.Equal(t, "ping", ForPlatform(platform.Linux)[0].Command)
	})
}

func TestLines(t *testing.T) {
	lines := Lines(platform.Linux)

	require.Len(t, lines, 13+1+2)
	assert.Equal(t, "ls -la | List files in detail, including hidden ones", lines[1])
	assert.Equal(t, Separator, lines[13])
	assert.True(t, strings.HasPrefix(lines[14], "NOTE:"))
	assert.Equal(t, Notes(), lines[14:])
}
