// Package spinner shows a one-line activity indicator with a status message
// and the elapsed time while a command runs.
package spinner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Spinner displays a spinner next to a status line. The line is cleared when
// the spinner stops.
type Spinner struct {
	mu      sync.Mutex
	program *tea.Program
	output  io.Writer
	status  string
	now     func() time.Time
	done    chan struct{}
}

// New creates a Spinner that writes to output (os.Stderr when nil).
func New(output io.Writer, status string) *Spinner {
	if output == nil {
		output = os.Stderr
	}
	return &Spinner{
		output: output,
		status: status,
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Enabled reports whether f is an interactive terminal worth drawing on.
func Enabled(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Start runs the spinner in the background until Stop is called.
func (s *Spinner) Start() {
	width := 80
	if fd := int(os.Stderr.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	s.mu.Lock()
	s.program = tea.NewProgram(newModel(s.status, width, s.now),
		tea.WithOutput(s.output),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	p := s.program
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		_, _ = p.Run()
	}()
}

// SetStatus replaces the status message.
func (s *Spinner) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	if s.program != nil {
		s.program.Send(statusMsg(status))
	}
}

// Stop clears the spinner line and waits for the program to exit.
func (s *Spinner) Stop() {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.Quit()
	<-s.done
}

type statusMsg string

type model struct {
	spinner  spinner.Model
	status   string
	started  time.Time
	now      func() time.Time
	width    int
	quitting bool
}

func newModel(status string, width int, now func() time.Time) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner: s,
		status:  status,
		started: now(),
		now:     now,
		width:   width,
	}
}

//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case statusMsg:
		m.status = string(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.QuitMsg:
		m.quitting = true
	}

	return m, nil
}

//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) View() string {
	if m.quitting {
		return ""
	}

	elapsed := fmt.Sprintf(" (%s)", m.now().Sub(m.started).Truncate(100*time.Millisecond))

	// spinner glyph plus one space
	maxLineWidth := m.width - 3 - len(elapsed)
	if maxLineWidth < 10 {
		maxLineWidth = 10
	}

	return m.spinner.View() + " " + truncate(m.status, maxLineWidth) + elapsed
}

// truncate shortens s to maxWidth, ending in "..." when cut.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return ""
	}
	if len(s) <= maxWidth {
		return s
	}
	return s[:maxWidth-3] + "..."
}
