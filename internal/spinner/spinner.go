// Package spinner provides a terminal spinner with ticker-style status display.
// It shows a spinning indicator alongside the latest complete output line of a
// running process, updating in place without polluting the terminal buffer.
package spinner

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	lineBuffer   = 64
)

// Spinner displays a spinner with the latest line of output next to it.
// Output chunks are fed through Write; they need not end on line boundaries.
type Spinner struct {
	output io.Writer
	lineCh chan string

	mu      sync.Mutex
	partial strings.Builder
	closed  bool
}

// New creates a new Spinner that renders to output (typically os.Stderr).
// If output is nil, os.Stderr is used.
func New(output io.Writer) *Spinner {
	if output == nil {
		output = os.Stderr
	}

	return &Spinner{
		output: output,
		lineCh: make(chan string, lineBuffer),
	}
}

// Write accepts a chunk of process output. Every complete non-blank line is
// forwarded to the display; a trailing partial line is held until the next
// chunk completes it. Write never blocks on the display and drops lines when
// the display falls behind, since only the latest line is shown.
func (s *Spinner) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return len(p), nil
	}

	rest := string(p)
	for {
		line, after, found := strings.Cut(rest, "\n")
		if !found {
			s.partial.WriteString(line)
			break
		}

		s.partial.WriteString(line)
		s.send(s.partial.String())
		s.partial.Reset()
		rest = after
	}

	return len(p), nil
}

// WriteString is Write for decoded output chunks.
func (s *Spinner) WriteString(chunk string) (int, error) {
	return s.Write([]byte(chunk))
}

func (s *Spinner) send(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	select {
	case s.lineCh <- line:
	default:
	}
}

// Start runs the spinner display and blocks until Stop is called.
// Call this in a goroutine while the process runs.
func (s *Spinner) Start() error {
	program := tea.NewProgram(newModel(s.lineCh, terminalWidth()),
		tea.WithOutput(s.output),
		tea.WithInput(nil),         // stdin belongs to the child
		tea.WithoutSignalHandler(), // Let parent handle signals
	)

	_, err := program.Run()
	return err
}

// Stop ends the display and clears the spinner line. It is safe to call
// Stop before Start, and more than once.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.lineCh)
}

func terminalWidth() int {
	if fd := int(os.Stderr.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

// model is the bubbletea model for the spinner.
type model struct {
	spinner    spinner.Model
	statusLine string
	width      int
	lineCh     <-chan string
	quitting   bool
}

// lineMsg is sent when a new line of output is available.
type lineMsg string

// doneMsg is sent once the spinner has been stopped.
type doneMsg struct{}

func newModel(lineCh <-chan string, width int) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner: s,
		width:   width,
		lineCh:  lineCh,
	}
}

// Init implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForLine(m.lineCh),
	)
}

// Update implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case lineMsg:
		m.statusLine = string(msg)
		return m, waitForLine(m.lineCh)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) View() string {
	if m.quitting {
		return ""
	}

	// spinner glyph plus a space
	maxLineWidth := max(m.width-3, 10)
	return m.spinner.View() + " " + truncate(m.statusLine, maxLineWidth)
}

// waitForLine waits for the next line; a closed channel ends the program.
func waitForLine(lineCh <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-lineCh
		if !ok {
			return doneMsg{}
		}
		return lineMsg(line)
	}
}

// truncate shortens s to at most maxWidth runes, ending in "..." when cut.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxWidth {
		return s
	}
	return string(runes[:maxWidth-3]) + "..."
}
