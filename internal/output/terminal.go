package output

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mewbotorg/bastet/internal/types"
)

const maxHeaderWidth = 80

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// palette colours text unless colour is disabled.
type palette struct {
	noColor bool
}

func newPalette(noColor bool) palette {
	return palette{noColor: noColor || os.Getenv("NO_COLOR") != ""}
}

func (p palette) render(style lipgloss.Style, text string) string {
	if p.noColor {
		return text
	}
	return style.Render(text)
}

func (p palette) red(text string) string { return p.render(redStyle, text) }
func (p palette) green(text string) string { return p.render(greenStyle, text) }
func (p palette) yellow(text string) string { return p.render(yellowStyle, text) }

// status colours text by status: red for Error and Failed, yellow for
// Warning and Fixed, green for Passed.
func (p palette) status(text string, s types.Status) string {
	switch s {
	case types.StatusError, types.StatusFailed:
		return p.red(text)
	case types.StatusWarning, types.StatusFixed:
		return p.yellow(text)
	default:
		return p.green(text)
	}
}

// header renders a "==== content ====" line padded to width, which is
// capped at 80 columns.
func (p palette) header(content string, width int) string {
	width = min(maxHeaderWidth, width)
	trailing := max(width-6-len(content), 0)
	line := strings.Repeat("=", 4) + " " + content + " " + strings.Repeat("=", trailing)
	return "\n" + p.render(headerStyle, line) + "\n"
}

// terminalWidth returns the width of w when it is a terminal, else 80.
func terminalWidth(w io.Writer, override int) int {
	if override > 0 {
		return override
	}
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return maxHeaderWidth
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
