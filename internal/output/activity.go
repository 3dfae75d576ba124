package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

var activityFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// activity draws "<frame> <Domain> :: <Tool> (<elapsed>)" on one terminal
// line while a tool runs. A single goroutine redraws it for the lifetime of
// the reporter; tool runs are swapped in with begin and end.
type activity struct {
	w        io.Writer
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	title  string
	since  time.Time
	frame  int
	drawn  int // width of the line on screen, 0 when clear
	quit   chan struct{}
	exited chan struct{}
	closed bool
}

func newActivity(w io.Writer) *activity {
	return &activity{w: w, interval: 80 * time.Millisecond, now: time.Now}
}

// begin shows title until end is called.
func (a *activity) begin(title string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.quit == nil {
		a.quit = make(chan struct{})
		a.exited = make(chan struct{})
		go a.loop(a.quit, a.exited)
	}
	a.title = title
	a.since = a.now()
	a.draw()
}

// end clears the line and stops drawing until the next begin.
func (a *activity) end() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clear()
	a.title = ""
}

// suspend clears the line while print writes to the terminal, then draws
// it again.
func (a *activity) suspend(print func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clear()
	print()
	a.draw()
}

// close stops the drawing goroutine. It may be called more than once.
func (a *activity) close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.clear()
	a.title = ""
	quit, exited := a.quit, a.exited
	a.mu.Unlock()

	if quit != nil {
		close(quit)
		<-exited
	}
}

func (a *activity) loop(quit, exited chan struct{}) {
	defer close(exited)
	tick := time.NewTicker(a.interval)
	defer tick.Stop()
	for {
		select {
		case <-quit:
			return
		case <-tick.C:
			a.mu.Lock()
			a.frame++
			a.draw()
			a.mu.Unlock()
		}
	}
}

// draw must be called with mu held.
func (a *activity) draw() {
	if a.title == "" {
		return
	}
	elapsed := a.now().Sub(a.since).Truncate(time.Second)
	line := fmt.Sprintf("%c %s (%s)", activityFrames[a.frame%len(activityFrames)], a.title, elapsed)
	width := utf8.RuneCountInString(line)
	pad := ""
	if width < a.drawn {
		pad = strings.Repeat(" ", a.drawn-width)
	}
	fmt.Fprintf(a.w, "\r%s%s", line, pad)
	a.drawn = width
}

// clear must be called with mu held.
func (a *activity) clear() {
	if a.drawn == 0 {
		return
	}
	fmt.Fprintf(a.w, "\r%s\r", strings.Repeat(" ", a.drawn))
	a.drawn = 0
}
