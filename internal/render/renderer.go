package render

import (
	"fmt"
	"io"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// LogCounter is a zerolog hook that counts emitted events so the status
// line can show how many server log lines arrived.
type LogCounter struct {
	P *Progress
}

// Run implements zerolog.Hook.
func (h LogCounter) Run(_ *zerolog.Event, _ zerolog.Level, _ string) {
	h.P.AddLog()
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StartStatusLine draws a live "streaming" status line on w, updating row
// and batch counters from p until the returned stop function is called.
// The cursor is hidden while the line animates and the line is cleared on
// stop.
func StartStatusLine(w io.Writer, p *Progress, interval time.Duration) func() {
	ls := NewLineState()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	cursor.Hide()
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%s\r", ls.FormatLine(""))
				return
			case <-ticker.C:
				frame := spinnerFrames[ls.Frame()%len(spinnerFrames)]
				line := fmt.Sprintf("%s %s %s",
					pterm.NewStyle(pterm.FgLightCyan).Sprint(frame),
					pterm.NewStyle(pterm.FgCyan).Sprint("streaming"),
					pterm.NewStyle(pterm.FgGray).Sprintf("rows=%d logs=%d", p.Rows(), p.Logs()))
				fmt.Fprintf(w, "\r%s", ls.FormatLine(line))
				ls.IncrementFrame()
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
		cursor.Show()
	}
}
