// Package render provides progress tracking and terminal rendering for
// streaming query output. It keeps counters for rows, batches and server log
// lines received on an active query and draws a single live status line
// while records stream in.
package render

import (
	"sync"
	"unicode/utf8"
)

// Progress tracks what has arrived on the current query stream.
type Progress struct {
	// mu protects all fields
	mu   sync.Mutex
	rows int
	logs int
}

// NewProgress creates an empty progress tracker.
func NewProgress() *Progress { return &Progress{} }

// AddRow records one received record.
func (p *Progress) AddRow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows++
}

// AddLog records one server-side log line.
func (p *Progress) AddLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs++
}

// Rows returns the number of rows received so far.
func (p *Progress) Rows() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows
}

// Logs returns the number of server log lines received so far.
func (p *Progress) Logs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logs
}

// LineState holds the state for redrawing a single status line in place.
// It tracks animation frames and the maximum line length so shorter redraws
// fully overwrite longer ones without flickering.
type LineState struct {
	// FrameIdx is the current animation frame index for the spinner
	FrameIdx int
	// MaxLineLen tracks the maximum line length to prevent flickering
	MaxLineLen int
	// mu protects concurrent access
	mu sync.Mutex
}

// NewLineState creates a LineState with default values.
func NewLineState() *LineState { return &LineState{} }

// IncrementFrame advances the animation frame index.
func (ls *LineState) IncrementFrame() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.FrameIdx++
}

// Frame returns the current frame index.
func (ls *LineState) Frame() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.FrameIdx
}

// FormatLine pads a line to the maximum length seen so far, so in-place
// redraws fully cover the previous content.
func (ls *LineState) FormatLine(line string) string {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	lineLen := utf8.RuneCountInString(line)
	if lineLen > ls.MaxLineLen {
		ls.MaxLineLen = lineLen
	}
	if pad := ls.MaxLineLen - lineLen; pad > 0 {
		return line + repeatSpaces(pad)
	}
	return line
}

// repeatSpaces returns a string of n spaces.
func repeatSpaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
