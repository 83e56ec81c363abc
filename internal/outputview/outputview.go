// Package outputview renders large crew output without re-splitting it on
// every frame: lines are cached per content and only a fixed number of rows
// is materialized at a time.
package outputview

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
)

// DefaultRows is the window height used when none is given.
const DefaultRows = 20

// Lines caches the line split of the last text it saw.
type Lines struct {
	mu     sync.Mutex
	text   string
	lines  []string
	splits int
}

// Split returns text split on newlines. The result is reused until text
// changes. Joining the result with "\n" gives back text exactly.
func (l *Lines) Split(text string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lines != nil && text == l.text {
		return l.lines
	}
	l.text = text
	l.lines = strings.Split(text, "\n")
	l.splits++
	return l.lines
}

// Splits counts how many times the text was actually re-split.
func (l *Lines) Splits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.splits
}

// Window is a fixed-height view over a line slice. Offset and clamping are
// held by a bubbles viewport, which is reloaded only when the slice changes.
type Window struct {
	Rows   int
	vp     viewport.Model
	loaded []string
}

// Offset returns the first visible line.
func (w *Window) Offset() int { return w.vp.YOffset }

func (w *Window) rows() int {
	if w.Rows <= 0 {
		return DefaultRows
	}
	return w.Rows
}

// load points the viewport at lines and clamps the offset into range.
func (w *Window) load(lines []string) {
	w.vp.Height = w.rows()
	if !sameSlice(lines, w.loaded) {
		w.loaded = lines
		w.vp.SetContent(strings.Join(lines, "\n"))
	}
	w.vp.SetYOffset(w.vp.YOffset)
}

// Visible returns at most Rows lines starting at the offset.
func (w *Window) Visible(lines []string) []string {
	w.load(lines)
	off := min(w.vp.YOffset, len(lines))
	end := min(off+w.rows(), len(lines))
	return lines[off:end]
}

// Scroll moves the window by delta lines.
func (w *Window) Scroll(lines []string, delta int) {
	w.load(lines)
	w.vp.SetYOffset(w.vp.YOffset + delta)
}

// Bottom pins the window to the last page.
func (w *Window) Bottom(lines []string) {
	w.load(lines)
	w.vp.GotoBottom()
}

// sameSlice reports whether a and b are the same backing slice. Lines hands
// out one slice per content, so this is a content check without a compare.
func sameSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

// View ties a cache and a window together for one output.
type View struct {
	Lines  Lines
	Window Window
}

// Render returns the visible page of text.
func (v *View) Render(text string) string {
	return strings.Join(v.Window.Visible(v.Lines.Split(text)), "\n")
}

// Total returns the line count of text.
func (v *View) Total(text string) int {
	return len(v.Lines.Split(text))
}

// Scroll moves the window over text by delta lines.
func (v *View) Scroll(text string, delta int) {
	v.Window.Scroll(v.Lines.Split(text), delta)
}

// Bottom pins the window over text to its last page.
func (v *View) Bottom(text string) {
	v.Window.Bottom(v.Lines.Split(text))
}
