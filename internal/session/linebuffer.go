// internal/session/linebuffer.go
package session

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// LineBuffer assembles the byte stream from the firmware into lines.
// The last element is always the open line: prompts are not terminated
// by a newline and must be visible to the state machine as they arrive.
type LineBuffer struct {
	lines   []string
	partial []byte
}

// Feed appends raw bytes. A multi-byte character split across two reads
// is kept until the rest arrives.
func (b *LineBuffer) Feed(data []byte) error {
	buf := make([]byte, 0, len(b.partial)+len(data))
	buf = append(buf, b.partial...)
	buf = append(buf, data...)
	b.partial = nil

	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}
	text := buf[:cut]
	if !utf8.Valid(text) {
		return fmt.Errorf("%w: %q", ErrDecode, text)
	}
	b.partial = append(b.partial, buf[cut:]...)
	if len(text) == 0 {
		return nil
	}

	pieces := strings.Split(string(text), "\n")
	if len(b.lines) == 0 {
		b.lines = []string{""}
	}
	last := len(b.lines) - 1
	b.lines[last] = strings.TrimRight(b.lines[last]+pieces[0], "\r")
	for _, p := range pieces[1:] {
		b.lines = append(b.lines, strings.TrimRight(p, "\r"))
	}
	return nil
}

// Lines returns the buffered lines including the open one. The slice is
// owned by the buffer.
func (b *LineBuffer) Lines() []string { return b.lines }

// Len returns the number of buffered lines including the open one
func (b *LineBuffer) Len() int { return len(b.lines) }

// Reset discards everything buffered
func (b *LineBuffer) Reset() {
	b.lines = nil
	b.partial = nil
}

// Last returns the open line
func (b *LineBuffer) Last() string {
	if len(b.lines) == 0 {
		return ""
	}
	return b.lines[len(b.lines)-1]
}

// LastNonBlank returns the last line with visible content
func (b *LineBuffer) LastNonBlank() string {
	return lastNonBlank(b.lines)
}

// DropLast removes the last line
func (b *LineBuffer) DropLast() {
	if len(b.lines) > 0 {
		b.lines = b.lines[:len(b.lines)-1]
	}
}

// DropLeadingBlank removes blank lines from the front
func (b *LineBuffer) DropLeadingBlank() {
	for len(b.lines) > 0 && strings.TrimSpace(b.lines[0]) == "" {
		b.lines = b.lines[1:]
	}
}

// TakeComplete removes and returns every newline-terminated line,
// leaving only the open line in the buffer.
func (b *LineBuffer) TakeComplete() []string {
	if len(b.lines) < 2 {
		return nil
	}
	done := append([]string(nil), b.lines[:len(b.lines)-1]...)
	b.lines = []string{b.lines[len(b.lines)-1]}
	return done
}

// Snapshot copies the buffered lines
func (b *LineBuffer) Snapshot() []string {
	return append([]string(nil), b.lines...)
}

func lastNonBlank(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
