package patch

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

type lineKind byte

const (
	lineContext lineKind = ' '
	lineRemoved lineKind = '-'
	lineAdded   lineKind = '+'
)

type hunkLine struct {
	kind lineKind
	text string
}

// hunk is a parsed diff hunk. start is the 0-based line the old side is
// recorded at.
type hunk struct {
	start    int
	newStart int
	lines    []hunkLine
}

func parseHunk(h *diff.Hunk) hunk {
	out := hunk{
		start:    max(int(h.OrigStartLine)-1, 0),
		newStart: max(int(h.NewStartLine)-1, 0),
	}
	// A hunk with no old lines records the line it inserts after.
	if h.OrigLines == 0 {
		out.start = int(h.OrigStartLine)
	}
	if h.NewLines == 0 {
		out.newStart = int(h.NewStartLine)
	}
	body := strings.Split(string(h.Body), "\n")
	if n := len(body); n > 0 && body[n-1] == "" {
		body = body[:n-1]
	}
	for _, l := range body {
		if l == "" {
			out.lines = append(out.lines, hunkLine{kind: lineContext})
			continue
		}
		switch l[0] {
		case ' ', '-', '+':
			out.lines = append(out.lines, hunkLine{kind: lineKind(l[0]), text: l[1:]})
		}
		// "\ No newline at end of file" and anything else is ignored.
	}
	return out
}

// reverse swaps the sides of h.
func (h hunk) reverse() hunk {
	r := hunk{start: h.newStart, newStart: h.start, lines: make([]hunkLine, len(h.lines))}
	for i, l := range h.lines {
		switch l.kind {
		case lineRemoved:
			l.kind = lineAdded
		case lineAdded:
			l.kind = lineRemoved
		}
		r.lines[i] = l
	}
	return r
}

// oldLen is the number of file lines the hunk consumes.
func (h hunk) oldLen() int {
	n := 0
	for _, l := range h.lines {
		if l.kind != lineAdded {
			n++
		}
	}
	return n
}

func sameLine(a, b string) bool {
	return strings.TrimSuffix(a, "\r") == strings.TrimSuffix(b, "\r")
}

// matchAt reports whether h applies at pos with at most fuzz mismatched
// context lines. Removed lines must always match.
func (h hunk) matchAt(lines []string, pos, fuzz int) bool {
	if pos < 0 || pos+h.oldLen() > len(lines) {
		return false
	}
	misses := 0
	i := pos
	for _, l := range h.lines {
		if l.kind == lineAdded {
			continue
		}
		if !sameLine(lines[i], l.text) {
			if l.kind == lineRemoved {
				return false
			}
			misses++
			if misses > fuzz {
				return false
			}
		}
		i++
	}
	return true
}

// locate finds where h applies with at most fuzz mismatched context
// lines, searching outward from want up to window lines. Positions
// before floor are never considered.
func (h hunk) locate(lines []string, want, floor, window, fuzz int) (pos int, ok bool) {
	for off := 0; off <= window; off++ {
		for _, p := range [2]int{want + off, want - off} {
			if p >= floor && h.matchAt(lines, p, fuzz) {
				return p, true
			}
			if off == 0 {
				break
			}
		}
	}
	return 0, false
}

// apply replaces the old side of h at pos. Context lines keep the file's
// text so fuzzed context is never rewritten.
func (h hunk) apply(lines []string, pos int, crlf bool) []string {
	out := make([]string, 0, len(lines)+len(h.lines))
	out = append(out, lines[:pos]...)
	i := pos
	for _, l := range h.lines {
		switch l.kind {
		case lineContext:
			out = append(out, lines[i])
			i++
		case lineRemoved:
			i++
		case lineAdded:
			text := l.text
			if crlf && !strings.HasSuffix(text, "\r") {
				text += "\r"
			}
			out = append(out, text)
		}
	}
	return append(out, lines[i:]...)
}

// delta is the change in line count h causes.
func (h hunk) delta() int {
	d := 0
	for _, l := range h.lines {
		switch l.kind {
		case lineAdded:
			d++
		case lineRemoved:
			d--
		}
	}
	return d
}

// text holds a file split into lines.
type text struct {
	lines []string
	eol   bool
}

func splitText(b []byte) text {
	if len(b) == 0 {
		return text{}
	}
	s := string(b)
	t := text{eol: strings.HasSuffix(s, "\n")}
	t.lines = strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	return t
}

func (t text) bytes() []byte {
	if len(t.lines) == 0 {
		return nil
	}
	s := strings.Join(t.lines, "\n")
	if t.eol {
		s += "\n"
	}
	return []byte(s)
}

func (t text) crlf() bool {
	return len(t.lines) > 0 && strings.HasSuffix(t.lines[0], "\r")
}
