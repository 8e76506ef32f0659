package glove

import "strings"

// SplitLines reassembles a newline-delimited text stream from arbitrary-sized
// chunks. It appends chunk to the unterminated tail carried over from the
// previous call, splits on '\n' (tolerating an optional preceding '\r'),
// and returns the complete, whitespace-trimmed, non-empty lines along with the
// new tail.
//
// Whitespace-only lines are dropped from the output but still consume their
// terminator. The function is pure; to preserve line order it must be called
// exactly once per inbound chunk, in chunk-arrival order.
func SplitLines(tail, chunk string) (lines []string, rest string) {
	rest = tail + chunk
	for {
		i := strings.IndexByte(rest, '\n')
		if i < 0 {
			return lines, rest
		}
		line := strings.TrimSpace(rest[:i])
		if line != "" {
			lines = append(lines, line)
		}
		rest = rest[i+1:]
	}
}
