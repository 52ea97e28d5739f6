// Package linefeed buffers bytes from a UART whose far end terminates every
// response with '\n'.
package linefeed

import "bytes"

// Buffer accumulates received bytes. With Enabled set, reads are line
// oriented: a read is complete at the first '\n', which is never returned.
type Buffer struct {
	Enabled bool
	pending []byte
}

func (b *Buffer) Append(p []byte) {
	b.pending = append(b.pending, p...)
}

func (b *Buffer) Len() int {
	return len(b.pending)
}

// Ready reports whether a read of n bytes can complete without waiting for
// more data.
func (b *Buffer) Ready(n int) bool {
	if b.Enabled {
		return bytes.IndexByte(b.pending, '\n') >= 0
	}
	return len(b.pending) >= n
}

// Take removes and returns up to n bytes. In line mode it stops at the first
// line feed; the rest of an overlong line is dropped with its line feed.
func (b *Buffer) Take(n int) []byte {
	end := min(n, len(b.pending))
	skip := 0
	if b.Enabled {
		if i := bytes.IndexByte(b.pending, '\n'); i >= 0 {
			end = min(i, n)
			skip = i - end + 1
		}
	}

	out := bytes.Clone(b.pending[:end])
	b.pending = b.pending[end+skip:]
	return bytes.TrimRight(out, "\r")
}

// Terminate returns p as it goes on the wire.
func (b *Buffer) Terminate(p []byte) []byte {
	if !b.Enabled {
		return p
	}
	return append(bytes.Clone(p), '\n')
}
