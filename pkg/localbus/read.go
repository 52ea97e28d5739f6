package localbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/seagrayinc/mesabus/pkg/mesabus"
)

// Read returns n words from consecutive addresses starting at addr, split
// into requests of at most MaxReadWords.
func (l *Link) Read(ctx context.Context, addr uint32, n int) ([]uint32, error) {
	return l.read(ctx, addr, n, false)
}

// ReadRepeat returns n words all read from addr, as for a FIFO.
func (l *Link) ReadRepeat(ctx context.Context, addr uint32, n int) ([]uint32, error) {
	return l.read(ctx, addr, n, true)
}

func (l *Link) read(ctx context.Context, addr uint32, n int, repeat bool) ([]uint32, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrWordCount, n)
	}
	if n <= MaxReadWords {
		return l.ReadRaw(ctx, addr, n, repeat)
	}

	out := make([]uint32, 0, n)
	for remaining := n; remaining > 0; {
		chunk := min(remaining, MaxReadWords)
		words, err := l.ReadRaw(ctx, addr, chunk, repeat)
		if err != nil {
			return nil, err
		}
		out = append(out, words...)

		remaining -= chunk
		if !repeat {
			addr += uint32(wordBytes * chunk)
		}
	}
	return out, nil
}

// ReadRaw issues a single read request for n words, n at most MaxReadWords.
//
// Response words that fail to decode are replaced by mesabus.Sentinel and
// logged; a short or garbled response never fails the read, and the result
// always holds n words. Only transport failures are returned as errors.
func (l *Link) ReadRaw(ctx context.Context, addr uint32, n int, repeat bool) ([]uint32, error) {
	if n < 0 || n > MaxReadWords {
		return nil, fmt.Errorf("%w: %d", ErrWordCount, n)
	}
	if n == 0 {
		return []uint32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := mesabus.Read
	if repeat {
		cmd = mesabus.ReadRepeat
	}

	text, err := l.bus.Request(l.dev, cmd, mesabus.AppendWords(nil, addr, uint32(n)), n)
	mustFit(err)
	switch {
	case errors.Is(err, mesabus.ErrTruncated):
		l.log.Warn("invalid local bus read", hexAddr(addr), slog.Int("words", n), slog.Any("error", err))
		l.substituted.Add(uint64(n))
		l.frames.Add(1)
		return sentinels(n), nil
	case err != nil:
		return nil, err
	}
	l.frames.Add(1)

	words, bad := mesabus.ParseWords(text, n)
	for _, e := range bad {
		l.log.Warn("invalid local bus read", hexAddr(addr), slog.Int("index", e.Index), slog.String("word", e.Text))
	}
	l.substituted.Add(uint64(len(bad)))
	return words, nil
}

func sentinels(n int) []uint32 {
	words := make([]uint32, n)
	for i := range words {
		words[i] = mesabus.Sentinel
	}
	return words
}
