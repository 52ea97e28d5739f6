package localbus

import (
	"context"

	"github.com/seagrayinc/mesabus/pkg/mesabus"
)

// Write bursts words to consecutive addresses starting at addr. Bursts longer
// than MaxWriteWords are split, each frame carrying its own start address.
func (l *Link) Write(ctx context.Context, addr uint32, words []uint32) error {
	return l.write(ctx, mesabus.Write, addr, words)
}

// WriteRepeat writes every word to addr, as for a FIFO.
func (l *Link) WriteRepeat(ctx context.Context, addr uint32, words []uint32) error {
	return l.write(ctx, mesabus.WriteRepeat, addr, words)
}

func (l *Link) write(ctx context.Context, cmd mesabus.Command, addr uint32, words []uint32) error {
	for len(words) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := min(len(words), MaxWriteWords)
		chunk := words[:n]
		words = words[n:]

		payload := make([]byte, 0, wordBytes*(1+n))
		payload = mesabus.AppendWords(payload, addr)
		payload = mesabus.AppendWords(payload, chunk...)
		if err := l.send(cmd, payload); err != nil {
			return err
		}

		if cmd == mesabus.Write {
			addr += uint32(wordBytes * n)
		}
	}
	return nil
}

// WritePacket writes each pair in order. Pairs carry their own address, so
// no address arithmetic is done between frames.
func (l *Link) WritePacket(ctx context.Context, pairs []AddrData) error {
	for len(pairs) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := min(len(pairs), MaxPacketPairs)
		chunk := pairs[:n]
		pairs = pairs[n:]

		payload := make([]byte, 0, 2*wordBytes*n)
		for _, p := range chunk {
			payload = mesabus.AppendWords(payload, p.Addr, p.Data)
		}
		if err := l.send(mesabus.WriteMultiple, payload); err != nil {
			return err
		}
	}
	return nil
}
