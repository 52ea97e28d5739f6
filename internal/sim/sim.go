// Package sim emulates a local-bus target behind a MesaBus transport. It is
// used by tests and by mesactl's "sim" transport.
package sim

import (
	"bytes"
	"log/slog"
	"sync"

	"github.com/seagrayinc/mesabus/pkg/mesabus"
)

// maxResponseWords is the most words one response frame can carry.
const maxResponseWords = mesabus.MaxPayload / 4

// Target is an in-memory device that implements mesabus.Transport. Frames
// addressed to other devices are ignored, as on a real chain.
type Target struct {
	mu  sync.Mutex
	dev mesabus.Device

	mem    map[uint32]uint32
	fifos  map[uint32][]uint32
	frames []mesabus.Frame
	out    []byte

	corrupt  map[uint32]bool
	truncate int
}

func New(dev mesabus.Device) *Target {
	return &Target{
		dev:     dev,
		mem:     make(map[uint32]uint32),
		fifos:   make(map[uint32][]uint32),
		corrupt: make(map[uint32]bool),
	}
}

// Write consumes one request frame.
func (t *Target) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if isIdle(p) {
		return nil
	}

	f, err := mesabus.ParseFrame(p)
	if err != nil {
		slog.Warn("sim: dropping frame", slog.String("frame", string(p)), slog.Any("error", err))
		return nil
	}
	if f.Device != t.dev {
		return nil
	}
	t.frames = append(t.frames, f)

	words := mesabus.Words(f.Payload)
	switch f.Command {
	case mesabus.Write, mesabus.WriteRepeat:
		if len(words) == 0 {
			return nil
		}
		addr := words[0]
		for _, w := range words[1:] {
			t.mem[addr] = w
			if f.Command == mesabus.WriteRepeat {
				t.fifos[addr] = append(t.fifos[addr], w)
				continue
			}
			addr += 4
		}
	case mesabus.WriteMultiple:
		for i := 0; i+1 < len(words); i += 2 {
			t.mem[words[i]] = words[i+1]
		}
	case mesabus.Read, mesabus.ReadRepeat:
		if len(words) < 2 {
			return nil
		}
		if words[1] > maxResponseWords {
			slog.Warn("sim: dropping frame", slog.String("frame", string(p)), slog.Uint64("words", uint64(words[1])))
			return nil
		}
		return t.respond(f.Command, words[0], int(words[1]))
	}
	return nil
}

func (t *Target) respond(cmd mesabus.Command, addr uint32, n int) error {
	payload := make([]byte, 0, 4*n)
	var bad []int
	for i := 0; i < n; i++ {
		a := addr
		if cmd == mesabus.Read {
			a = addr + uint32(4*i)
		}
		payload = mesabus.AppendWords(payload, t.mem[a])
		if t.corrupt[a] {
			bad = append(bad, i)
		}
	}

	resp, err := mesabus.EncodeResponse(t.dev, cmd, payload)
	if err != nil {
		return err
	}
	for _, i := range bad {
		resp[mesabus.HeaderLen+(i+1)*mesabus.WordChars-1] = 'g'
	}

	if t.truncate > 0 {
		resp = resp[:max(0, len(resp)-t.truncate)]
		t.truncate = 0
	}
	t.out = append(t.out, resp...)
	return nil
}

// Read returns up to n pending response bytes. Fewer bytes are returned when
// less is pending, as a transport would on timeout.
func (t *Target) Read(n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n = min(n, len(t.out))
	out := bytes.Clone(t.out[:n])
	t.out = t.out[n:]
	return out, nil
}

// Peek returns the word stored at addr.
func (t *Target) Peek(addr uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mem[addr]
}

// Poke stores word at addr.
func (t *Target) Poke(addr, word uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mem[addr] = word
}

// FIFO returns every word written to addr in repeat mode.
func (t *Target) FIFO(addr uint32) []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uint32(nil), t.fifos[addr]...)
}

// Frames returns the frames addressed to this target, in arrival order.
func (t *Target) Frames() []mesabus.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]mesabus.Frame(nil), t.frames...)
}

// CorruptAt makes every response word read from addr invalid hex.
func (t *Target) CorruptAt(addr uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.corrupt[addr] = true
}

// TruncateNext drops the last n characters of the next response.
func (t *Target) TruncateNext(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.truncate = n
}

func isIdle(p []byte) bool {
	return len(bytes.Trim(p, "Ff\r\n")) == 0
}
