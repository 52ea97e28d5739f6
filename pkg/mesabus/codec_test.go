package mesabus

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeLayout(t *testing.T) {
	tests := []struct {
		name    string
		dev     Device
		cmd     Command
		payload []byte
		want    string
	}{
		{
			name:    "read request",
			dev:     Device{Slot: 0x00, Subslot: 0x0},
			cmd:     Read,
			payload: AppendWords(nil, 0x0000000c, 1),
			want:    "FFF0" + "00" + "0" + "1" + "08" + "0000000c00000001",
		},
		{
			name:    "write to subslot",
			dev:     Device{Slot: 0xA5, Subslot: 0xF},
			cmd:     Write,
			payload: AppendWords(nil, 0x00010000, 0x11111111),
			want:    "FFF0" + "a5" + "f" + "0" + "08" + "0001000011111111",
		},
		{
			name:    "empty payload",
			dev:     Device{Slot: 0x01, Subslot: 0x2},
			cmd:     WriteMultiple,
			payload: nil,
			want:    "FFF0" + "01" + "2" + "4" + "00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.dev, tt.cmd, tt.payload)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("frame mismatch:\ngot:  %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		dev     Device
		cmd     Command
		payload []byte
		want    error
	}{
		{"payload too large", Device{}, Write, make([]byte, MaxPayload+1), ErrPayloadTooLarge},
		{"subslot out of range", Device{Subslot: 0x10}, Write, nil, ErrInvalidSubslot},
		{"unknown command", Device{}, Command(5), nil, ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.dev, tt.cmd, tt.payload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeMaxPayload(t *testing.T) {
	frame, err := Encode(Device{}, Write, make([]byte, MaxPayload))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if got := string(frame[8:10]); got != "ff" {
		t.Fatalf("length field %q, want ff", got)
	}
}

func TestParseFrameRoundTrip(t *testing.T) {
	devices := []Device{{0, 0}, {0x7F, 0x3}, {0xFF, 0xF}}
	commands := []Command{Write, Read, WriteRepeat, ReadRepeat, WriteMultiple}
	payloads := [][]byte{
		{},
		AppendWords(nil, 0xDEADBEEF),
		AppendWords(nil, 0x00001000, 1, 2, 3, 4),
		bytes.Repeat([]byte{0xF0}, MaxPayload),
	}

	for _, dev := range devices {
		for _, cmd := range commands {
			for _, p := range payloads {
				raw, err := Encode(dev, cmd, p)
				if err != nil {
					t.Fatalf("encode %v %v: %v", dev, cmd, err)
				}
				f, err := ParseFrame(raw)
				if err != nil {
					t.Fatalf("parse %s: %v", raw, err)
				}
				if f.Device != dev || f.Command != cmd || !bytes.Equal(f.Payload, p) {
					t.Fatalf("round trip mismatch: got %+v from %s", f, raw)
				}
			}
		}
	}
}

func TestParseFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrTruncated},
		{"only idle", "FFFFFFFF", ErrTruncated},
		{"bad start", "FFE000010800", ErrInvalidFrame},
		{"bad command", "FFF0000908", ErrInvalidFrame},
		{"short payload", "FFF000000800000000", ErrTruncated},
		{"bad payload", "FFF0000004zz000000", ErrInvalidFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	payload := AppendWords(nil, 0x12345678, 0x9abcdef0)
	raw, err := EncodeResponse(Device{Slot: 0xFE}, Read, payload)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	if !strings.HasPrefix(string(raw), "F0fe0108") {
		t.Fatalf("unexpected response header: %s", raw)
	}

	got, err := Decode(raw, 2)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(got) != "123456789abcdef0" {
		t.Fatalf("payload mismatch: %s", got)
	}

	// extra characters past the requested words are dropped
	got, err = Decode(append(raw, "\n00000000"...), 2)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(got) != "123456789abcdef0" {
		t.Fatalf("payload mismatch: %s", got)
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, raw := range []string{"", "F0", "F0FE000"} {
		if _, err := Decode([]byte(raw), 1); !errors.Is(err, ErrTruncated) {
			t.Fatalf("Decode(%q): got %v, want ErrTruncated", raw, err)
		}
	}

	got, err := Decode([]byte("F0FE0000"), 1)
	if err != nil {
		t.Fatalf("header only: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("header only: got payload %q", got)
	}
}

func TestParseWords(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		n       int
		want    []uint32
		badIdxs []int
	}{
		{
			name: "clean",
			text: "00000001FFFFFFFFdeadbeef",
			n:    3,
			want: []uint32{1, 0xFFFFFFFF, 0xDEADBEEF},
		},
		{
			name:    "corrupt middle word",
			text:    "000000011111111g00000003",
			n:       3,
			want:    []uint32{1, Sentinel, 3},
			badIdxs: []int{1},
		},
		{
			name:    "missing tail",
			text:    "0000000100000",
			n:       3,
			want:    []uint32{1, Sentinel, Sentinel},
			badIdxs: []int{1, 2},
		},
		{
			name:    "empty",
			text:    "",
			n:       2,
			want:    []uint32{Sentinel, Sentinel},
			badIdxs: []int{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bad := ParseWords([]byte(tt.text), tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("words mismatch:\ngot:  %08x\nwant: %08x", got, tt.want)
			}
			var idxs []int
			for _, e := range bad {
				idxs = append(idxs, e.Index)
			}
			if !reflect.DeepEqual(idxs, tt.badIdxs) {
				t.Fatalf("bad indexes %v, want %v", idxs, tt.badIdxs)
			}
		})
	}
}

func TestWords(t *testing.T) {
	got := Words(append(AppendWords(nil, 1, 0xCAFEF00D), 0xAA))
	if !reflect.DeepEqual(got, []uint32{1, 0xCAFEF00D}) {
		t.Fatalf("got %08x", got)
	}
}
