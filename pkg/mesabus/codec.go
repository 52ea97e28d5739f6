package mesabus

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Encode builds the request text for one frame:
//
//	FFF0 <slot:2> <subslot:1> <command:1> <length:2> <payload:2*length>
//
// payload is binary; it is sent as lower-case hex and length counts its bytes.
func Encode(dev Device, cmd Command, payload []byte) ([]byte, error) {
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	if !cmd.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCommand, cmd)
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	frame := make([]byte, 0, len(Preamble)+6+2*len(payload))
	frame = append(frame, Preamble...)
	frame = appendHeader(frame, dev, cmd, len(payload))
	frame = hex.AppendEncode(frame, payload)
	return frame, nil
}

// EncodeResponse builds the text a device answers with: the same header as a
// request without the idle byte, followed by the payload.
func EncodeResponse(dev Device, cmd Command, payload []byte) ([]byte, error) {
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	frame := make([]byte, 0, HeaderLen+2*len(payload))
	frame = append(frame, ResponseStart...)
	frame = appendHeader(frame, dev, cmd, len(payload))
	frame = hex.AppendEncode(frame, payload)
	return frame, nil
}

func appendHeader(b []byte, dev Device, cmd Command, n int) []byte {
	return fmt.Appendf(b, "%02x%01x%01x%02x", dev.Slot, dev.Subslot, uint8(cmd), n)
}

// Decode strips the response header from raw and returns the payload text.
// At most words*WordChars characters are kept.
func Decode(raw []byte, words int) ([]byte, error) {
	if len(raw) < HeaderLen {
		return nil, fmt.Errorf("%w: %d of %d header bytes", ErrTruncated, len(raw), HeaderLen)
	}

	payload := raw[HeaderLen:]
	if limit := words * WordChars; words >= 0 && len(payload) > limit {
		payload = payload[:limit]
	}
	return bytes.Clone(payload), nil
}

// ParseFrame decodes request text produced by Encode. Leading idle FF bytes
// are skipped.
func ParseFrame(raw []byte) (Frame, error) {
	raw = bytes.TrimRight(raw, "\r\n")
	for len(raw) >= 2 && bytes.EqualFold(raw[:2], []byte("FF")) {
		raw = raw[2:]
	}
	if len(raw) < HeaderLen {
		return Frame{}, fmt.Errorf("%w: %d of %d header bytes", ErrTruncated, len(raw), HeaderLen)
	}
	if !bytes.EqualFold(raw[:2], []byte(ResponseStart)) {
		return Frame{}, fmt.Errorf("%w: start %q", ErrInvalidFrame, raw[:2])
	}

	slot, err := strconv.ParseUint(string(raw[2:4]), 16, 8)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: slot %q", ErrInvalidFrame, raw[2:4])
	}
	subslot, err := strconv.ParseUint(string(raw[4:5]), 16, 8)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: subslot %q", ErrInvalidFrame, raw[4:5])
	}
	cmd, err := strconv.ParseUint(string(raw[5:6]), 16, 8)
	if err != nil || !Command(cmd).valid() {
		return Frame{}, fmt.Errorf("%w: command %q", ErrInvalidFrame, raw[5:6])
	}
	n, err := strconv.ParseUint(string(raw[6:8]), 16, 8)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: length %q", ErrInvalidFrame, raw[6:8])
	}

	body := raw[HeaderLen:]
	if len(body) < 2*int(n) {
		return Frame{}, fmt.Errorf("%w: %d of %d payload characters", ErrTruncated, len(body), 2*n)
	}
	payload, err := hex.DecodeString(string(body[:2*n]))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: payload: %v", ErrInvalidFrame, err)
	}

	return Frame{
		Device:  Device{Slot: uint8(slot), Subslot: uint8(subslot)},
		Command: Command(cmd),
		Payload: payload,
	}, nil
}

// AppendWords appends each word to b as four big-endian bytes.
func AppendWords(b []byte, words ...uint32) []byte {
	for _, w := range words {
		b = binary.BigEndian.AppendUint32(b, w)
	}
	return b
}

// Words splits a binary payload into big-endian words. A trailing partial
// word is ignored.
func Words(payload []byte) []uint32 {
	words := make([]uint32, 0, len(payload)/4)
	for len(payload) >= 4 {
		words = append(words, binary.BigEndian.Uint32(payload))
		payload = payload[4:]
	}
	return words
}

// ParseWords decodes n words from payload text. Units that are not valid hex,
// and units missing from a short response, become Sentinel; each one is
// reported in the returned WordErrors. The result always has length n.
func ParseWords(text []byte, n int) ([]uint32, []WordError) {
	words := make([]uint32, n)
	var bad []WordError
	var unit [4]byte

	for i := range words {
		lo := i * WordChars
		if lo+WordChars > len(text) {
			words[i] = Sentinel
			var partial string
			if lo < len(text) {
				partial = string(text[lo:])
			}
			bad = append(bad, WordError{Index: i, Text: partial})
			continue
		}

		s := text[lo : lo+WordChars]
		if _, err := hex.Decode(unit[:], s); err != nil {
			words[i] = Sentinel
			bad = append(bad, WordError{Index: i, Text: string(s)})
			continue
		}
		words[i] = binary.BigEndian.Uint32(unit[:])
	}

	return words, bad
}
