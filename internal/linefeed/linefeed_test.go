package linefeed

import "testing"

func TestLineMode(t *testing.T) {
	b := Buffer{Enabled: true}
	b.Append([]byte("F0fe0004"))
	if b.Ready(8) {
		t.Fatalf("ready before line feed")
	}
	b.Append([]byte("12345678\r\nF0"))
	if !b.Ready(100) {
		t.Fatalf("not ready after line feed")
	}
	if got := string(b.Take(100)); got != "F0fe000412345678" {
		t.Fatalf("took %q", got)
	}
	if got := b.Len(); got != 2 {
		t.Fatalf("left %d bytes, want 2", got)
	}
}

func TestLineModeOverlong(t *testing.T) {
	b := Buffer{Enabled: true}
	b.Append([]byte("0123456789\nnext"))
	if got := string(b.Take(4)); got != "0123" {
		t.Fatalf("took %q", got)
	}
	if got := string(b.Take(4)); got != "next" {
		t.Fatalf("second take %q", got)
	}
}

func TestRawMode(t *testing.T) {
	b := Buffer{}
	b.Append([]byte("abc\ndef"))
	if b.Ready(8) || !b.Ready(7) {
		t.Fatalf("unexpected readiness")
	}
	if got := string(b.Take(5)); got != "abc\nd" {
		t.Fatalf("took %q", got)
	}
	if got := string(b.Terminate([]byte("FFF0"))); got != "FFF0" {
		t.Fatalf("raw terminate %q", got)
	}
}

func TestTerminate(t *testing.T) {
	b := Buffer{Enabled: true}
	p := []byte("FFF0")
	if got := string(b.Terminate(p)); got != "FFF0\n" {
		t.Fatalf("terminate %q", got)
	}
	if string(p) != "FFF0" {
		t.Fatalf("terminate modified its input")
	}
}
