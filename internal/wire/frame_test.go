package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriteFrameThenReadFrame(t *testing.T) {
	tests := map[string][]byte{
		"empty":  {},
		"short":  []byte(`{"type":"Shutdown"}`),
		"binary": {0x00, 0x01, 0xff, 0x10},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, body); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}
			got, err := ReadFrame(&buf)
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if !bytes.Equal(got, body) {
				t.Fatalf("got %v, want %v", got, body)
			}
		})
	}
}

func TestFrameLayout(t *testing.T) {
	body := []byte("hello")
	var buf bytes.Buffer
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	if len(raw) != 4+len(body) {
		t.Fatalf("len(bytes) = %d, want %d", len(raw), 4+len(body))
	}
	wantLen := uint32(len(body))
	gotLen := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	if gotLen != wantLen {
		t.Fatalf("length prefix = %d, want %d", gotLen, wantLen)
	}
}

func TestReadFrameAtExactCap(t *testing.T) {
	body := make([]byte, MaxMessageSize)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatalf("WriteFrame at cap: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame at cap: %v", err)
	}
	if len(got) != MaxMessageSize {
		t.Fatalf("got %d bytes, want %d", len(got), MaxMessageSize)
	}
}

func TestWriteFrameOverCapRejected(t *testing.T) {
	body := make([]byte, MaxMessageSize+1)
	var buf bytes.Buffer
	err := WriteFrame(&buf, body)
	if !errors.Is(err, ErrOverSize) {
		t.Fatalf("err = %v, want ErrOverSize", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("WriteFrame must not write anything when over cap, wrote %d bytes", buf.Len())
	}
}

func TestReadFrameOverCapRejectedWithoutReadingBody(t *testing.T) {
	// Hand-construct a length prefix declaring more than MaxMessageSize,
	// followed by far fewer bytes than that length -- if ReadFrame tried to
	// read the body it would block/fail on EOF instead of failing fast on
	// the declared length.
	var buf bytes.Buffer
	buf.Write([]byte{0x01, 0x00, 0x10, 0x00}) // length = 0x00100001 > 1MiB
	buf.WriteString("short")
	_, err := ReadFrame(&buf)
	if !errors.Is(err, ErrOverSize) {
		t.Fatalf("err = %v, want ErrOverSize", err)
	}
}

func TestReadFrameShortLengthPrefix(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x01, 0x02})
	_, err := ReadFrame(buf)
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("err = %v, want ErrFraming", err)
	}
}

func TestReadFrameShortBody(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x05, 0x00, 0x00, 0x00}) // declares 5 bytes
	buf.WriteString("ab")                     // only 2 delivered
	_, err := ReadFrame(&buf)
	if !errors.Is(err, ErrFraming) {
		t.Fatalf("err = %v, want ErrFraming", err)
	}
}

func TestHandshakeWireBytesMatchExample(t *testing.T) {
	// End-to-end scenario 3 from the spec: a Handshake{version:1} request
	// serializes to the tagged JSON object, preceded by its LE length.
	req := NewHandshake()
	body, err := EncodeRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	got := string(body)
	if !strings.Contains(got, `"type":"Handshake"`) || !strings.Contains(got, `"version":1`) {
		t.Fatalf("unexpected handshake body: %s", got)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	if raw[0] != byte(len(body)) || raw[1] != 0 || raw[2] != 0 || raw[3] != 0 {
		t.Fatalf("length prefix mismatch for body length %d: %v", len(body), raw[:4])
	}
}
