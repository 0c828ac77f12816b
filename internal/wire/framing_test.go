package wire

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		{Name: "ping", Args: map[string]string{}},
		{Name: "play", Args: map[string]string{"file_path": "/tmp/a.wav", "concurrent": "true"}},
		{Name: "seek", Args: map[string]string{"position": "12.5", "id": "3"}},
	}

	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteRequest(&buf, want); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
		got, err := ReadRequest(&buf)
		if err != nil {
			t.Fatalf("ReadRequest: %v", err)
		}
		if got.Name != want.Name || len(got.Args) != len(want.Args) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
		for k, v := range want.Args {
			if got.Args[k] != v {
				t.Errorf("arg %q: got %q, want %q", k, got.Args[k], v)
			}
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	want := Response{Status: true, Message: "pong"}
	var buf bytes.Buffer
	if err := WriteResponse(&buf, want); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	got, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	// Announce a body far larger than MaxFrameBytes; ReadFrame must reject
	// it before attempting to allocate or read the body.
	for i := range lenBuf {
		lenBuf[i] = 0xff
	}
	buf.Write(lenBuf)

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error for oversized frame length")
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte(`{"name":"ping"}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:6])
	if _, err := ReadFrame(truncated); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}
