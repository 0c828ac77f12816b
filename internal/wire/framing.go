package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameBytes bounds the length prefix accepted by ReadFrame. A client
// that announces a longer frame is misbehaving or talking to the wrong
// socket; refusing it up front avoids an unbounded allocation.
const MaxFrameBytes = 1 << 20 // 1 MiB, per the wire protocol's process policy

// WriteFrame writes a u32 little-endian length prefix followed by body to w.
// Framing is a single Write call per direction so a partial write can only
// ever happen at the OS layer, never split across two unrelated frames.
func WriteFrame(w io.Writer, body []byte) error {
	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(body)))
	copy(frame[4:], body)
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame from r. It returns the raw body
// bytes; callers decode them according to the message they expect.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds %d byte limit", n, MaxFrameBytes)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteRequest frames and writes a Request.
func WriteRequest(w io.Writer, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("wire: marshal request: %w", err)
	}
	return WriteFrame(w, body)
}

// ReadRequest reads and decodes one framed Request.
func ReadRequest(r io.Reader) (Request, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return Request{}, err
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, fmt.Errorf("wire: decode request: %w", err)
	}
	if req.Args == nil {
		req.Args = map[string]string{}
	}
	return req, nil
}

// WriteResponse frames and writes a Response.
func WriteResponse(w io.Writer, resp Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("wire: marshal response: %w", err)
	}
	return WriteFrame(w, body)
}

// ReadResponse reads and decodes one framed Response.
func ReadResponse(r io.Reader) (Response, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, fmt.Errorf("wire: decode response: %w", err)
	}
	return resp, nil
}
