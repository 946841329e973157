// Package bridge implements the framed JSON-RPC protocol spoken between the
// supervising host process and a sandboxed child interpreter over a pair of
// pipes. Each frame is a UTF-8 JSON object prefixed by a 4-byte big-endian
// length. The child issues requests; the host replies. A single channel
// never interleaves: the child blocks awaiting its response before
// continuing user code execution.
package bridge

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Stable wire error codes (spec.md §4.2).
const (
	ErrInvalidMethod  = "invalid_method"
	ErrInvalidParams  = "invalid_params"
	ErrHostError      = "host_error"
	ErrBudgetExceeded = "budget_exceeded"
)

// Request is a call from the child to the host.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ErrorObject is the structured error carried by a Response.
type ErrorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorObject) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Response answers a Request by ID, carrying either Result or Error.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

// MaxFrameBytes bounds a single frame to defend the reader against a
// corrupt or adversarial length prefix.
const MaxFrameBytes = 64 << 20 // 64 MiB

// FrameFault signals a malformed frame on the wire (bad length prefix,
// truncated payload, or invalid JSON).
type FrameFault struct {
	Reason string
}

func (e *FrameFault) Error() string { return "bridge: malformed frame: " + e.Reason }

// WriteFrame writes a single length-prefixed JSON frame to w.
func WriteFrame(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("bridge: marshal frame: %w", err)
	}
	if len(payload) > MaxFrameBytes {
		return &FrameFault{Reason: "frame exceeds maximum size"}
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("bridge: write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("bridge: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads a single length-prefixed JSON frame from r and unmarshals
// it into v.
func ReadFrame(r io.Reader, v interface{}) error {
	payload, err := ReadFramePayload(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &FrameFault{Reason: "invalid json: " + err.Error()}
	}
	return nil
}

// ReadFramePayload reads and returns the raw payload bytes of a single frame.
func ReadFramePayload(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameFault{Reason: "truncated length prefix: " + err.Error()}
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameBytes {
		return nil, &FrameFault{Reason: "declared frame length exceeds maximum"}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FrameFault{Reason: "truncated payload: " + err.Error()}
	}
	return payload, nil
}

// WriteRequest and WriteResponse are thin, typed convenience wrappers used
// by the two sides of the bridge so call sites read naturally.

func WriteRequest(w io.Writer, req Request) error { return WriteFrame(w, req) }

func WriteResponse(w io.Writer, resp Response) error { return WriteFrame(w, resp) }

func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	err := ReadFrame(r, &req)
	return req, err
}

func ReadResponse(r io.Reader) (Response, error) {
	var resp Response
	err := ReadFrame(r, &resp)
	return resp, err
}

// NewResultResponse builds a successful Response for id carrying result,
// marshaling it to JSON.
func NewResultResponse(id uint64, result interface{}) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("bridge: marshal result: %w", err)
	}
	return Response{ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error Response for id.
func NewErrorResponse(id uint64, code, message string) Response {
	return Response{ID: id, Error: &ErrorObject{Code: code, Message: message}}
}
