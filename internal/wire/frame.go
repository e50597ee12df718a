package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxMessageSize is the hard cap on a single frame's body, per invariant
// I4. A declared length exceeding this is rejected before the body is
// read.
const MaxMessageSize = 1 << 20 // 1 MiB

const lengthPrefixSize = 4

// WriteFrame writes body preceded by its little-endian u32 length. The
// length prefix and body are written as one logical write; a short write
// of either is reported via the underlying io error, not ErrFraming
// (ErrFraming is a read-side concept per spec: ill-formed input, not a
// failed write).
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxMessageSize {
		return fmt.Errorf("%w: body is %d bytes, max %d", ErrOverSize, len(body), MaxMessageSize)
	}
	var header [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: write body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. A short read on the
// length prefix, or on the body, is ErrFraming. A declared length over
// MaxMessageSize is ErrOverSize and the body is never read.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: short read on length prefix: %v", ErrFraming, err)
		}
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxMessageSize {
		return nil, fmt.Errorf("%w: declared length %d exceeds max %d", ErrOverSize, length, MaxMessageSize)
	}
	if length == 0 {
		return []byte{}, nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: short read on body: %v", ErrFraming, err)
		}
		return nil, err
	}
	return body, nil
}

// WriteRequest encodes and frames a Request in one step.
func WriteRequest(w io.Writer, req Request) error {
	body, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	return WriteFrame(w, body)
}

// WriteResponse encodes and frames a Response in one step.
func WriteResponse(w io.Writer, resp Response) error {
	body, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return WriteFrame(w, body)
}

// ReadRequest reads and decodes one framed Request.
func ReadRequest(r io.Reader) (Request, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return Request{}, err
	}
	return DecodeRequest(body)
}

// ReadResponse reads and decodes one framed Response.
func ReadResponse(r io.Reader) (Response, error) {
	body, err := ReadFrame(r)
	if err != nil {
		return Response{}, err
	}
	return DecodeResponse(body)
}
