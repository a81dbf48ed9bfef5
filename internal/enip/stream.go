package enip

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/tturner/etherip/internal/errors"
)

// ReadFrame reads exactly one encapsulation frame from r: the 24-byte
// header, then exactly Length payload bytes. It returns the decoded frame
// and its raw bytes.
//
// A stream that ends before any byte is read returns io.EOF unchanged. A
// stream that ends inside a frame returns a *FramingError. Other read errors
// are returned wrapped so callers can classify timeouts.
func ReadFrame(r io.Reader) (ENIPEncapsulation, []byte, error) {
	frame, err := ReadRawFrame(r)
	if err != nil {
		return ENIPEncapsulation{}, nil, err
	}
	encap, err := DecodeENIP(frame)
	if err != nil {
		return ENIPEncapsulation{}, nil, err
	}
	return encap, frame, nil
}

// ReadRawFrame reads one length-delimited frame without checking the
// command code. Servers use it so they can answer unknown commands.
func ReadRawFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil {
		switch {
		case n == 0 && stderrors.Is(err, io.EOF):
			return nil, io.EOF
		case stderrors.Is(err, io.ErrUnexpectedEOF):
			return nil, &errors.FramingError{
				Reason: fmt.Sprintf("stream ended after %d of %d header bytes", n, HeaderSize),
			}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	encap, err := DecodeHeader(header)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, HeaderSize+int(encap.Length))
	copy(frame, header)
	if encap.Length > 0 {
		n, err = io.ReadFull(r, frame[HeaderSize:])
		if err != nil {
			if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
				return nil, &errors.FramingError{
					Reason: fmt.Sprintf("declared length %d, stream ended after %d payload bytes", encap.Length, n),
				}
			}
			return nil, fmt.Errorf("read payload: %w", err)
		}
	}
	return frame, nil
}
