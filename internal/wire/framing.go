// Package wire implements the length-prefixed framing used by the local
// brokerage terminal: a 4-byte little-endian payload length followed by a
// UTF-8 payload. It carries no protocol knowledge beyond the frame format.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/quantde/nolgate/pkg/errors"
)

// MaxFrameSize guards against a corrupt length field. The terminal never
// sends documents anywhere near this size.
const MaxFrameSize = 16 << 20

// WriteFrame writes a 4-byte little-endian length header followed by the
// payload. A short write surfaces as a write error.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte

	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write frame header", err)
	}

	if len(payload) == 0 {
		return nil
	}

	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write frame payload", err)
	}

	return nil
}

// WriteFrameString writes a UTF-8 text payload as a single frame.
func WriteFrameString(w io.Writer, payload string) error {
	return WriteFrame(w, []byte(payload))
}

// ReadFrame reads exactly one frame from r and returns its payload verbatim:
// a written frame reads back byte for byte, padding included. Terminal
// padding is a document concern, handled where documents are parsed.
//
// The second return value is false on a clean end-of-stream: fewer than 4
// header bytes available. A decoded length of 0 yields an empty string with
// ok=true; an empty frame is a valid message, not end-of-stream. The stream
// closing mid-payload is an error, since the counterparty promised more bytes.
func ReadFrame(r io.Reader) (payload string, ok bool, err error) {
	var header [4]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		// io.ErrUnexpectedEOF means a partial header: the peer went away
		// between frames, which is still an orderly end-of-stream here.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return "", false, nil
		}

		return "", false, errors.Wrap(errors.ErrCodeReadFailed, "failed to read frame header", err)
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 {
		return "", true, nil
	}

	if length > MaxFrameSize {
		return "", false, errors.Newf(errors.ErrCodeReadFailed, "frame length %d exceeds limit", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", false, errors.Wrap(errors.ErrCodeStreamClosed, "stream closed mid-frame", err)
	}

	return string(body), true, nil
}
