package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantde/nolgate/pkg/errors"
)

// chunkReader delivers the underlying bytes in fixed-size chunks to exercise
// partial reads across arbitrary boundaries.
type chunkReader struct {
	data  []byte
	pos   int
	chunk int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}

	n := c.chunk
	if n > len(p) {
		n = len(p)
	}

	if c.pos+n > len(c.data) {
		n = len(c.data) - c.pos
	}

	copy(p, c.data[c.pos:c.pos+n])
	c.pos += n

	return n, nil
}

func TestWriteReadRoundTrip(t *testing.T) {
	payloads := []string{
		"x",
		`<FIXML v="5.0" r="20080317" s="20080314"><UserReq UserReqID="2"/></FIXML>`,
		strings.Repeat("a", 1000000),
	}

	for _, payload := range payloads {
		var buf bytes.Buffer

		require.NoError(t, WriteFrameString(&buf, payload))

		got, ok, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, payload, got)
	}
}

func TestReadFrameChunkedBoundaries(t *testing.T) {
	payload := `<FIXML v="5.0" r="20080317" s="20080314"><Heartbeat/></FIXML>`

	var buf bytes.Buffer
	require.NoError(t, WriteFrameString(&buf, payload))

	for _, chunk := range []int{1, 2, 3, 5, 7, 64} {
		got, ok, err := ReadFrame(&chunkReader{data: buf.Bytes(), chunk: chunk})
		require.NoError(t, err, "chunk size %d", chunk)
		assert.True(t, ok)
		assert.Equal(t, payload, got)
	}
}

func TestReadFrameZeroLengthIsEmptyMessageNotEOF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))

	got, ok, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.True(t, ok, "zero-length frame is a valid empty message")
	assert.Equal(t, "", got)
}

func TestReadFrameEndOfStream(t *testing.T) {
	// No bytes at all.
	_, ok, err := ReadFrame(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.False(t, ok)

	// Fewer than 4 header bytes.
	_, ok, err = ReadFrame(bytes.NewReader([]byte{0x05, 0x00}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadFrameStreamClosedMidPayload(t *testing.T) {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], 100)

	data := append(header[:], []byte("only a few bytes")...)

	_, _, err := ReadFrame(bytes.NewReader(data))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStreamClosed))
}

func TestReadFramePreservesPaddingBytes(t *testing.T) {
	// Terminal padding is not the framing codec's business; the payload must
	// come back byte for byte.
	payload := "  <FIXML></FIXML>\x00\x00"

	var buf bytes.Buffer
	require.NoError(t, WriteFrameString(&buf, payload))

	got, ok, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], MaxFrameSize+1)

	_, _, err := ReadFrame(bytes.NewReader(header[:]))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeReadFailed))
}
