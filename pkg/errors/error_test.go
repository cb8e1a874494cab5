package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeNoMarketData, "no bid price available")

	assert.Equal(t, ErrCodeNoMarketData, err.Code)
	assert.Equal(t, "no bid price available", err.Message)
	assert.Nil(t, err.Cause)
	assert.Equal(t, "[501] no bid price available", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeConnectFailed, "dial %s failed", "127.0.0.1:24444")

	assert.Equal(t, ErrCodeConnectFailed, err.Code)
	assert.Equal(t, "dial 127.0.0.1:24444 failed", err.Message)
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection reset by peer")
	err := Wrap(ErrCodeReadFailed, "failed to read frame", cause)

	assert.Equal(t, ErrCodeReadFailed, err.Code)
	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestGetCode(t *testing.T) {
	err := New(ErrCodeProtocolParse, "bad xml")
	assert.Equal(t, ErrCodeProtocolParse, GetCode(err))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, ErrCodeProtocolParse, GetCode(wrapped))

	plain := fmt.Errorf("plain error")
	assert.Equal(t, ErrCodeUnknown, GetCode(plain))
}

func TestHasCode(t *testing.T) {
	err := New(ErrCodeReadTimeout, "read deadline exceeded")

	assert.True(t, HasCode(err, ErrCodeReadTimeout))
	assert.False(t, HasCode(err, ErrCodeConnectFailed))
}

func TestIsTransport(t *testing.T) {
	assert.True(t, IsTransport(New(ErrCodeConnectFailed, "refused")))
	assert.True(t, IsTransport(New(ErrCodeReadTimeout, "timeout")))
	assert.True(t, IsTransport(New(ErrCodeStreamClosed, "closed")))
	assert.False(t, IsTransport(New(ErrCodeProtocolParse, "bad xml")))
	assert.False(t, IsTransport(New(ErrCodeNoMarketData, "no quote")))
}
