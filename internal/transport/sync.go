// Package transport implements the two TCP channels to the brokerage
// terminal: a short-lived synchronous request/response channel and a
// long-lived asynchronous push channel. Both carry frames encoded by the
// wire package; neither interprets payloads.
package transport

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/quantde/nolgate/internal/logger"
	"github.com/quantde/nolgate/internal/wire"
	"github.com/quantde/nolgate/pkg/errors"
)

// DefaultDialTimeout bounds connection establishment to the local terminal.
const DefaultDialTimeout = 5 * time.Second

// SyncChannel opens a fresh connection per call, sends one request frame,
// blocks for exactly one framed response and closes the connection
// unconditionally before returning. Calls may run concurrently; each owns its
// own socket.
type SyncChannel struct {
	addr        string
	readTimeout time.Duration
	dialTimeout time.Duration
	log         *logger.Logger
}

// NewSyncChannel creates a synchronous channel for the given terminal address.
func NewSyncChannel(addr string, readTimeout time.Duration, log *logger.Logger) *SyncChannel {
	return &SyncChannel{
		addr:        addr,
		readTimeout: readTimeout,
		dialTimeout: DefaultDialTimeout,
		log:         log,
	}
}

// Call performs one request/response exchange. A connection-level failure
// (refused, reset, timeout) yields a typed transport error and an empty
// result; the caller must treat that as "no decision possible", never as an
// implicit success or failure of the underlying order action.
func (c *SyncChannel) Call(ctx context.Context, payload string) (string, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCodeConnectFailed, err, "failed to connect to %s", c.addr)
	}
	defer conn.Close()

	if c.readTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return "", errors.Wrap(errors.ErrCodeConnectFailed, "failed to set deadline", err)
		}
	}

	if err := wire.WriteFrameString(conn, payload); err != nil {
		return "", err
	}

	response, ok, err := wire.ReadFrame(conn)
	if err != nil {
		if isTimeout(err) {
			return "", errors.Wrap(errors.ErrCodeReadTimeout, "timed out waiting for response", err)
		}

		return "", err
	}

	if !ok {
		return "", errors.New(errors.ErrCodeStreamClosed, "connection closed before response")
	}

	c.log.Debug("sync call completed",
		zap.String("addr", c.addr),
		zap.Int("request_bytes", len(payload)),
		zap.Int("response_bytes", len(response)),
	)

	return response, nil
}

func isTimeout(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
