package transport

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/quantde/nolgate/internal/logger"
	"github.com/quantde/nolgate/internal/wire"
	"github.com/quantde/nolgate/pkg/errors"
)

// AsyncChannel is the long-lived push connection. A dedicated listener loop
// decodes inbound frames and hands them to a callback in strict arrival
// order. The loop stops cooperatively via context, but since a blocking read
// cannot observe cancellation, Close also shuts the socket down to unblock a
// pending read.
type AsyncChannel struct {
	addr string
	log  *logger.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewAsyncChannel creates an asynchronous channel for the given terminal
// address. Connect must be called before Listen.
func NewAsyncChannel(addr string, log *logger.Logger) *AsyncChannel {
	return &AsyncChannel{
		addr: addr,
		log:  log,
	}
}

// Connect dials the push port. Called only after login has succeeded.
func (a *AsyncChannel) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: DefaultDialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", a.addr)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeConnectFailed, err, "failed to connect to %s", a.addr)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		conn.Close()

		return errors.New(errors.ErrCodeStreamClosed, "channel already closed")
	}

	a.conn = conn
	a.log.Info("async channel connected", zap.String("addr", a.addr))

	return nil
}

// Listen blocks, decoding inbound frames and dispatching each to onFrame in
// arrival order. It returns nil on a clean end-of-stream or when the channel
// was closed locally, and a transport error otherwise.
func (a *AsyncChannel) Listen(ctx context.Context, onFrame func(payload string)) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return errors.New(errors.ErrCodeConnectFailed, "async channel not connected")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		payload, ok, err := wire.ReadFrame(conn)
		if err != nil {
			if a.isClosed() || ctx.Err() != nil {
				return nil
			}

			return err
		}

		if !ok {
			a.log.Info("async channel reached end of stream")

			return nil
		}

		onFrame(payload)
	}
}

// Close shuts the connection down, unblocking any pending read. Safe to call
// multiple times and before Connect.
func (a *AsyncChannel) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true

	if a.conn == nil {
		return nil
	}

	// Shut both directions down first so a blocked read returns immediately.
	if tcp, ok := a.conn.(*net.TCPConn); ok {
		_ = tcp.CloseRead()
	}

	return a.conn.Close()
}

func (a *AsyncChannel) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.closed
}
