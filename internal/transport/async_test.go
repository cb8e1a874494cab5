package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantde/nolgate/internal/logger"
	"github.com/quantde/nolgate/internal/nolmock"
)

func startAsync(t *testing.T) (*nolmock.Server, *AsyncChannel) {
	t.Helper()

	server := nolmock.NewServer()
	require.NoError(t, server.Start())
	t.Cleanup(server.Close)

	channel := NewAsyncChannel(fmt.Sprintf("127.0.0.1:%d", server.AsyncPort()), logger.NewNopLogger())
	require.NoError(t, channel.Connect(context.Background()))

	return server, channel
}

func waitForFrames(t *testing.T, frames chan string, n int) []string {
	t.Helper()

	out := make([]string, 0, n)

	for len(out) < n {
		select {
		case f := <-frames:
			out = append(out, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d of %d", len(out)+1, n)
		}
	}

	return out
}

func TestAsyncListenDispatchesFramesInArrivalOrder(t *testing.T) {
	server, channel := startAsync(t)

	frames := make(chan string, 16)
	done := make(chan error, 1)

	go func() {
		done <- channel.Listen(context.Background(), func(payload string) { frames <- payload })
	}()

	// Give the server a beat to register the connection.
	time.Sleep(50 * time.Millisecond)

	server.PushAsync(`<FIXML><ExecRpt ID="1" Stat="0"/></FIXML>`)
	server.PushAsync(`<FIXML><ExecRpt ID="2" Stat="2"/></FIXML>`)
	server.PushAsync(`<FIXML><Heartbeat/></FIXML>`)

	got := waitForFrames(t, frames, 3)
	assert.Contains(t, got[0], `ID="1"`)
	assert.Contains(t, got[1], `ID="2"`)
	assert.Contains(t, got[2], "Heartbeat")

	// Server dropping the connection ends the loop cleanly.
	server.CloseAsyncClients()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not exit after server dropped the connection")
	}
}

func TestAsyncCloseUnblocksPendingRead(t *testing.T) {
	_, channel := startAsync(t)

	done := make(chan error, 1)

	go func() {
		done <- channel.Listen(context.Background(), func(string) {})
	}()

	// Listener is now blocked in a read with nothing inbound.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, channel.Close())

	select {
	case err := <-done:
		assert.NoError(t, err, "a locally closed channel is a clean shutdown, not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("close did not unblock the pending read")
	}
}

func TestAsyncListenWithoutConnect(t *testing.T) {
	channel := NewAsyncChannel("127.0.0.1:1", logger.NewNopLogger())

	err := channel.Listen(context.Background(), func(string) {})
	assert.Error(t, err)
}
