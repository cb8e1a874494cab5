package transport

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantde/nolgate/internal/logger"
	"github.com/quantde/nolgate/internal/nolmock"
	"github.com/quantde/nolgate/pkg/errors"
)

func TestSyncCallRoundTrip(t *testing.T) {
	server := nolmock.NewServer()
	require.NoError(t, server.Start())
	defer server.Close()

	channel := NewSyncChannel(fmt.Sprintf("127.0.0.1:%d", server.SyncPort()), 2*time.Second, logger.NewNopLogger())

	response, err := channel.Call(context.Background(),
		`<FIXML v="5.0" r="20080317" s="20080314"><UserReq UserReqID="2" UserReqTyp="1" Username="u" Password="p"/></FIXML>`)
	require.NoError(t, err)
	assert.Contains(t, response, `UserStat="1"`)

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0], "<UserReq")
}

func TestSyncCallConnectionRefused(t *testing.T) {
	// Grab a port nothing is listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	channel := NewSyncChannel(addr, time.Second, logger.NewNopLogger())

	_, err = channel.Call(context.Background(), "<FIXML></FIXML>")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectFailed))
	assert.True(t, errors.IsTransport(err))
}

func TestSyncCallReadTimeout(t *testing.T) {
	server := nolmock.NewServer()
	require.NoError(t, server.Start())
	defer server.Close()

	// A handler that never answers.
	server.SetSyncHandler(func(string) string {
		time.Sleep(500 * time.Millisecond)

		return ""
	})

	channel := NewSyncChannel(fmt.Sprintf("127.0.0.1:%d", server.SyncPort()), 100*time.Millisecond, logger.NewNopLogger())

	start := time.Now()
	_, err := channel.Call(context.Background(), "<FIXML></FIXML>")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err), "timeout must surface as a transport error: %v", err)
	assert.Less(t, time.Since(start), 2*time.Second, "expiry is reported as a failure, not a hang")
}

func TestSyncCallServerClosesWithoutResponse(t *testing.T) {
	server := nolmock.NewServer()
	require.NoError(t, server.Start())
	defer server.Close()

	server.SetSyncHandler(func(string) string { return "" })

	channel := NewSyncChannel(fmt.Sprintf("127.0.0.1:%d", server.SyncPort()), time.Second, logger.NewNopLogger())

	_, err := channel.Call(context.Background(), "<FIXML></FIXML>")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStreamClosed))
}
