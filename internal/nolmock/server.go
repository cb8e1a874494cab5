// Package nolmock provides an in-process mock brokerage terminal for testing.
// It listens on two ephemeral TCP ports speaking the terminal's framed FIXML
// protocol: the sync port answers one request per connection, the async port
// pushes scripted frames to connected clients.
package nolmock

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/quantde/nolgate/internal/wire"
)

var (
	reqIDPattern   = regexp.MustCompile(`ReqID="(\d+)"`)
	clientIDAttr   = regexp.MustCompile(`<(?:Order|OrdCxlReq)[^>]*\sID="(\d+)"`)
	userReqIDAttr  = regexp.MustCompile(`UserReqID="(\d+)"`)
	orderQtyAttr   = regexp.MustCompile(`<OrdQty Qty="(\d+)"/>`)
	orderSideAttr  = regexp.MustCompile(`Side="(\d)"`)
	orderPriceAttr = regexp.MustCompile(`Px="([0-9.]+)"`)
)

// Server is a mock NOL terminal.
type Server struct {
	mu sync.Mutex

	syncListener  net.Listener
	asyncListener net.Listener

	// LoginStatus is the UserStat value returned to login requests.
	loginStatus string

	// syncHandler, when set, overrides the default request handling.
	syncHandler func(request string) string

	requests   []string
	asyncConns []net.Conn
	orderSeq   int

	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a stopped server. Call Start to begin listening.
func NewServer() *Server {
	return &Server{loginStatus: "1"}
}

// Start listens on two ephemeral localhost ports and begins accepting.
func (s *Server) Start() error {
	syncLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen on sync port: %w", err)
	}

	asyncLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		syncLn.Close()

		return fmt.Errorf("failed to listen on async port: %w", err)
	}

	s.syncListener = syncLn
	s.asyncListener = asyncLn

	s.wg.Add(2)
	go s.acceptSync()
	go s.acceptAsync()

	return nil
}

// SyncPort returns the sync channel port.
func (s *Server) SyncPort() int {
	return s.syncListener.Addr().(*net.TCPAddr).Port
}

// AsyncPort returns the async channel port.
func (s *Server) AsyncPort() int {
	return s.asyncListener.Addr().(*net.TCPAddr).Port
}

// SetLoginStatus sets the UserStat returned to subsequent login requests.
func (s *Server) SetLoginStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatus = status
}

// SetSyncHandler overrides request handling. The handler receives the raw
// request document and returns the raw response document.
func (s *Server) SetSyncHandler(handler func(request string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncHandler = handler
}

// Requests returns a copy of all sync requests received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.requests))
	copy(out, s.requests)

	return out
}

// RequestsMatching returns sync requests containing the given substring.
func (s *Server) RequestsMatching(substr string) []string {
	var out []string

	for _, r := range s.Requests() {
		if strings.Contains(r, substr) {
			out = append(out, r)
		}
	}

	return out
}

// PushAsync writes one frame to every connected async client. A client whose
// dial has returned may not be registered by the accept loop yet, so this
// waits briefly for at least one connection before writing.
func (s *Server) PushAsync(payload string) {
	conns := s.waitAsyncConns()

	for _, conn := range conns {
		_ = wire.WriteFrameString(conn, payload)
	}
}

// CloseAsyncClients drops all connected async clients, simulating the
// terminal going away. Like PushAsync, it waits briefly for the accept loop
// to register a client that has already dialed.
func (s *Server) CloseAsyncClients() {
	s.waitAsyncConns()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.asyncConns {
		conn.Close()
	}

	s.asyncConns = nil
}

// waitAsyncConns returns a snapshot of the async connections, polling for up
// to a second for the accept loop to register the first one.
func (s *Server) waitAsyncConns() []net.Conn {
	deadline := time.Now().Add(time.Second)

	for {
		s.mu.Lock()
		conns := make([]net.Conn, len(s.asyncConns))
		copy(conns, s.asyncConns)
		closed := s.closed
		s.mu.Unlock()

		if len(conns) > 0 || closed || time.Now().After(deadline) {
			return conns
		}

		time.Sleep(time.Millisecond)
	}
}

// Close stops the listeners and drops all connections.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return
	}

	s.closed = true
	s.mu.Unlock()

	s.syncListener.Close()
	s.asyncListener.Close()
	s.CloseAsyncClients()
	s.wg.Wait()
}

func (s *Server) acceptSync() {
	defer s.wg.Done()

	for {
		conn, err := s.syncListener.Accept()
		if err != nil {
			return
		}

		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			s.handleSyncConn(conn)
		}()
	}
}

// handleSyncConn serves exactly one request/response exchange, mirroring the
// terminal's one-shot sync connection discipline.
func (s *Server) handleSyncConn(conn net.Conn) {
	defer conn.Close()

	request, ok, err := wire.ReadFrame(conn)
	if err != nil || !ok {
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, request)
	handler := s.syncHandler
	s.mu.Unlock()

	var response string
	if handler != nil {
		response = handler(request)
	} else {
		response = s.defaultResponse(request)
	}

	if response != "" {
		_ = wire.WriteFrameString(conn, response)
	}
}

func (s *Server) defaultResponse(request string) string {
	switch {
	case strings.Contains(request, "<UserReq"):
		reqID := firstMatch(userReqIDAttr, request)

		s.mu.Lock()
		status := s.loginStatus
		s.mu.Unlock()

		return fmt.Sprintf(`<FIXML v="5.0" r="20080317" s="20080314"><UserRsp UserReqID="%s" UserStat="%s"/></FIXML>`, reqID, status)

	case strings.Contains(request, "<MktDataReq"):
		return fmt.Sprintf(`<FIXML v="5.0" r="20080317" s="20080314"><MktDataFull ReqID="%s"/></FIXML>`, firstMatch(reqIDPattern, request))

	case strings.Contains(request, "<OrdCxlReq"):
		return fmt.Sprintf(`<FIXML v="5.0" r="20080317" s="20080314"><ExecRpt ID="%s" OrdID="%s" Stat="6"><OrdQty Qty="%s"/></ExecRpt></FIXML>`,
			firstMatch(clientIDAttr, request), orderIDOf(request), firstMatch(orderQtyAttr, request))

	case strings.Contains(request, "<Order"):
		s.mu.Lock()
		s.orderSeq++
		brokerID := fmt.Sprintf("DM%06d", s.orderSeq)
		s.mu.Unlock()

		return fmt.Sprintf(`<FIXML v="5.0" r="20080317" s="20080314"><ExecRpt ID="%s" OrdID="%s" Stat="0" Side="%s" Px="%s"><Instrmt ID="PL0GF0031880" Sym="FW20Z2520" Src="4"/><OrdQty Qty="%s"/></ExecRpt></FIXML>`,
			firstMatch(clientIDAttr, request), brokerID, firstMatch(orderSideAttr, request),
			firstMatch(orderPriceAttr, request), firstMatch(orderQtyAttr, request))

	default:
		return `<FIXML v="5.0" r="20080317" s="20080314"></FIXML>`
	}
}

func orderIDOf(request string) string {
	m := regexp.MustCompile(`OrdID="([^"]*)"`).FindStringSubmatch(request)
	if len(m) < 2 {
		return ""
	}

	return m[1]
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}

	return m[1]
}

func (s *Server) acceptAsync() {
	defer s.wg.Done()

	for {
		conn, err := s.asyncListener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.asyncConns = append(s.asyncConns, conn)
		s.mu.Unlock()
	}
}
