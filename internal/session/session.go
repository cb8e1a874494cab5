// Package session owns one connection to the brokerage terminal: it logs in
// over the synchronous channel, runs the asynchronous listener, keeps the
// market and portfolio snapshots current and drives the position manager.
// Everything the presentation layer sees flows through the outbound event
// queue.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantde/nolgate/internal/bot"
	"github.com/quantde/nolgate/internal/config"
	"github.com/quantde/nolgate/internal/fixml"
	"github.com/quantde/nolgate/internal/logger"
	"github.com/quantde/nolgate/internal/transport"
	"github.com/quantde/nolgate/internal/types"
	"github.com/quantde/nolgate/pkg/errors"
)

// Session is the client's single stateful connection to the terminal.
type Session struct {
	cfg   config.Config
	log   *logger.Logger
	runID string

	syncCh  *transport.SyncChannel
	asyncCh *transport.AsyncChannel
	manager *bot.Manager

	events  chan types.Event
	dropped int

	mu        sync.Mutex
	requestID int64
	market    map[string]types.Quote
	portfolio types.PortfolioSnapshot
	existing  optional.Option[types.PositionDetails]
	loggedIn  bool

	listenerCancel context.CancelFunc
	listenerDone   chan struct{}

	disconnectOnce sync.Once
}

// NewSession wires a session from configuration. Nothing is dialed until
// Login is called.
func NewSession(cfg config.Config, log *logger.Logger) *Session {
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	s := &Session{
		cfg:     cfg,
		log:     log,
		runID:   runID,
		syncCh:  transport.NewSyncChannel(cfg.SyncAddr(), cfg.SyncReadTimeout.Std(), log),
		asyncCh: transport.NewAsyncChannel(cfg.AsyncAddr(), log),
		events:  make(chan types.Event, cfg.EventQueueSize),
		// The counter starts at 1 and is incremented before each use, so the
		// first id actually sent is 2.
		requestID: 1,
		market:    make(map[string]types.Quote),
		existing:  optional.None[types.PositionDetails](),
	}

	hooks := &sessionHooks{s: s}
	s.manager = bot.NewManager(bot.Config{
		ISIN:               cfg.InstrumentISIN,
		EvaluationInterval: cfg.EvaluationInterval.Std(),
		CancelSettleDelay:  cfg.CancelSettleDelay.Std(),
	}, hooks, hooks, hooks, log)

	return s
}

// RunID identifies this session instance in logs and diagnostics.
func (s *Session) RunID() string { return s.runID }

// Events returns the outbound event queue. The session never blocks sending
// to it; slow consumers lose events rather than stalling the core.
func (s *Session) Events() <-chan types.Event { return s.events }

// Manager exposes the position manager for state queries.
func (s *Session) Manager() *bot.Manager { return s.manager }

// Login authenticates over the synchronous channel. On success it opens the
// asynchronous channel and starts the listener; on failure the asynchronous
// channel is never dialed and the manager stays stopped.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if err := s.cfg.Validate(); err != nil {
		s.emit(types.Event{Type: types.EventLoginFail, Data: err.Error()})

		return err
	}

	doc := fixml.BuildLogin(s.nextRequestID(), username, password)

	response, err := s.syncCh.Call(ctx, doc)
	if err != nil {
		s.emit(types.Event{Type: types.EventLoginFail, Data: err.Error()})

		return err
	}

	result, err := fixml.ParseLoginResult(response)
	if err != nil {
		s.emit(types.Event{Type: types.EventLoginFail, Data: err.Error()})

		return err
	}

	if !result.Success {
		s.log.Warn("login rejected", zap.String("status", result.Status))
		s.emit(types.Event{Type: types.EventLoginFail, Data: result.Status})

		return errors.Newf(errors.ErrCodeLoginRejected, "login rejected with status %s", result.Status)
	}

	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()

	s.log.Info("login accepted")
	s.emit(types.Event{Type: types.EventLoginSuccess, Data: result.Status})
	s.manager.OnLoginSuccess()

	if err := s.asyncCh.Connect(ctx); err != nil {
		s.emit(types.Event{Type: types.EventLog, Data: "async channel connect failed: " + err.Error()})

		return err
	}

	listenerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.listenerCancel = cancel
	s.listenerDone = done
	s.mu.Unlock()

	go s.runListener(listenerCtx, done)

	return nil
}

// Disconnect stops the trailing loop, tears the listener down and closes the
// asynchronous channel. In-flight synchronous calls are left to finish on
// their own. Safe to call multiple times.
func (s *Session) Disconnect() {
	s.manager.Shutdown()

	s.mu.Lock()
	cancel := s.listenerCancel
	done := s.listenerDone
	s.loggedIn = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	_ = s.asyncCh.Close()

	if done != nil {
		<-done
	}

	s.emitDisconnected()
}

// Subscribe requests market data streaming for the given instrument.
func (s *Session) Subscribe(ctx context.Context, isin string) error {
	doc := fixml.BuildSubscribe(s.nextRequestID(), isin)

	response, err := s.syncCh.Call(ctx, doc)
	if err != nil {
		return err
	}

	if fixml.DetectKind(response) != fixml.KindMarketFull {
		s.log.Warn("unexpected subscribe response", zap.String("response", response))

		return errors.New(errors.ErrCodeUnexpectedResponse, "subscribe was not answered with a market data snapshot")
	}

	// The snapshot response may already carry increments; seed the book.
	if increments, err := fixml.ParseMarketDataIncrements(response); err == nil {
		s.applyIncrements(increments)
	}

	s.log.Info("subscribed to market data", zap.String("isin", isin))

	return nil
}

// Unsubscribe cancels the market data subscription.
func (s *Session) Unsubscribe(ctx context.Context) error {
	doc := fixml.BuildUnsubscribe(s.nextRequestID())

	if _, err := s.syncCh.Call(ctx, doc); err != nil {
		return err
	}

	s.log.Info("unsubscribed from market data")

	return nil
}

// PlaceOrder validates and sends a manual limit order. The response report,
// if any, is forwarded to the position manager, which ignores it unless it
// matches a pending reference.
func (s *Session) PlaceOrder(req types.OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	clientID, report, err := s.sendOrder(req)
	if err != nil {
		return "", err
	}

	if report.IsSome() {
		s.manager.HandleExecutionReport(report.Unwrap())
	}

	return clientID, nil
}

// CancelOrder validates and sends a manual order cancellation.
func (s *Session) CancelOrder(req types.CancelRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	report, err := s.sendCancel(req)
	if err != nil {
		return err
	}

	if report.IsSome() {
		s.manager.HandleExecutionReport(report.Unwrap())
	}

	return nil
}

// StartEntry opens a managed position in the given direction using the
// configured account and trailing parameters.
func (s *Session) StartEntry(direction types.PositionType) error {
	return s.manager.StartEntry(s.entryParams(), direction)
}

// AdoptExistingPosition hands the position found in the latest portfolio
// snapshot to the manager.
func (s *Session) AdoptExistingPosition() error {
	s.mu.Lock()
	existing := s.existing
	s.mu.Unlock()

	if existing.IsNone() {
		return errors.New(errors.ErrCodeNoPosition, "no existing position in the managed instrument")
	}

	return s.manager.AdoptExistingPosition(s.entryParams(), existing.Unwrap())
}

// ManualExit flattens the managed position at the current best quote.
func (s *Session) ManualExit() error {
	return s.manager.ManualExit()
}

// Confirm executes a pending stop-move request.
func (s *Session) Confirm(request types.ConfirmationRequest) error {
	return s.manager.Confirm(request)
}

// Reject drops a pending stop-move request.
func (s *Session) Reject(request types.ConfirmationRequest) {
	s.manager.Reject(request)
}

// ManagedQuote returns the current quote for the managed instrument.
func (s *Session) ManagedQuote() (types.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quote, ok := s.market[s.cfg.InstrumentISIN]

	return quote, ok
}

// Portfolio returns the latest portfolio snapshot.
func (s *Session) Portfolio() types.PortfolioSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.portfolio
}

// ExistingPosition returns the managed-instrument position found in the
// latest portfolio snapshot, if any.
func (s *Session) ExistingPosition() optional.Option[types.PositionDetails] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.existing
}

func (s *Session) entryParams() types.EntryParams {
	return types.EntryParams{
		Account:          s.cfg.Account,
		TrailingDistance: s.cfg.TrailingDistance,
		Commission:       s.cfg.Commission,
	}
}

func (s *Session) nextRequestID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestID++

	return s.requestID
}

// sendOrder builds and sends a new order document and parses the execution
// report carried by the synchronous response, if any. It never dispatches the
// report itself; callers decide, so the manager can call this while holding
// its own lock. The client id is returned even when the call fails: the order
// may have reached the terminal anyway, and its report must stay matchable.
func (s *Session) sendOrder(req types.OrderRequest) (string, optional.Option[types.ExecutionReport], error) {
	none := optional.None[types.ExecutionReport]()

	id := s.nextRequestID()
	clientID := strconv.FormatInt(id, 10)
	doc := fixml.BuildOrder(id, req, time.Now())

	response, err := s.syncCh.Call(context.Background(), doc)
	if err != nil {
		return clientID, none, errors.Wrapf(errors.ErrCodeOrderFailed, err, "order %d send failed", id)
	}

	return clientID, s.reportFromResponse(response), nil
}

func (s *Session) sendCancel(req types.CancelRequest) (optional.Option[types.ExecutionReport], error) {
	none := optional.None[types.ExecutionReport]()

	id := s.nextRequestID()
	doc := fixml.BuildCancel(id, req, time.Now())

	response, err := s.syncCh.Call(context.Background(), doc)
	if err != nil {
		return none, errors.Wrapf(errors.ErrCodeOrderFailed, err, "cancel of %s send failed", req.BrokerOrderID)
	}

	return s.reportFromResponse(response), nil
}

// reportFromResponse extracts an execution report from a synchronous order
// response. An absent or unparsable report yields None: the caller can make
// no decision from it and must wait for the asynchronous channel.
func (s *Session) reportFromResponse(response string) optional.Option[types.ExecutionReport] {
	if fixml.DetectKind(response) != fixml.KindExecReport {
		return optional.None[types.ExecutionReport]()
	}

	report, err := fixml.ParseExecutionReport(response)
	if err != nil {
		s.log.Warn("unparsable execution report in sync response", zap.Error(err))

		return optional.None[types.ExecutionReport]()
	}

	s.emit(types.Event{Type: types.EventExecReport, Data: report})

	return optional.Some(report)
}

func (s *Session) runListener(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := s.asyncCh.Listen(ctx, s.handleFrame)
	if err != nil {
		s.log.Error("async listener failed", zap.Error(err))
		s.emit(types.Event{Type: types.EventLog, Data: "async listener failed: " + err.Error()})
	}

	s.emitDisconnected()
}

// handleFrame dispatches one asynchronous frame. Parse failures are logged
// and skipped; the listener keeps running for subsequent frames.
func (s *Session) handleFrame(payload string) {
	switch fixml.DetectKind(payload) {
	case fixml.KindHeartbeat:
		s.emit(types.Event{Type: types.EventHeartbeat, Data: payload})
		s.emit(types.Event{Type: types.EventAsyncMessage, Data: payload})

	case fixml.KindExecReport:
		report, err := fixml.ParseExecutionReport(payload)
		if err != nil {
			s.log.Warn("dropping unparsable execution report", zap.Error(err))
			s.emit(types.Event{Type: types.EventLog, Data: "unparsable execution report: " + err.Error()})

			return
		}

		s.emit(types.Event{Type: types.EventExecReport, Data: report})
		s.manager.HandleExecutionReport(report)

	case fixml.KindMarketData, fixml.KindMarketFull:
		increments, err := fixml.ParseMarketDataIncrements(payload)
		if err != nil {
			s.log.Warn("dropping unparsable market data", zap.Error(err))
			s.emit(types.Event{Type: types.EventLog, Data: "unparsable market data: " + err.Error()})

			return
		}

		s.applyIncrements(increments)

	case fixml.KindStatement:
		snapshot, err := fixml.ParsePortfolio(payload)
		if err != nil {
			s.log.Warn("dropping unparsable statement", zap.Error(err))
			s.emit(types.Event{Type: types.EventLog, Data: "unparsable statement: " + err.Error()})

			return
		}

		s.applyPortfolio(snapshot)

	default:
		s.emit(types.Event{Type: types.EventAsyncMessage, Data: payload})
	}
}

// applyIncrements merges market data increments into the book and publishes
// the managed quote when it changed.
func (s *Session) applyIncrements(increments []types.MarketDataIncrement) {
	s.mu.Lock()

	managedChanged := false

	for _, inc := range increments {
		quote := s.market[inc.ISIN]
		quote.ISIN = inc.ISIN

		if quote.Apply(inc) && inc.ISIN == s.cfg.InstrumentISIN {
			managedChanged = true
		}

		s.market[inc.ISIN] = quote
	}

	quote := s.market[s.cfg.InstrumentISIN]
	s.mu.Unlock()

	if managedChanged {
		s.emit(types.Event{Type: types.EventMarketDataUpdate, Data: quote})
	}
}

// applyPortfolio replaces the snapshot wholesale and publishes the derived
// existing-position view.
func (s *Session) applyPortfolio(snapshot types.PortfolioSnapshot) {
	s.mu.Lock()
	s.portfolio = snapshot
	s.existing = snapshot.FindPosition(s.cfg.InstrumentISIN)
	existing := s.existing
	openQty := snapshot.OpenQuantity(s.cfg.InstrumentISIN)
	s.mu.Unlock()

	update := types.PortfolioUpdate{
		Snapshot:        snapshot,
		OpenPositionQty: openQty,
	}

	if existing.IsSome() {
		details := existing.Unwrap()
		update.ExistingPositionFound = true
		update.ExistingPosition = &details
	}

	s.emit(types.Event{Type: types.EventPortfolioUpdate, Data: update})
}

// emit performs a non-blocking send on the event queue. The core never waits
// on the presentation layer.
func (s *Session) emit(event types.Event) {
	select {
	case s.events <- event:
	default:
		s.mu.Lock()
		s.dropped++
		dropped := s.dropped
		s.mu.Unlock()

		s.log.Warn("event queue full, dropping event",
			zap.String("type", string(event.Type)),
			zap.Int("dropped_total", dropped),
		)
	}
}

func (s *Session) emitDisconnected() {
	s.disconnectOnce.Do(func() {
		s.log.Info("session disconnected")
		s.emit(types.Event{Type: types.EventDisconnected})
	})
}

// sessionHooks adapts the session to the position manager's collaborator
// interfaces.
type sessionHooks struct {
	s *Session
}

var (
	_ bot.OrderGateway = (*sessionHooks)(nil)
	_ bot.MarketView   = (*sessionHooks)(nil)
	_ bot.EventSink    = (*sessionHooks)(nil)
)

func (h *sessionHooks) PlaceLimitOrder(req types.OrderRequest) (string, optional.Option[types.ExecutionReport], error) {
	if err := req.Validate(); err != nil {
		return "", optional.None[types.ExecutionReport](), err
	}

	return h.s.sendOrder(req)
}

func (h *sessionHooks) CancelOrder(req types.CancelRequest) (optional.Option[types.ExecutionReport], error) {
	if err := req.Validate(); err != nil {
		return optional.None[types.ExecutionReport](), err
	}

	return h.s.sendCancel(req)
}

func (h *sessionHooks) ManagedQuote() (types.Quote, bool) {
	return h.s.ManagedQuote()
}

func (h *sessionHooks) Emit(event types.Event) {
	h.s.emit(event)
}
