// Package bot implements the position manager: a state machine that opens a
// position, shadows it with a protective stop and trails the stop behind the
// last trade price. The manager never mutates a resting protective order
// directly; it raises a confirmation request and acts only once the
// confirming collaborator calls back.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantde/nolgate/internal/logger"
	"github.com/quantde/nolgate/internal/types"
	"github.com/quantde/nolgate/pkg/errors"
)

// OrderGateway places and cancels orders on the terminal. Implementations
// return the execution report carried by the synchronous response, if any;
// the manager processes it after releasing its own lock, so gateways must
// never call back into the manager.
type OrderGateway interface {
	PlaceLimitOrder(req types.OrderRequest) (clientID string, report optional.Option[types.ExecutionReport], err error)
	CancelOrder(req types.CancelRequest) (report optional.Option[types.ExecutionReport], err error)
}

// MarketView exposes the live quote for the managed instrument.
type MarketView interface {
	ManagedQuote() (types.Quote, bool)
}

// EventSink receives outbound events for the presentation layer.
type EventSink interface {
	Emit(event types.Event)
}

// Config holds the manager's fixed parameters.
type Config struct {
	ISIN string
	// EvaluationInterval is the trailing-stop check period.
	EvaluationInterval time.Duration
	// CancelSettleDelay is the pause between cancelling the old stop and
	// placing its replacement.
	CancelSettleDelay time.Duration
}

// Manager is the position manager state machine. All transitions happen
// inside its methods; collaborators only ever invoke the public operations.
type Manager struct {
	cfg     Config
	gateway OrderGateway
	market  MarketView
	events  EventSink
	log     *logger.Logger

	mu           sync.Mutex
	state        types.ManagerState
	params       types.EntryParams
	positionType types.PositionType
	// entryOrderID and stopOrderID hold the client request id until the
	// first acknowledgement, then the broker-assigned id.
	entryOrderID optional.Option[string]
	stopOrderID  optional.Option[string]
	entryPrice   float64
	activeStop   float64
	adopted      optional.Option[types.PositionDetails]
	dailyProfit  decimal.Decimal

	pendingConfirmation bool
	pendingRequest      *types.ConfirmationRequest

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewManager creates a manager in the STOPPED state.
func NewManager(cfg Config, gateway OrderGateway, market MarketView, events EventSink, log *logger.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		gateway:     gateway,
		market:      market,
		events:      events,
		log:         log,
		state:       types.ManagerStateStopped,
		dailyProfit: decimal.Zero,
	}
}

// State returns the current manager state.
func (m *Manager) State() types.ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// DailyProfit returns the accumulated realized profit for the day.
func (m *Manager) DailyProfit() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, _ := m.dailyProfit.Float64()

	return f
}

// ActiveStopPrice returns the price of the active protective stop, or 0 when
// no position is managed.
func (m *Manager) ActiveStopPrice() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.activeStop
}

// BreakEvenPrice returns the entry price adjusted by round-trip commission,
// for display only. Zero when no position is open.
func (m *Manager) BreakEvenPrice() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.InPosition() {
		return 0
	}

	entry := decimal.NewFromFloat(m.entryPrice)
	roundTrip := decimal.NewFromFloat(m.params.Commission).Mul(decimal.NewFromInt(2))

	var breakEven decimal.Decimal
	if m.positionType == types.PositionTypeLong {
		breakEven = entry.Add(roundTrip)
	} else {
		breakEven = entry.Sub(roundTrip)
	}

	f, _ := breakEven.Float64()

	return f
}

// OnLoginSuccess moves the manager out of STOPPED once a session is live.
func (m *Manager) OnLoginSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == types.ManagerStateStopped {
		m.state = types.ManagerStateIdle
	}
}

// Shutdown stops the trailing loop. Called on disconnect.
func (m *Manager) Shutdown() {
	m.stopLoop()
}

// StartEntry opens a new managed position in the given direction with a limit
// order for quantity 1 at the current best quote: the bid for a long entry,
// the ask for a short one. A failed send still arms the machine: the entry
// reference is recorded and the error returned, so a report from an order
// that reached the terminal anyway is settled normally.
func (m *Manager) StartEntry(params types.EntryParams, direction types.PositionType) error {
	report, err := m.startEntryLocked(params, direction)
	if m.State() != types.ManagerStateWaitingForEntryFill {
		return err
	}

	m.startLoop()
	m.processFollowUps(report)

	return err
}

func (m *Manager) startEntryLocked(params types.EntryParams, direction types.PositionType) (optional.Option[types.ExecutionReport], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	none := optional.None[types.ExecutionReport]()

	if m.state != types.ManagerStateIdle {
		m.botLog("cannot start entry: manager is %s", m.state)

		return none, errors.Newf(errors.ErrCodeInvalidStateTransition, "cannot start entry in state %s", m.state)
	}

	quote, ok := m.market.ManagedQuote()
	if !ok {
		m.botLog("cannot start entry: no market data for %s", m.cfg.ISIN)

		return none, errors.New(errors.ErrCodeNoMarketData, "no market data for managed instrument")
	}

	var entryPrice float64

	var side types.OrderSide

	if direction == types.PositionTypeLong {
		if !quote.HasBid() {
			return none, errors.New(errors.ErrCodeNoMarketData, "no bid price available")
		}

		entryPrice = quote.Bid
		side = types.OrderSideBuy
	} else {
		if !quote.HasAsk() {
			return none, errors.New(errors.ErrCodeNoMarketData, "no ask price available")
		}

		entryPrice = quote.Ask
		side = types.OrderSideSell
	}

	m.params = params
	m.positionType = direction
	m.entryOrderID = optional.None[string]()
	m.stopOrderID = optional.None[string]()
	m.adopted = optional.None[types.PositionDetails]()
	m.pendingConfirmation = false
	m.pendingRequest = nil

	m.botLog("opening %s position with a limit order at %.2f", direction, entryPrice)
	m.state = types.ManagerStateWaitingForEntryFill

	clientID, report, err := m.gateway.PlaceLimitOrder(types.OrderRequest{
		Account:  params.Account,
		ISIN:     m.cfg.ISIN,
		Side:     side,
		Quantity: 1,
		Price:    entryPrice,
		Role:     types.OrderRoleEntry,
	})

	// Record the reference even when the call failed. The order may have
	// reached the terminal anyway; keeping the id lets a late report settle
	// the entry either way.
	if clientID != "" {
		m.entryOrderID = optional.Some(clientID)
	}

	if err != nil {
		m.botLog("entry order send failed: %v", err)

		return optional.None[types.ExecutionReport](), err
	}

	return report, nil
}

// AdoptExistingPosition starts managing a position already held at the
// broker, using the current last trade price as the estimated entry price.
func (m *Manager) AdoptExistingPosition(params types.EntryParams, details types.PositionDetails) error {
	report, err := m.adoptLocked(params, details)
	if err != nil {
		return err
	}

	m.startLoop()
	m.processFollowUps(report)

	return nil
}

func (m *Manager) adoptLocked(params types.EntryParams, details types.PositionDetails) (optional.Option[types.ExecutionReport], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	none := optional.None[types.ExecutionReport]()

	if m.state != types.ManagerStateIdle && m.state != types.ManagerStateStopped {
		m.botLog("cannot adopt position: manager is %s", m.state)

		return none, errors.Newf(errors.ErrCodeInvalidStateTransition, "cannot adopt position in state %s", m.state)
	}

	quote, ok := m.market.ManagedQuote()
	if !ok || !quote.HasLast() {
		m.botLog("cannot adopt position: no last trade price for %s", m.cfg.ISIN)

		return none, errors.New(errors.ErrCodeNoMarketData, "no last trade price for managed instrument")
	}

	m.params = params
	m.adopted = optional.Some(details)
	m.positionType = details.PositionType
	m.entryOrderID = optional.None[string]()
	m.stopOrderID = optional.None[string]()
	m.pendingConfirmation = false
	m.pendingRequest = nil
	m.entryPrice = quote.LastPrice

	quantity := details.Quantity
	if quantity < 0 {
		quantity = -quantity
	}

	if m.positionType == types.PositionTypeLong {
		m.state = types.ManagerStateInLongPosition
		m.activeStop = m.entryPrice - params.TrailingDistance
	} else {
		m.state = types.ManagerStateInShortPosition
		m.activeStop = m.entryPrice + params.TrailingDistance
	}

	m.botLog("managing existing %s position, estimated entry %.2f, stop %.2f",
		m.positionType, m.entryPrice, m.activeStop)

	// A stop that is already marketable would fill the moment it is placed.
	// Leave it to the operator rather than sending a self-triggering order.
	marketable := (m.positionType == types.PositionTypeLong && m.activeStop <= quote.Bid) ||
		(m.positionType == types.PositionTypeShort && m.activeStop >= quote.Ask)

	report := none

	if marketable {
		m.botLog("stop %.2f is already marketable against the opposite quote, not placing it", m.activeStop)
	} else {
		report = m.placeStopLocked(quantity, m.activeStop)
	}

	m.emitBotState()

	return report, nil
}

// ManualExit cancels the active stop and sends an opposite-side limit order
// at the current best quote. It does not change state itself: the resulting
// fill report drives the normal exit transition.
func (m *Manager) ManualExit() error {
	cancelReport, exitPrice, quantity, hadStop, err := m.manualExitCancelPhase()
	if err != nil {
		return err
	}

	// The cancel needs time to book before the closing order goes out. The
	// lock is released here so inbound reports keep flowing meanwhile.
	if hadStop {
		m.settle()
	}

	placeReport := m.manualExitPlacePhase(exitPrice, quantity)

	m.stopLoop()
	m.processFollowUps(cancelReport)
	m.processFollowUps(placeReport)

	return nil
}

func (m *Manager) manualExitCancelPhase() (optional.Option[types.ExecutionReport], float64, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	none := optional.None[types.ExecutionReport]()

	if !m.state.InPosition() {
		m.botLog("no open position to close")

		return none, 0, 0, false, errors.Newf(errors.ErrCodeInvalidStateTransition, "cannot exit manually in state %s", m.state)
	}

	quote, ok := m.market.ManagedQuote()
	if !ok {
		return none, 0, 0, false, errors.New(errors.ErrCodeNoMarketData, "no market data for managed instrument")
	}

	var exitPrice float64

	if m.positionType == types.PositionTypeLong {
		if !quote.HasBid() {
			return none, 0, 0, false, errors.New(errors.ErrCodeNoMarketData, "no bid price available")
		}

		exitPrice = quote.Bid
	} else {
		if !quote.HasAsk() {
			return none, 0, 0, false, errors.New(errors.ErrCodeNoMarketData, "no ask price available")
		}

		exitPrice = quote.Ask
	}

	quantity := m.stopQuantityLocked()

	if m.stopOrderID.IsSome() {
		m.botLog("cancelling active stop %s before manual exit", m.stopOrderID.Unwrap())
		report := m.cancelStopLocked(m.stopOrderID.Unwrap(), quantity)
		m.stopOrderID = optional.None[string]()

		return report, exitPrice, quantity, true, nil
	}

	return none, exitPrice, quantity, false, nil
}

func (m *Manager) manualExitPlacePhase(exitPrice float64, quantity int) optional.Option[types.ExecutionReport] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.InPosition() {
		m.botLog("position already closed, skipping manual exit order")

		return optional.None[types.ExecutionReport]()
	}

	m.botLog("manually closing %s position at %.2f", m.positionType, exitPrice)

	return m.placeStopLocked(quantity, exitPrice)
}

// HandleExecutionReport applies one inbound execution report to the state
// machine. Reports not matching a pending reference are ignored here; the
// session still forwards them raw.
func (m *Manager) HandleExecutionReport(report types.ExecutionReport) {
	next := m.applyReport(report)
	for next.IsSome() {
		next = m.applyReport(next.Unwrap())
	}
}

// applyReport performs one locked transition and returns the response report
// of any order placed during it, so the caller can feed it back in.
func (m *Manager) applyReport(report types.ExecutionReport) optional.Option[types.ExecutionReport] {
	m.mu.Lock()
	defer m.mu.Unlock()

	none := optional.None[types.ExecutionReport]()

	clientID := report.ClientRequestID
	brokerID := report.BrokerOrderID

	m.log.Debug("execution report",
		zap.String("client_id", clientID),
		zap.String("broker_id", brokerID),
		zap.String("status", string(report.Status)),
	)

	switch {
	case report.Status == types.ExecStatusFilled:
		fillPrice, ok := parsePrice(report.LastFillPrice)
		if !ok {
			return none
		}

		if m.state == types.ManagerStateWaitingForEntryFill && m.matches(m.entryOrderID, clientID) {
			return m.onEntryFilled(fillPrice, brokerID)
		}

		if m.state.InPosition() && m.matches(m.stopOrderID, clientID) {
			m.onStopFilled(fillPrice)

			return none
		}

	case report.Status.IsAcknowledgement():
		if m.state.InPosition() && m.matches(m.stopOrderID, clientID) && brokerID != "" {
			m.botLog("stop order acknowledged, broker id %s", brokerID)
			m.stopOrderID = optional.Some(brokerID)
		}

	case report.Status.IsTerminated():
		if m.state.InPosition() && (m.matches(m.stopOrderID, clientID) || m.matches(m.stopOrderID, brokerID)) {
			m.botLog("active stop order was cancelled or rejected, clearing reference")
			m.stopOrderID = optional.None[string]()
		}
	}

	return none
}

func (m *Manager) onEntryFilled(fillPrice float64, brokerID string) optional.Option[types.ExecutionReport] {
	m.entryPrice = fillPrice
	if brokerID != "" {
		m.entryOrderID = optional.Some(brokerID)
	}

	quantity := m.stopQuantityLocked()

	if m.positionType == types.PositionTypeLong {
		m.state = types.ManagerStateInLongPosition
		m.activeStop = m.entryPrice - m.params.TrailingDistance
	} else {
		m.state = types.ManagerStateInShortPosition
		m.activeStop = m.entryPrice + m.params.TrailingDistance
	}

	m.botLog("%s position opened at %.2f, placing stop at %.2f", m.positionType, m.entryPrice, m.activeStop)
	report := m.placeStopLocked(quantity, m.activeStop)
	m.emitBotState()

	return report
}

func (m *Manager) onStopFilled(exitPrice float64) {
	entry := decimal.NewFromFloat(m.entryPrice)
	exit := decimal.NewFromFloat(exitPrice)

	profit := exit.Sub(entry)
	if m.positionType == types.PositionTypeShort {
		profit = profit.Neg()
	}

	roundTrip := decimal.NewFromFloat(m.params.Commission).Mul(decimal.NewFromInt(2))
	profit = profit.Sub(roundTrip)
	m.dailyProfit = m.dailyProfit.Add(profit)

	profitF, _ := profit.Float64()
	dailyF, _ := m.dailyProfit.Float64()
	m.botLog("position closed at %.2f, profit %.2f, daily total %.2f", exitPrice, profitF, dailyF)

	m.state = types.ManagerStateIdle
	m.entryOrderID = optional.None[string]()
	m.stopOrderID = optional.None[string]()
	m.adopted = optional.None[types.PositionDetails]()
	m.pendingConfirmation = false
	m.pendingRequest = nil

	m.stopLoopLocked()
	m.emitBotState()
}

// Confirm executes a previously raised confirmation request: cancel the old
// stop if its broker id is known, wait for the cancel to settle, place the
// new stop at the confirmed price.
func (m *Manager) Confirm(request types.ConfirmationRequest) error {
	first, err := m.confirmCancelPhase(request)
	if err != nil {
		return err
	}

	m.settle()

	second := m.confirmPlacePhase(request)

	m.processFollowUps(first)
	m.processFollowUps(second)

	return nil
}

func (m *Manager) confirmCancelPhase(request types.ConfirmationRequest) (optional.Option[types.ExecutionReport], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	none := optional.None[types.ExecutionReport]()

	if !m.pendingConfirmation {
		return none, errors.New(errors.ErrCodeInvalidStateTransition, "no confirmation outstanding")
	}

	m.botLog("moving stop to %.2f", request.NewStopPrice)

	if request.OldStopID.IsSome() {
		report := m.cancelStopLocked(request.OldStopID.Unwrap(), request.Quantity)
		m.stopOrderID = optional.None[string]()

		return report, nil
	}

	return none, nil
}

func (m *Manager) confirmPlacePhase(request types.ConfirmationRequest) optional.Option[types.ExecutionReport] {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The old stop may have filled while the cancel settled; never place a
	// fresh order against a flat book.
	if !m.state.InPosition() {
		m.pendingConfirmation = false
		m.pendingRequest = nil
		m.botLog("position closed while the stop move settled, dropping it")

		return optional.None[types.ExecutionReport]()
	}

	report := m.placeStopLocked(request.Quantity, request.NewStopPrice)
	m.activeStop = request.NewStopPrice
	m.pendingConfirmation = false
	m.pendingRequest = nil

	return report
}

// Reject drops a previously raised confirmation request, leaving the old
// stop in force.
func (m *Manager) Reject(request types.ConfirmationRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pendingConfirmation = false
	m.pendingRequest = nil
	m.botLog("action rejected, resuming monitoring")
}

// EvaluateTrailingStop performs one trailing-stop check. It is called
// periodically by the evaluation loop and is safe to call at any time: out of
// position, mid-confirmation or without market data it simply does nothing.
func (m *Manager) EvaluateTrailingStop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.InPosition() || m.pendingConfirmation {
		return
	}

	quote, ok := m.market.ManagedQuote()
	if !ok || !quote.HasLast() {
		return
	}

	if m.stopOrderID.IsNone() && m.activeStop == 0 {
		// No active stop to trail; keep monitoring.
		return
	}

	var candidate float64

	shouldMove := false

	if m.positionType == types.PositionTypeLong {
		candidate = quote.LastPrice - m.params.TrailingDistance

		if m.activeStop <= quote.Bid {
			m.botLog("stop %.2f is at or below bid %.2f, not touching it", m.activeStop, quote.Bid)
		} else if candidate > m.activeStop {
			shouldMove = true
		}
	} else {
		candidate = quote.LastPrice + m.params.TrailingDistance

		if m.activeStop >= quote.Ask {
			m.botLog("stop %.2f is at or above ask %.2f, not touching it", m.activeStop, quote.Ask)
		} else if candidate < m.activeStop {
			shouldMove = true
		}
	}

	if !shouldMove {
		return
	}

	m.pendingConfirmation = true

	request := types.ConfirmationRequest{
		ActionType:   types.ConfirmActionStopMove,
		OldStopID:    m.stopOrderID,
		NewStopPrice: candidate,
		Quantity:     m.stopQuantityLocked(),
		Direction:    m.positionType.ClosingSide(),
	}
	m.pendingRequest = &request

	m.botLog("stop move %.2f -> %.2f detected, awaiting confirmation", m.activeStop, candidate)
	m.events.Emit(types.Event{Type: types.EventConfirmBotAction, Data: request})
}

// PendingConfirmation returns the outstanding confirmation request, if any.
func (m *Manager) PendingConfirmation() optional.Option[types.ConfirmationRequest] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingRequest == nil {
		return optional.None[types.ConfirmationRequest]()
	}

	return optional.Some(*m.pendingRequest)
}

// --- internals ---

// placeStopLocked places a protective (or exit) order and records its client
// id as the pending stop reference, send failure included: an order that
// reached the terminal despite a failed-looking call must stay matchable.
// Callers hold m.mu.
func (m *Manager) placeStopLocked(quantity int, price float64) optional.Option[types.ExecutionReport] {
	clientID, report, err := m.gateway.PlaceLimitOrder(types.OrderRequest{
		Account:  m.params.Account,
		ISIN:     m.cfg.ISIN,
		Side:     m.positionType.ClosingSide(),
		Quantity: quantity,
		Price:    price,
		Role:     types.OrderRoleStop,
	})

	if clientID != "" {
		m.stopOrderID = optional.Some(clientID)
	}

	if err != nil {
		m.botLog("stop order send failed: %v", err)

		return optional.None[types.ExecutionReport]()
	}

	return report
}

// cancelStopLocked sends a cancellation for the given stop order id. Callers
// hold m.mu.
func (m *Manager) cancelStopLocked(orderID string, quantity int) optional.Option[types.ExecutionReport] {
	report, err := m.gateway.CancelOrder(types.CancelRequest{
		Account:       m.params.Account,
		ISIN:          m.cfg.ISIN,
		BrokerOrderID: orderID,
		Side:          m.positionType.ClosingSide(),
		Quantity:      quantity,
	})
	if err != nil {
		m.botLog("cancel of stop %s failed: %v", orderID, err)

		return optional.None[types.ExecutionReport]()
	}

	return report
}

// stopQuantityLocked returns the position size protective orders must carry:
// the adopted position's absolute quantity, or 1 for a fresh entry.
func (m *Manager) stopQuantityLocked() int {
	if m.adopted.IsSome() {
		q := m.adopted.Unwrap().Quantity
		if q < 0 {
			q = -q
		}

		return q
	}

	return 1
}

func (m *Manager) matches(ref optional.Option[string], id string) bool {
	return ref.IsSome() && id != "" && ref.Unwrap() == id
}

func (m *Manager) emitBotState() {
	update := types.BotStateUpdate{
		PositionType: m.positionType,
		Commission:   m.params.Commission,
	}

	daily, _ := m.dailyProfit.Float64()
	update.DailyProfit = daily

	if m.state.InPosition() {
		update.EntryPrice = optional.Some(m.entryPrice)
	} else {
		update.EntryPrice = optional.None[float64]()
	}

	m.events.Emit(types.Event{Type: types.EventBotStateUpdate, Data: update})
}

func (m *Manager) botLog(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	m.log.Info(msg)
	m.events.Emit(types.Event{Type: types.EventBotLog, Data: msg})
}

func (m *Manager) processFollowUps(report optional.Option[types.ExecutionReport]) {
	if report.IsSome() {
		m.HandleExecutionReport(report.Unwrap())
	}
}

// parsePrice parses a report price attribute, rejecting absent values.
func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

func (m *Manager) settle() {
	if m.cfg.CancelSettleDelay > 0 {
		time.Sleep(m.cfg.CancelSettleDelay)
	}
}

// startLoop launches the trailing evaluation loop if it is not running.
func (m *Manager) startLoop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loopDone != nil {
		select {
		case <-m.loopDone:
			// Previous loop already ended (position closed); start fresh.
		default:
			return
		}
	}

	interval := m.cfg.EvaluationInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.loopCancel = cancel
	m.loopDone = done

	go m.runLoop(ctx, interval, done)
	m.botLog("trailing stop loop started")
}

func (m *Manager) runLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvaluateTrailingStop()
		}
	}
}

func (m *Manager) stopLoop() {
	m.mu.Lock()
	m.stopLoopLocked()
	done := m.loopDone
	m.mu.Unlock()

	if done != nil {
		<-done
	}

	m.mu.Lock()
	m.loopDone = nil
	m.mu.Unlock()
}

// stopLoopLocked signals the loop to stop without waiting. Callers hold m.mu.
func (m *Manager) stopLoopLocked() {
	if m.loopCancel != nil {
		m.loopCancel()
		m.loopCancel = nil
	}
}
