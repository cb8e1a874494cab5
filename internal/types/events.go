package types

// EventType tags an event on the outbound queue consumed by the presentation
// layer.
type EventType string

const (
	EventLog              EventType = "LOG"
	EventLoginSuccess     EventType = "LOGIN_SUCCESS"
	EventLoginFail        EventType = "LOGIN_FAIL"
	EventDisconnected     EventType = "DISCONNECTED"
	EventMarketDataUpdate EventType = "MARKET_DATA_UPDATE"
	EventPortfolioUpdate  EventType = "PORTFOLIO_UPDATE"
	EventExecReport       EventType = "EXEC_REPORT"
	EventBotStateUpdate   EventType = "BOT_STATE_UPDATE"
	EventBotLog           EventType = "BOT_LOG"
	EventConfirmBotAction EventType = "CONFIRM_BOT_ACTION"
	EventHeartbeat        EventType = "HEARTBEAT"
	// EventAsyncMessage is a diagnostic passthrough of raw async traffic.
	EventAsyncMessage EventType = "ASYNC_MSG"
)

// Event is a single entry on the outbound queue. Data holds the typed payload
// for the event kind: Quote for MARKET_DATA_UPDATE, PortfolioUpdate for
// PORTFOLIO_UPDATE, ExecutionReport for EXEC_REPORT, BotStateUpdate for
// BOT_STATE_UPDATE, ConfirmationRequest for CONFIRM_BOT_ACTION, string for the
// log and raw passthrough kinds.
type Event struct {
	Type EventType
	Data any
}

// PortfolioUpdate is the PORTFOLIO_UPDATE payload: the replaced snapshot plus
// the derived existing-position view for the managed instrument.
type PortfolioUpdate struct {
	Snapshot              PortfolioSnapshot
	OpenPositionQty       int
	ExistingPositionFound bool
	ExistingPosition      *PositionDetails
}
