package types

import "github.com/moznion/go-optional"

// ManagerState is the position manager state. Exactly one active value per
// session; transitions are the manager's sole responsibility.
type ManagerState string

const (
	ManagerStateStopped             ManagerState = "STOPPED"
	ManagerStateIdle                ManagerState = "IDLE"
	ManagerStateWaitingForEntryFill ManagerState = "WAITING_FOR_ENTRY_FILL"
	ManagerStateInLongPosition      ManagerState = "IN_LONG_POSITION"
	ManagerStateInShortPosition     ManagerState = "IN_SHORT_POSITION"
)

// InPosition reports whether the manager currently holds an open position.
func (s ManagerState) InPosition() bool {
	return s == ManagerStateInLongPosition || s == ManagerStateInShortPosition
}

// ConfirmActionType identifies the kind of gated manager action.
type ConfirmActionType string

const (
	// ConfirmActionStopMove asks to move the protective stop to a new price.
	ConfirmActionStopMove ConfirmActionType = "STOP_MOVE"
)

// ConfirmationRequest is raised by the position manager instead of mutating a
// protective order directly. At most one request is outstanding at a time.
type ConfirmationRequest struct {
	ActionType   ConfirmActionType
	OldStopID    optional.Option[string]
	NewStopPrice float64
	Quantity     int
	Direction    OrderSide
}

// EntryParams configures a managed entry or position adoption.
type EntryParams struct {
	Account          string  `yaml:"account" validate:"required"`
	TrailingDistance float64 `yaml:"trailing_distance" validate:"required,gt=0"`
	// Commission is the configured per-side commission, applied symmetrically:
	// realized profit subtracts twice this value per round trip.
	Commission float64 `yaml:"commission" validate:"gte=0"`
}

// BotStateUpdate reports a position open/close to the presentation layer.
// EntryPrice is None when the position has been flattened.
type BotStateUpdate struct {
	EntryPrice   optional.Option[float64]
	PositionType PositionType
	Commission   float64
	DailyProfit  float64
}
