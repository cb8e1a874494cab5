package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/quantde/nolgate/pkg/errors"
)

type OrderSide string

type OrderRole string

type PositionType string

// ExecStatus is the order status carried by an execution report.
type ExecStatus string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	PositionTypeLong  PositionType = "LONG"
	PositionTypeShort PositionType = "SHORT"
)

const (
	// OrderRoleEntry marks the order that opens a new position.
	OrderRoleEntry OrderRole = "ENTRY"
	// OrderRoleStop marks the protective order that closes a position.
	OrderRoleStop OrderRole = "STOP"
)

const (
	ExecStatusNew           ExecStatus = "NEW"
	ExecStatusActive        ExecStatus = "ACTIVE"
	ExecStatusFilled        ExecStatus = "FILLED"
	ExecStatusCancelled     ExecStatus = "CANCELLED"
	ExecStatusReplaced      ExecStatus = "REPLACED"
	ExecStatusPendingCancel ExecStatus = "PENDING_CANCEL"
	ExecStatusRejected      ExecStatus = "REJECTED"
	ExecStatusPendingModify ExecStatus = "PENDING_MODIFY"
	ExecStatusUnknown       ExecStatus = "UNKNOWN"
)

// FixmlCode returns the FIXML Side attribute value for the side.
func (s OrderSide) FixmlCode() string {
	if s == OrderSideBuy {
		return "1"
	}

	return "2"
}

// Opposite returns the side that closes an order of this side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}

	return OrderSideBuy
}

// ClosingSide returns the order side that flattens a position of this type.
func (p PositionType) ClosingSide() OrderSide {
	if p == PositionTypeLong {
		return OrderSideSell
	}

	return OrderSideBuy
}

// ExecStatusFromFixml maps a FIXML Stat attribute value to an ExecStatus.
func ExecStatusFromFixml(stat string) ExecStatus {
	switch stat {
	case "0":
		return ExecStatusNew
	case "1":
		return ExecStatusActive
	case "2":
		return ExecStatusFilled
	case "4":
		return ExecStatusCancelled
	case "5":
		return ExecStatusReplaced
	case "6":
		return ExecStatusPendingCancel
	case "8":
		return ExecStatusRejected
	case "E":
		return ExecStatusPendingModify
	default:
		return ExecStatusUnknown
	}
}

// IsAcknowledgement reports whether the status acknowledges a resting order,
// carrying the broker-assigned order id.
func (s ExecStatus) IsAcknowledgement() bool {
	return s == ExecStatusNew || s == ExecStatusActive || s == ExecStatusReplaced
}

// IsTerminated reports whether the status means the order is no longer working.
func (s ExecStatus) IsTerminated() bool {
	return s == ExecStatusCancelled || s == ExecStatusRejected
}

// OrderRequest describes an outbound new limit order. The client request id is
// assigned by the session counter just before the document is built.
type OrderRequest struct {
	Account  string    `yaml:"account" json:"account" validate:"required"`
	ISIN     string    `yaml:"isin" json:"isin" validate:"required"`
	Side     OrderSide `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity int       `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	Price    float64   `yaml:"price" json:"price" validate:"required,gt=0"`
	Role     OrderRole `yaml:"role" json:"role" validate:"omitempty,oneof=ENTRY STOP"`
}

// CancelRequest describes an outbound order cancellation.
type CancelRequest struct {
	Account       string    `yaml:"account" json:"account" validate:"required"`
	ISIN          string    `yaml:"isin" json:"isin" validate:"required"`
	BrokerOrderID string    `yaml:"broker_order_id" json:"broker_order_id" validate:"required"`
	Side          OrderSide `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity      int       `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
}

// ExecutionReport is a parsed ExecRpt document. Immutable once parsed; one
// report never overwrites another.
type ExecutionReport struct {
	BrokerOrderID   string
	ClientRequestID string
	Status          ExecStatus
	RawStatus       string
	Symbol          string
	Side            string
	OrderedQty      string
	LeavesQty       string
	CumQty          string
	LimitPrice      string
	LastFillPrice   string
	TransactTime    string
}

// Validate validates the OrderRequest struct.
func (o *OrderRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order request", err)
	}

	return nil
}

// Validate validates the CancelRequest struct.
func (c *CancelRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid cancel request", err)
	}

	return nil
}
