// Package fixml builds and parses the FIXML-tagged documents exchanged with
// the brokerage terminal. It is pure data transformation: no sockets, no
// shared state. Request ids are assigned by the session's shared counter and
// passed in.
package fixml

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantde/nolgate/internal/types"
)

// Fixed protocol version/revision pair included on every outbound document.
const (
	Version  = "5.0"
	Release  = "20080317"
	Schema   = "20080314"
	currency = "PLN"
	// instrumentSrc identifies the ISIN numbering scheme.
	instrumentSrc = "4"
)

const (
	trdDateLayout = "20060102"
	txnTimeLayout = "20060102-15:04:05"
)

// subscriptionFields are the per-field-type entries of a market data
// subscription: bid, ask, last trade, open interest, lop, volume and the
// session statistics the terminal expects to be asked for together.
var subscriptionFields = []string{"0", "1", "2", "B", "C", "3", "4", "5", "7", "r", "8"}

func envelope(inner string) string {
	return fmt.Sprintf(`<FIXML v=%q r=%q s=%q>%s</FIXML>`, Version, Release, Schema, inner)
}

func escape(s string) string {
	var b strings.Builder

	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// BuildLogin builds a UserReq login document.
func BuildLogin(requestID int64, username, password string) string {
	return envelope(fmt.Sprintf(
		`<UserReq UserReqID="%d" UserReqTyp="1" Username="%s" Password="%s"/>`,
		requestID, escape(username), escape(password)))
}

// BuildSubscribe builds a MktDataReq subscription for one instrument with the
// full per-field-type request list.
func BuildSubscribe(requestID int64, isin string) string {
	var reqs strings.Builder
	for _, typ := range subscriptionFields {
		fmt.Fprintf(&reqs, `<req Typ=%q/>`, typ)
	}

	return envelope(fmt.Sprintf(
		`<MktDataReq ReqID="%d" SubReqTyp="1" MktDepth="0">%s<InstReq><Instrmt ID="%s" Src=%q/></InstReq></MktDataReq>`,
		requestID, reqs.String(), escape(isin), instrumentSrc))
}

// BuildUnsubscribe builds a MktDataReq that clears the subscription filter.
func BuildUnsubscribe(requestID int64) string {
	return envelope(fmt.Sprintf(`<MktDataReq ReqID="%d" SubReqTyp="2"></MktDataReq>`, requestID))
}

// BuildOrder builds a new limit order document, day time-in-force.
func BuildOrder(clientRequestID int64, req types.OrderRequest, now time.Time) string {
	return envelope(fmt.Sprintf(
		`<Order ID="%d" TrdDt="%s" Acct="%s" Side=%q TxnTm="%s" OrdTyp="L" Px="%.2f" Ccy=%q TmInForce="0"><Instrmt ID="%s" Src=%q/><OrdQty Qty="%d"/></Order>`,
		clientRequestID,
		now.Format(trdDateLayout),
		escape(req.Account),
		req.Side.FixmlCode(),
		now.Format(txnTimeLayout),
		req.Price,
		currency,
		escape(req.ISIN),
		instrumentSrc,
		req.Quantity))
}

// BuildCancel builds an order cancellation carrying the broker-assigned order
// id the terminal knows the order by.
func BuildCancel(clientRequestID int64, req types.CancelRequest, now time.Time) string {
	return envelope(fmt.Sprintf(
		`<OrdCxlReq ID="%d" OrdID="%s" Acct="%s" Side=%q TxnTm="%s"><Instrmt ID="%s" Src=%q/><OrdQty Qty="%d"/></OrdCxlReq>`,
		clientRequestID,
		escape(req.BrokerOrderID),
		escape(req.Account),
		req.Side.FixmlCode(),
		now.Format(txnTimeLayout),
		escape(req.ISIN),
		instrumentSrc,
		req.Quantity))
}
