package fixml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantde/nolgate/internal/types"
)

var buildTime = time.Date(2025, 3, 14, 10, 30, 0, 0, time.Local)

func TestBuildLogin(t *testing.T) {
	doc := BuildLogin(2, "BOS12345", "secret")

	assert.Contains(t, doc, `<FIXML v="5.0" r="20080317" s="20080314">`)
	assert.Contains(t, doc, `<UserReq UserReqID="2" UserReqTyp="1" Username="BOS12345" Password="secret"/>`)
}

func TestBuildLoginEscapesCredentials(t *testing.T) {
	doc := BuildLogin(2, `user"name`, "p<a>&s")

	assert.Contains(t, doc, `Username="user&quot;name"`)
	assert.Contains(t, doc, `Password="p&lt;a&gt;&amp;s"`)
}

func TestBuildSubscribe(t *testing.T) {
	doc := BuildSubscribe(3, "PL0GF0031880")

	assert.Contains(t, doc, `SubReqTyp="1"`)
	assert.Contains(t, doc, `MktDepth="0"`)
	assert.Contains(t, doc, `<InstReq><Instrmt ID="PL0GF0031880" Src="4"/></InstReq>`)

	for _, typ := range []string{"0", "1", "2", "B", "C", "3", "4", "5", "7", "r", "8"} {
		assert.Contains(t, doc, `<req Typ="`+typ+`"/>`)
	}
}

func TestBuildUnsubscribe(t *testing.T) {
	doc := BuildUnsubscribe(4)

	assert.Contains(t, doc, `ReqID="4"`)
	assert.Contains(t, doc, `SubReqTyp="2"`)
	assert.NotContains(t, doc, "InstReq")
}

func TestBuildOrder(t *testing.T) {
	doc := BuildOrder(7, types.OrderRequest{
		Account:  "00-11-22222",
		ISIN:     "PL0GF0031880",
		Side:     types.OrderSideBuy,
		Quantity: 1,
		Price:    2301.5,
	}, buildTime)

	assert.Contains(t, doc, `<Order ID="7" TrdDt="20250314" Acct="00-11-22222" Side="1" TxnTm="20250314-10:30:00" OrdTyp="L" Px="2301.50" Ccy="PLN" TmInForce="0">`)
	assert.Contains(t, doc, `<Instrmt ID="PL0GF0031880" Src="4"/>`)
	assert.Contains(t, doc, `<OrdQty Qty="1"/>`)
}

func TestBuildCancel(t *testing.T) {
	doc := BuildCancel(9, types.CancelRequest{
		Account:       "00-11-22222",
		ISIN:          "PL0GF0031880",
		BrokerOrderID: "DM998877",
		Side:          types.OrderSideSell,
		Quantity:      2,
	}, buildTime)

	assert.Contains(t, doc, `<OrdCxlReq ID="9" OrdID="DM998877" Acct="00-11-22222" Side="2" TxnTm="20250314-10:30:00">`)
	assert.Contains(t, doc, `<OrdQty Qty="2"/>`)
}
