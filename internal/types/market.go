package types

// IncrementType tags a single market data increment entry.
type IncrementType string

const (
	IncrementTypeBid  IncrementType = "0"
	IncrementTypeAsk  IncrementType = "1"
	IncrementTypeLast IncrementType = "2"
	// IncrementTypeLOP carries the limit-order-position size for derivatives.
	IncrementTypeLOP IncrementType = "C"
)

// MarketDataIncrement is a single Inc entry from a MktDataInc document.
// HasPrice/HasSize distinguish absent attributes from zero values.
type MarketDataIncrement struct {
	ISIN     string
	Type     IncrementType
	Price    float64
	HasPrice bool
	Size     int
	HasSize  bool
}

// Quote is the live market snapshot for one instrument. Each increment updates
// only the fields present in that increment; absent fields retain prior value.
type Quote struct {
	ISIN      string
	Bid       float64
	BidSize   int
	Ask       float64
	AskSize   int
	LastPrice float64
	LOP       int
}

// Apply merges a single increment into the quote. Returns true if any field
// changed. Unrecognized increment types are ignored.
func (q *Quote) Apply(inc MarketDataIncrement) bool {
	switch inc.Type {
	case IncrementTypeBid:
		if inc.HasPrice {
			q.Bid = inc.Price
		}

		if inc.HasSize {
			q.BidSize = inc.Size
		}

		return inc.HasPrice || inc.HasSize
	case IncrementTypeAsk:
		if inc.HasPrice {
			q.Ask = inc.Price
		}

		if inc.HasSize {
			q.AskSize = inc.Size
		}

		return inc.HasPrice || inc.HasSize
	case IncrementTypeLast:
		if inc.HasPrice {
			q.LastPrice = inc.Price

			return true
		}

		return false
	case IncrementTypeLOP:
		if inc.HasSize {
			q.LOP = inc.Size

			return true
		}

		return false
	default:
		return false
	}
}

// HasBid reports whether a bid price has been observed.
func (q *Quote) HasBid() bool { return q.Bid > 0 }

// HasAsk reports whether an ask price has been observed.
func (q *Quote) HasAsk() bool { return q.Ask > 0 }

// HasLast reports whether a last trade price has been observed.
func (q *Quote) HasLast() bool { return q.LastPrice > 0 }
