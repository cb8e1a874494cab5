package fixml

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/quantde/nolgate/internal/types"
	"github.com/quantde/nolgate/pkg/errors"
)

// Kind identifies which top-level tag an inbound document carries.
type Kind string

const (
	KindUnknown    Kind = "UNKNOWN"
	KindLogin      Kind = "USER_RSP"
	KindExecReport Kind = "EXEC_RPT"
	KindMarketData Kind = "MKT_DATA_INC"
	KindMarketFull Kind = "MKT_DATA_FULL"
	KindStatement  Kind = "STATEMENT"
	KindHeartbeat  Kind = "HEARTBEAT"
)

// DetectKind dispatches on which top-level tag is present in a payload. A
// heartbeat marker anywhere in the text wins over domain tags: it is a
// liveness pulse, not domain data.
func DetectKind(payload string) Kind {
	switch {
	case strings.Contains(payload, "<Heartbeat"):
		return KindHeartbeat
	case strings.Contains(payload, "<UserRsp"):
		return KindLogin
	case strings.Contains(payload, "<ExecRpt"):
		return KindExecReport
	case strings.Contains(payload, "<MktDataInc"):
		return KindMarketData
	case strings.Contains(payload, "<MktDataFull"):
		return KindMarketFull
	case strings.Contains(payload, "<Statement"):
		return KindStatement
	default:
		return KindUnknown
	}
}

func parseRoot(payload string) (*node, error) {
	// The terminal pads documents with NULs and whitespace, which the XML
	// decoder rejects.
	payload = strings.Trim(payload, "\x00 \t\r\n")

	var root node
	if err := xml.Unmarshal([]byte(payload), &root); err != nil {
		return nil, errors.Wrap(errors.ErrCodeProtocolParse, "malformed inbound document", err)
	}

	return &root, nil
}

// ParseLoginResult parses a UserRsp document. A UserStat of "1" is success;
// any other value is a failure carrying the raw status as diagnostic.
func ParseLoginResult(payload string) (types.LoginResult, error) {
	root, err := parseRoot(payload)
	if err != nil {
		return types.LoginResult{}, err
	}

	rsp := root.child("UserRsp")
	if rsp == nil {
		return types.LoginResult{}, errors.New(errors.ErrCodeUnexpectedResponse, "response carries no UserRsp tag")
	}

	status := rsp.attrOr("UserStat", "")

	return types.LoginResult{
		Success: status == "1",
		Status:  status,
	}, nil
}

// ParseExecutionReport parses an ExecRpt document. The order quantity lives in
// a nested OrdQty element; its absence yields an empty quantity field rather
// than a failure.
func ParseExecutionReport(payload string) (types.ExecutionReport, error) {
	root, err := parseRoot(payload)
	if err != nil {
		return types.ExecutionReport{}, err
	}

	rpt := root.child("ExecRpt")
	if rpt == nil {
		return types.ExecutionReport{}, errors.New(errors.ErrCodeProtocolParse, "document carries no ExecRpt tag")
	}

	symbol := "N/A"
	if instrmt := rpt.child("Instrmt"); instrmt != nil {
		symbol = instrmt.attrOr("Sym", "N/A")
	}

	orderedQty := ""
	if qtys := rpt.findAll("OrdQty"); len(qtys) > 0 {
		orderedQty = qtys[0].attrOr("Qty", "")
	}

	rawStatus := rpt.attrOr("Stat", "")

	return types.ExecutionReport{
		BrokerOrderID:   rpt.attrOr("OrdID", ""),
		ClientRequestID: rpt.attrOr("ID", ""),
		Status:          types.ExecStatusFromFixml(rawStatus),
		RawStatus:       rawStatus,
		Symbol:          symbol,
		Side:            rpt.attrOr("Side", ""),
		OrderedQty:      orderedQty,
		LeavesQty:       rpt.attrOr("LeavesQty", ""),
		CumQty:          rpt.attrOr("CumQty", ""),
		LimitPrice:      rpt.attrOr("Px", ""),
		LastFillPrice:   rpt.attrOr("LastPx", ""),
		TransactTime:    rpt.attrOr("TxnTm", ""),
	}, nil
}

// ParseMarketDataIncrements parses a MktDataInc document into the increment
// entries it carries. Entries without an instrument are skipped; price and
// size are each optional per entry.
func ParseMarketDataIncrements(payload string) ([]types.MarketDataIncrement, error) {
	root, err := parseRoot(payload)
	if err != nil {
		return nil, err
	}

	var out []types.MarketDataIncrement

	for _, inc := range root.findAll("Inc") {
		instrmt := inc.child("Instrmt")
		if instrmt == nil {
			continue
		}

		entry := types.MarketDataIncrement{
			ISIN: instrmt.attrOr("ID", ""),
			Type: types.IncrementType(inc.attrOr("Typ", "")),
		}

		if px, ok := inc.attr("Px"); ok && px != "" {
			if v, perr := strconv.ParseFloat(px, 64); perr == nil {
				entry.Price = v
				entry.HasPrice = true
			}
		}

		if sz, ok := inc.attr("Sz"); ok && sz != "" {
			// Sizes arrive as decimal text on some feeds.
			if v, perr := strconv.ParseFloat(sz, 64); perr == nil {
				entry.Size = int(v)
				entry.HasSize = true
			}
		}

		out = append(out, entry)
	}

	return out, nil
}

// ParsePortfolio parses the Statement documents under the root into a
// portfolio snapshot. Fund elements are direct statement children; Position
// elements are picked up anywhere under the statement. The quantity attribute
// defaults to 0 on absence.
func ParsePortfolio(payload string) (types.PortfolioSnapshot, error) {
	root, err := parseRoot(payload)
	if err != nil {
		return types.PortfolioSnapshot{}, err
	}

	snapshot := types.PortfolioSnapshot{
		Accounts: make(map[string]types.AccountStatement),
	}

	for _, statement := range root.children("Statement") {
		account := statement.attrOr("Acct", "")

		entry := types.AccountStatement{
			Funds:     make(map[string]string),
			Positions: make([]types.PortfolioPosition, 0),
		}

		for _, fund := range statement.children("Fund") {
			entry.Funds[fund.attrOr("name", "")] = fund.attrOr("value", "")
		}

		for _, position := range statement.findAll("Position") {
			qty, _ := strconv.Atoi(position.attrOr("Acc110", "0"))

			pos := types.PortfolioPosition{
				Quantity:        qty,
				BlockedQuantity: position.attrOr("Acc120", ""),
			}

			if instrmt := position.child("Instrmt"); instrmt != nil {
				pos.Symbol = instrmt.attrOr("Sym", "")
				pos.ISIN = instrmt.attrOr("ID", "")
			}

			entry.Positions = append(entry.Positions, pos)
		}

		snapshot.Accounts[account] = entry
	}

	return snapshot, nil
}
