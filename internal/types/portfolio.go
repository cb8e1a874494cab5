package types

import "github.com/moznion/go-optional"

// PortfolioPosition is one position row inside an account statement.
// Quantity is signed; a negative quantity is a short position.
type PortfolioPosition struct {
	Symbol          string
	ISIN            string
	Quantity        int
	BlockedQuantity string
}

// AccountStatement holds funds and positions for a single account.
type AccountStatement struct {
	Funds     map[string]string
	Positions []PortfolioPosition
}

// PortfolioSnapshot maps account identifiers to statements. It is replaced
// wholesale on each inbound Statement document, never merged incrementally.
type PortfolioSnapshot struct {
	Accounts map[string]AccountStatement
}

// PositionDetails describes an existing open position in the managed
// instrument, derived from the portfolio snapshot.
type PositionDetails struct {
	Account      string
	Symbol       string
	ISIN         string
	Quantity     int
	PositionType PositionType
}

// FindPosition scans the snapshot for a nonzero-quantity position in the given
// instrument. The sign of the quantity determines the position type.
func (p *PortfolioSnapshot) FindPosition(isin string) optional.Option[PositionDetails] {
	for account, statement := range p.Accounts {
		for _, pos := range statement.Positions {
			if pos.ISIN != isin || pos.Quantity == 0 {
				continue
			}

			positionType := PositionTypeLong
			if pos.Quantity < 0 {
				positionType = PositionTypeShort
			}

			return optional.Some(PositionDetails{
				Account:      account,
				Symbol:       pos.Symbol,
				ISIN:         pos.ISIN,
				Quantity:     pos.Quantity,
				PositionType: positionType,
			})
		}
	}

	return optional.None[PositionDetails]()
}

// OpenQuantity sums the signed quantity held in the given instrument across
// all accounts.
func (p *PortfolioSnapshot) OpenQuantity(isin string) int {
	total := 0

	for _, statement := range p.Accounts {
		for _, pos := range statement.Positions {
			if pos.ISIN == isin {
				total += pos.Quantity
			}
		}
	}

	return total
}
