package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindPositionDerivesSideFromSign(t *testing.T) {
	snapshot := PortfolioSnapshot{
		Accounts: map[string]AccountStatement{
			"00-11-22222": {
				Funds: map[string]string{"Cash": "10000.00"},
				Positions: []PortfolioPosition{
					{Symbol: "FW20Z2520", ISIN: "PL0GF0031880", Quantity: -2},
				},
			},
			"00-11-33333": {
				Funds:     map[string]string{"Cash": "500.00"},
				Positions: []PortfolioPosition{},
			},
		},
	}

	found := snapshot.FindPosition("PL0GF0031880")
	assert.True(t, found.IsSome())

	details := found.Unwrap()
	assert.Equal(t, "00-11-22222", details.Account)
	assert.Equal(t, -2, details.Quantity)
	assert.Equal(t, PositionTypeShort, details.PositionType)
}

func TestFindPositionSkipsZeroQuantity(t *testing.T) {
	snapshot := PortfolioSnapshot{
		Accounts: map[string]AccountStatement{
			"00-11-22222": {
				Positions: []PortfolioPosition{
					{Symbol: "FW20Z2520", ISIN: "PL0GF0031880", Quantity: 0},
				},
			},
		},
	}

	assert.True(t, snapshot.FindPosition("PL0GF0031880").IsNone())
	assert.True(t, snapshot.FindPosition("PLKGHM000017").IsNone())
}

func TestOpenQuantitySumsAcrossAccounts(t *testing.T) {
	snapshot := PortfolioSnapshot{
		Accounts: map[string]AccountStatement{
			"a": {Positions: []PortfolioPosition{{ISIN: "PL0GF0031880", Quantity: 3}}},
			"b": {Positions: []PortfolioPosition{{ISIN: "PL0GF0031880", Quantity: -1}}},
		},
	}

	assert.Equal(t, 2, snapshot.OpenQuantity("PL0GF0031880"))
	assert.Equal(t, 0, snapshot.OpenQuantity("OTHER"))
}
