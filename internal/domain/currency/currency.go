package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is a supported ledger currency. Balances and transactions are
// always kept in their native currency; conversion happens only in reporting.
type Currency string

const (
	USD  Currency = "USD"
	EUR  Currency = "EUR"
	AUD  Currency = "AUD"
	CAD  Currency = "CAD"
	ARS  Currency = "ARS"
	PLN  Currency = "PLN"
	BTC  Currency = "BTC"
	ETH  Currency = "ETH"
	DOGE Currency = "DOGE"
	USDT Currency = "USDT"
)

// currencies is the closed set of supported currencies.
var currencies = []Currency{USD, EUR, AUD, CAD, ARS, PLN, BTC, ETH, DOGE, USDT}

// ratesToUSD is a static exchange-rate table used by analytics reporting only.
var ratesToUSD = map[Currency]decimal.Decimal{
	USD:  decimal.RequireFromString("1"),
	EUR:  decimal.RequireFromString("0.9342"),
	AUD:  decimal.RequireFromString("0.5447"),
	CAD:  decimal.RequireFromString("0.6162"),
	ARS:  decimal.RequireFromString("0.0009"),
	PLN:  decimal.RequireFromString("0.2343"),
	BTC:  decimal.RequireFromString("100000"),
	ETH:  decimal.RequireFromString("3557.3476"),
	DOGE: decimal.RequireFromString("0.3627"),
	USDT: decimal.RequireFromString("0.9709"),
}

func (c Currency) String() string {
	return string(c)
}

// Currencies returns the supported currency set.
func Currencies() []Currency {
	list := make([]Currency, len(currencies))
	copy(list, currencies)

	return list
}

// Parse validates a currency code against the supported set.
func Parse(code string) (Currency, error) {
	cur := Currency(code)

	if _, ok := ratesToUSD[cur]; !ok {
		return "", fmt.Errorf("unknown currency: %s", code)
	}

	return cur, nil
}

// RateToUSD returns the static USD exchange rate for the currency.
func RateToUSD(cur Currency) decimal.Decimal {
	rate, ok := ratesToUSD[cur]
	if !ok {
		return decimal.Zero
	}

	return rate
}
