package main

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/brokerage/internal/model"
	"github.com/atmx/brokerage/internal/quote"
)

// devQuotes returns a static provider with a handful of symbols so the
// server is usable without an external quote API.
func devQuotes() *quote.StaticProvider {
	p := quote.NewStaticProvider()
	for _, q := range []model.Quote{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.NewFromFloat(189.84)},
		{Symbol: "MSFT", Name: "Microsoft Corporation", Price: decimal.NewFromFloat(415.26)},
		{Symbol: "GOOG", Name: "Alphabet Inc.", Price: decimal.NewFromFloat(172.63)},
		{Symbol: "AMZN", Name: "Amazon.com, Inc.", Price: decimal.NewFromFloat(183.15)},
		{Symbol: "NFLX", Name: "Netflix, Inc.", Price: decimal.NewFromFloat(628.78)},
	} {
		p.Set(q)
	}
	return p
}
