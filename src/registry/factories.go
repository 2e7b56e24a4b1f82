package registry

import (
	"github.com/username/pitfolio/src/reporters"
)

// DefaultFactories maps every built-in reporter kind to its constructor.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		"trade": func(params map[string]string, _ reporters.Deps) (reporters.Reporter, error) {
			return reporters.NewTradeReporter(params)
		},
		"crypto": func(params map[string]string, _ reporters.Deps) (reporters.Reporter, error) {
			return reporters.NewCryptoReporter(params)
		},
		"employment": func(params map[string]string, _ reporters.Deps) (reporters.Reporter, error) {
			return reporters.NewEmploymentReporter(params)
		},
		"revolut_interest": func(params map[string]string, _ reporters.Deps) (reporters.Reporter, error) {
			return reporters.NewRevolutReporter(params)
		},
		"coinbase": func(params map[string]string, deps reporters.Deps) (reporters.Reporter, error) {
			return reporters.NewCoinbaseReporter(params, deps)
		},
		"schwab": func(params map[string]string, deps reporters.Deps) (reporters.Reporter, error) {
			return reporters.NewSchwabReporter(params, deps)
		},
		"ib_trade_cash": func(params map[string]string, deps reporters.Deps) (reporters.Reporter, error) {
			return reporters.NewIBKRReporter(params, deps)
		},
		"ib_flex_query": func(params map[string]string, deps reporters.Deps) (reporters.Reporter, error) {
			return reporters.NewFlexQueryReporter(params, deps)
		},
	}
}
