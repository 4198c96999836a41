package backtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"github.com/newthinker/novaquant/internal/cost"
	"github.com/newthinker/novaquant/internal/marketdata"
	"github.com/newthinker/novaquant/internal/strategy"
)

// Data source kinds.
const (
	SourceGBM       = "gbm"
	SourceOrderBook = "orderbook"
	SourceYahoo     = "yahoo"
)

// dateLayout is the format of the historical start/end fields.
const dateLayout = "2006-01-02"

// Common request defaults.
const (
	DefaultSymbol      = "BTCUSDT"
	DefaultStrategy    = "momentum"
	DefaultLookback    = 10
	DefaultQty         = 1.0
	DefaultFeeBps      = 1.0
	DefaultSlippageBps = 2.0
	DefaultSpreadBps   = 5.0
	DefaultTopK        = 10
	DefaultScoreKey    = "sharpe"
	DefaultTrainSize   = 300
	DefaultTestSize    = 100
)

var (
	DefaultLookbacks       = []int{5, 10, 20, 40}
	DefaultFeeBpsList      = []float64{0, 1, 2}
	DefaultSlippageBpsList = []float64{0, 2, 5}
)

// Request describes one backtest. Pointer fields distinguish "absent" from
// zero so that source-specific fields can be required.
type Request struct {
	Symbol     string `json:"symbol,omitempty"`
	DataSource string `json:"data_source"`

	Steps *int   `json:"steps,omitempty"`
	Seed  *int64 `json:"seed,omitempty"`

	StartPrice *float64 `json:"start_price,omitempty"`
	Mu         *float64 `json:"mu,omitempty"`
	Sigma      *float64 `json:"sigma,omitempty"`
	VolBps     *float64 `json:"vol_bps,omitempty"`
	SpreadBps  *float64 `json:"spread_bps,omitempty"`

	YahooSymbol string `json:"yahoo_symbol,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Interval    string `json:"interval,omitempty"`

	Strategy       string         `json:"strategy,omitempty"`
	StrategyParams map[string]any `json:"strategy_params,omitempty"`
	Lookback       *int           `json:"lookback,omitempty"`
	Qty            *float64       `json:"qty,omitempty"`

	FeeBps      *float64 `json:"fee_bps,omitempty"`
	SlippageBps *float64 `json:"slippage_bps,omitempty"`
}

// SweepRequest is a Request plus the parameter grid.
type SweepRequest struct {
	Request
	Lookbacks       []int     `json:"lookbacks,omitempty"`
	FeeBpsList      []float64 `json:"fee_bps_list,omitempty"`
	SlippageBpsList []float64 `json:"slippage_bps_list,omitempty"`
	TopK            *int      `json:"top_k,omitempty"`
	ScoreKey        string    `json:"score_key,omitempty"`
}

// WalkForwardRequest is a Request plus chunking parameters.
type WalkForwardRequest struct {
	Request
	TrainSize      *int  `json:"train_size,omitempty"`
	TestSize       *int  `json:"test_size,omitempty"`
	RefitLookbacks []int `json:"refit_lookbacks,omitempty"`
}

// Decode reads a JSON request into v, rejecting unknown fields and trailing
// data. Any failure is a CONFIG_INVALID error.
func Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Errorf(core.ErrConfigInvalid, "empty request body")
		}
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if dec.More() {
		return core.Errorf(core.ErrConfigInvalid, "unexpected data after request object")
	}
	return nil
}

// plan is a fully resolved request.
type plan struct {
	symbol   string
	source   marketdata.Source
	strategy strategy.Config
	cost     cost.Config
	seed     *int64
}

func (p plan) withLookback(lookback int) strategy.Config {
	cfg := p.strategy
	cfg.Lookback = lookback
	return cfg
}

func (p plan) withCosts(feeBps, slippageBps float64) cost.Config {
	c := p.cost
	c.FeeBps = feeBps
	c.SlippageBps = slippageBps
	return c
}

// resolve applies defaults, checks required fields and builds the source.
func (r Request) resolve(fetcher marketdata.Fetcher) (plan, error) {
	p := plan{
		symbol: orDefault(r.Symbol, DefaultSymbol),
		seed:   r.Seed,
		strategy: strategy.Config{
			Kind:      orDefault(r.Strategy, DefaultStrategy),
			Lookback:  deref(r.Lookback, DefaultLookback),
			TargetQty: deref(r.Qty, DefaultQty),
			Params:    r.StrategyParams,
		},
	}

	var err error
	switch r.DataSource {
	case SourceGBM:
		if err = requireFields(SourceGBM, field{"steps", r.Steps != nil}, field{"start_price", r.StartPrice != nil},
			field{"mu", r.Mu != nil}, field{"sigma", r.Sigma != nil}); err != nil {
			return plan{}, err
		}
		p.cost.SpreadBps = deref(r.SpreadBps, DefaultSpreadBps)
		p.source = marketdata.GBM{
			Steps:      *r.Steps,
			StartPrice: *r.StartPrice,
			Mu:         *r.Mu,
			Sigma:      *r.Sigma,
			SpreadBps:  p.cost.SpreadBps,
			Seed:       r.Seed,
		}
	case SourceOrderBook:
		if err = requireFields(SourceOrderBook, field{"steps", r.Steps != nil}, field{"start_price", r.StartPrice != nil},
			field{"vol_bps", r.VolBps != nil}); err != nil {
			return plan{}, err
		}
		p.cost.SpreadBps = deref(r.SpreadBps, DefaultSpreadBps)
		p.source = marketdata.OrderBook{
			Steps:      *r.Steps,
			StartPrice: *r.StartPrice,
			VolBps:     *r.VolBps,
			SpreadBps:  p.cost.SpreadBps,
			Seed:       r.Seed,
		}
	case SourceYahoo:
		if err = requireFields(SourceYahoo, field{"yahoo_symbol", r.YahooSymbol != ""}, field{"start", r.Start != ""},
			field{"end", r.End != ""}, field{"interval", r.Interval != ""}); err != nil {
			return plan{}, err
		}
		start, err := parseDate("start", r.Start)
		if err != nil {
			return plan{}, err
		}
		end, err := parseDate("end", r.End)
		if err != nil {
			return plan{}, err
		}
		p.cost.SpreadBps = deref(r.SpreadBps, 0)
		p.source = marketdata.Historical{
			Fetcher:   fetcher,
			Symbol:    r.YahooSymbol,
			Start:     start,
			End:       end,
			Interval:  r.Interval,
			SpreadBps: p.cost.SpreadBps,
		}
	case "":
		return plan{}, core.Errorf(core.ErrConfigInvalid, "data_source is required")
	default:
		return plan{}, core.Errorf(core.ErrConfigInvalid, "unknown data_source %q", r.DataSource)
	}

	p.cost.FeeBps = deref(r.FeeBps, DefaultFeeBps)
	p.cost.SlippageBps = deref(r.SlippageBps, DefaultSlippageBps)
	if err := p.cost.Validate(); err != nil {
		return plan{}, err
	}
	if err := p.strategy.Validate(); err != nil {
		return plan{}, err
	}
	return p, nil
}

// field pairs a request field name with whether it was supplied.
type field struct {
	name    string
	present bool
}

func requireFields(source string, fields ...field) error {
	var missing []string
	for _, f := range fields {
		if !f.present {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return core.Errorf(core.ErrConfigInvalid, "data_source %s requires %v", source, missing)
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: %w", field, err))
	}
	return t, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
