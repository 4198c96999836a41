// Package barcache persists fetched historical bars so repeated backtests over
// the same range skip the upstream fetch.
package barcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/novaquant/internal/core"
)

// Store defines the interface for bar cache backends
type Store interface {
	// Load returns the cached bars for key; ok is false on a miss
	Load(ctx context.Context, key string) (bars []core.OHLCV, ok bool, err error)

	// Save stores bars under key, replacing any previous entry
	Save(ctx context.Context, key string, bars []core.OHLCV) error

	// Keys returns every cached key with the given prefix
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the entry for key
	Delete(ctx context.Context, key string) error
}

// Key builds the cache key for one historical request.
func Key(provider, symbol, interval string, start, end time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s_%s.json",
		provider,
		strings.ToUpper(symbol),
		interval,
		start.UTC().Format("20060102"),
		end.UTC().Format("20060102"),
	)
}

// Options selects and configures a backend.
type Options struct {
	Type string // memory, localfs, s3 or none
	Path string // localfs base directory
	S3   S3Config
}

// New creates the backend named by opts.Type. A nil Store with no error
// means caching is disabled.
func New(opts Options) (Store, error) {
	switch opts.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "localfs":
		return NewLocalFS(opts.Path)
	case "s3":
		return NewS3(opts.S3)
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown cache type %q", opts.Type)
	}
}

type cachedBar struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume int64   `json:"v"`
	Time   int64   `json:"t"`
}

type cachedSeries struct {
	Symbol   string      `json:"symbol"`
	Interval string      `json:"interval"`
	Bars     []cachedBar `json:"bars"`
}

func encodeBars(bars []core.OHLCV) ([]byte, error) {
	series := cachedSeries{Bars: make([]cachedBar, len(bars))}
	if len(bars) > 0 {
		series.Symbol = bars[0].Symbol
		series.Interval = bars[0].Interval
	}
	for i, b := range bars {
		series.Bars[i] = cachedBar{
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
			Time:   b.Time.Unix(),
		}
	}
	return json.Marshal(series)
}

func decodeBars(data []byte) ([]core.OHLCV, error) {
	var series cachedSeries
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("decoding cached bars: %w", err)
	}
	bars := make([]core.OHLCV, len(series.Bars))
	for i, b := range series.Bars {
		bars[i] = core.OHLCV{
			Symbol:   series.Symbol,
			Interval: series.Interval,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
			Time:     time.Unix(b.Time, 0),
		}
	}
	return bars, nil
}
