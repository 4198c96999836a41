package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/novaquant/internal/core"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	DefaultTimeout = 10 * time.Second
)

// validSymbol matches symbols like AAPL, SPY, BTC-USD, ^GSPC, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9-]{1,12}(\.[A-Za-z]{1,4})?$`)

// validIntervals are the bar sizes the chart API accepts.
var validIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true,
	"1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
}

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// ValidInterval reports whether interval is accepted by the chart API.
func ValidInterval(interval string) bool {
	return validIntervals[interval]
}

// Client fetches historical bars from the Yahoo Finance chart API
type Client struct {
	client  *http.Client
	baseURL string
}

// New creates a new Yahoo client. Empty baseURL and zero timeout select the
// defaults.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (y *Client) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// FetchHistory fetches OHLCV bars in [start, end). Rows with a missing close
// are skipped. Upstream failures and empty results are DATA_SOURCE errors.
func (y *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.OHLCV, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	if !ValidInterval(interval) {
		return nil, core.Errorf(core.ErrDataSource, "malformed interval %q", interval)
	}

	url := fmt.Sprintf("%s/%s?interval=%s&period1=%d&period2=%d",
		y.baseURL, toYahooSymbol(symbol), interval, start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.WrapError(core.ErrDataSource, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; novaquant)")

	resp, err := y.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.FromContext(ctx.Err())
		}
		return nil, core.WrapError(core.ErrDataSource, fmt.Errorf("fetching history: %w", err))
	}
	defer resp.Body.Close()

	var result chartResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if result.Chart.Error != nil {
		return nil, core.Errorf(core.ErrDataSource, "yahoo error: %s", result.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.Errorf(core.ErrDataSource, "unexpected status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, core.WrapError(core.ErrDataSource, fmt.Errorf("decoding response: %w", decodeErr))
	}
	if len(result.Chart.Result) == 0 {
		return nil, core.Errorf(core.ErrDataSource, "no data for symbol: %s", symbol)
	}

	r := result.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, core.Errorf(core.ErrDataSource, "no bars for %s", symbol)
	}
	quotes := r.Indicators.Quote[0]

	data := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePx := at(quotes.Close, i)
		if closePx == nil || *closePx <= 0 {
			continue // Skip missing data
		}
		bar := core.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			Open:     *closePx,
			High:     *closePx,
			Low:      *closePx,
			Close:    *closePx,
			Time:     time.Unix(int64(ts), 0).UTC(),
		}
		if v := at(quotes.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(quotes.High, i); v != nil {
			bar.High = *v
		}
		if v := at(quotes.Low, i); v != nil {
			bar.Low = *v
		}
		if v := at(quotes.Volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		data = append(data, bar)
	}

	if len(data) == 0 {
		return nil, core.Errorf(core.ErrDataSource, "no bars for %s in range", symbol)
	}
	return data, nil
}

func at[T any](values []*T, i int) *T {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}
