package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/newthinker/novaquant/internal/backtest"
	"github.com/newthinker/novaquant/internal/logger"
	"github.com/newthinker/novaquant/internal/performance"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// requestFlags mirrors the common request fields. Only flags that were set
// are copied into the request so that defaults and required-field checks
// behave as they do over HTTP.
type requestFlags struct {
	file    string
	asJSON  bool
	params  map[string]string
	str     map[string]*string
	ints    map[string]*int
	floats  map[string]*float64
	seed    int64
	sweep   sweepFlags
	walkFwd walkForwardFlags
}

type sweepFlags struct {
	lookbacks []int
	fees      []float64
	slippages []float64
	topK      int
	scoreKey  string
}

type walkForwardFlags struct {
	trainSize int
	testSize  int
	refit     []int
}

var (
	runFlags = &requestFlags{}
	swpFlags = &requestFlags{}
	wfFlags  = &requestFlags{}
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run backtests from the command line",
	Long: `Run a single backtest, a parameter sweep or a walk-forward analysis and
print the results. Requests come from flags or from a JSON file in the same
format the HTTP API accepts.`,
}

var backtestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backtest",
	Args:  cobra.NoArgs,
	RunE:  runBacktestRun,
}

var backtestSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep lookback, fee and slippage over a grid",
	Args:  cobra.NoArgs,
	RunE:  runBacktestSweep,
}

var backtestWalkForwardCmd = &cobra.Command{
	Use:   "walkforward",
	Short: "Run a walk-forward analysis",
	Args:  cobra.NoArgs,
	RunE:  runBacktestWalkForward,
}

func init() {
	runFlags.register(backtestRunCmd)
	swpFlags.register(backtestSweepCmd)
	wfFlags.register(backtestWalkForwardCmd)

	sf := backtestSweepCmd.Flags()
	sf.IntSliceVar(&swpFlags.sweep.lookbacks, "lookbacks", nil, "lookbacks to sweep")
	sf.Float64SliceVar(&swpFlags.sweep.fees, "fee-bps-list", nil, "fee rates to sweep, in bps")
	sf.Float64SliceVar(&swpFlags.sweep.slippages, "slippage-bps-list", nil, "slippage rates to sweep, in bps")
	sf.IntVar(&swpFlags.sweep.topK, "top-k", backtest.DefaultTopK, "rows to keep")
	sf.StringVar(&swpFlags.sweep.scoreKey, "score-key", backtest.DefaultScoreKey, "metric to rank by")

	wf := backtestWalkForwardCmd.Flags()
	wf.IntVar(&wfFlags.walkFwd.trainSize, "train-size", backtest.DefaultTrainSize, "bars of history before each chunk")
	wf.IntVar(&wfFlags.walkFwd.testSize, "test-size", backtest.DefaultTestSize, "bars per chunk")
	wf.IntSliceVar(&wfFlags.walkFwd.refit, "refit-lookbacks", nil, "lookbacks to pick from on each chunk's training bars")

	backtestCmd.AddCommand(backtestRunCmd, backtestSweepCmd, backtestWalkForwardCmd)
	rootCmd.AddCommand(backtestCmd)
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.file, "request", "r", "", "read the request from a JSON file")
	fs.BoolVar(&f.asJSON, "json", false, "print the raw JSON response")
	fs.Int64Var(&f.seed, "seed", 0, "random seed for synthetic sources")
	fs.StringToStringVar(&f.params, "param", nil, "strategy parameter, e.g. --param fast_period=3")

	f.str = map[string]*string{}
	for _, name := range []string{"data-source", "symbol", "yahoo-symbol", "start", "end", "interval", "strategy"} {
		f.str[name] = new(string)
		fs.StringVar(f.str[name], name, "", "")
	}
	f.ints = map[string]*int{}
	for _, name := range []string{"steps", "lookback"} {
		f.ints[name] = new(int)
		fs.IntVar(f.ints[name], name, 0, "")
	}
	f.floats = map[string]*float64{}
	for _, name := range []string{"start-price", "mu", "sigma", "vol-bps", "spread-bps", "qty", "fee-bps", "slippage-bps"} {
		f.floats[name] = new(float64)
		fs.Float64Var(f.floats[name], name, 0, "")
	}

	usage := map[string]string{
		"data-source":  "gbm, orderbook or yahoo",
		"symbol":       "symbol reported in results",
		"yahoo-symbol": "ticker to fetch (yahoo)",
		"start":        "first date, YYYY-MM-DD (yahoo)",
		"end":          "last date, YYYY-MM-DD (yahoo)",
		"interval":     "bar interval, e.g. 1d (yahoo)",
		"strategy":     "momentum or ma_crossover",
		"steps":        "bars to generate (gbm, orderbook)",
		"lookback":     "strategy lookback in bars",
		"start-price":  "first price (gbm, orderbook)",
		"mu":           "per-step drift (gbm)",
		"sigma":        "per-step volatility (gbm)",
		"vol-bps":      "per-step volatility in bps (orderbook)",
		"spread-bps":   "quoted spread in bps",
		"qty":          "target position size",
		"fee-bps":      "fee rate in bps",
		"slippage-bps": "slippage in bps",
	}
	for name, text := range usage {
		fs.Lookup(name).Usage = text
	}
}

// request builds the common request from the flags that were set.
func (f *requestFlags) request(cmd *cobra.Command) backtest.Request {
	fs := cmd.Flags()
	str := func(name string) string { return *f.str[name] }
	intp := func(name string) *int {
		if !fs.Changed(name) {
			return nil
		}
		return f.ints[name]
	}
	floatp := func(name string) *float64 {
		if !fs.Changed(name) {
			return nil
		}
		return f.floats[name]
	}

	req := backtest.Request{
		DataSource:  str("data-source"),
		Symbol:      str("symbol"),
		YahooSymbol: str("yahoo-symbol"),
		Start:       str("start"),
		End:         str("end"),
		Interval:    str("interval"),
		Strategy:    str("strategy"),
		Steps:       intp("steps"),
		Lookback:    intp("lookback"),
		StartPrice:  floatp("start-price"),
		Mu:          floatp("mu"),
		Sigma:       floatp("sigma"),
		VolBps:      floatp("vol-bps"),
		SpreadBps:   floatp("spread-bps"),
		Qty:         floatp("qty"),
		FeeBps:      floatp("fee-bps"),
		SlippageBps: floatp("slippage-bps"),
	}
	if fs.Changed("seed") {
		req.Seed = &f.seed
	}
	if len(f.params) > 0 {
		req.StrategyParams = make(map[string]any, len(f.params))
		for k, v := range f.params {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				req.StrategyParams[k] = n
			} else {
				req.StrategyParams[k] = v
			}
		}
	}
	return req
}

// readRequest decodes the --request file into v.
func readRequest(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening request: %w", err)
	}
	defer file.Close()
	return backtest.Decode(file, v)
}

// withRunner handles common setup for the backtest subcommands.
func withRunner(fn func(ctx context.Context, r *backtest.Runner, log *zap.Logger) error) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runner, err := newRunner(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, runner, log)
}

func runBacktestRun(cmd *cobra.Command, args []string) error {
	var req backtest.Request
	if runFlags.file != "" {
		if err := readRequest(runFlags.file, &req); err != nil {
			return err
		}
	} else {
		req = runFlags.request(cmd)
	}

	return withRunner(func(ctx context.Context, r *backtest.Runner, log *zap.Logger) error {
		resp, err := r.Run(ctx, req)
		if err != nil {
			return fmt.Errorf("backtest failed: %w", err)
		}
		log.Debug("backtest finished", zap.Int("bars", len(resp.Equity)), zap.Int("trades", len(resp.Trades)))
		if runFlags.asJSON {
			return printJSON(os.Stdout, resp)
		}
		printRun(os.Stdout, resp)
		return nil
	})
}

func runBacktestSweep(cmd *cobra.Command, args []string) error {
	var req backtest.SweepRequest
	if swpFlags.file != "" {
		if err := readRequest(swpFlags.file, &req); err != nil {
			return err
		}
	} else {
		req = backtest.SweepRequest{
			Request:         swpFlags.request(cmd),
			Lookbacks:       swpFlags.sweep.lookbacks,
			FeeBpsList:      swpFlags.sweep.fees,
			SlippageBpsList: swpFlags.sweep.slippages,
			TopK:            &swpFlags.sweep.topK,
			ScoreKey:        swpFlags.sweep.scoreKey,
		}
	}

	return withRunner(func(ctx context.Context, r *backtest.Runner, log *zap.Logger) error {
		resp, err := r.Sweep(ctx, req)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		if swpFlags.asJSON {
			return printJSON(os.Stdout, resp)
		}
		printSweep(os.Stdout, resp)
		return nil
	})
}

func runBacktestWalkForward(cmd *cobra.Command, args []string) error {
	var req backtest.WalkForwardRequest
	if wfFlags.file != "" {
		if err := readRequest(wfFlags.file, &req); err != nil {
			return err
		}
	} else {
		req = backtest.WalkForwardRequest{
			Request:        wfFlags.request(cmd),
			TrainSize:      &wfFlags.walkFwd.trainSize,
			TestSize:       &wfFlags.walkFwd.testSize,
			RefitLookbacks: wfFlags.walkFwd.refit,
		}
	}

	return withRunner(func(ctx context.Context, r *backtest.Runner, log *zap.Logger) error {
		resp, err := r.WalkForward(ctx, req)
		if err != nil {
			return fmt.Errorf("walk-forward failed: %w", err)
		}
		if wfFlags.asJSON {
			return printJSON(os.Stdout, resp)
		}
		printWalkForward(os.Stdout, resp)
		return nil
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// opt formats a nullable metric.
func opt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func printRun(out io.Writer, resp *backtest.Response) {
	final := 0.0
	if n := len(resp.Equity); n > 0 {
		final = resp.Equity[n-1]
	}
	m := resp.Metrics
	ci := resp.Stats.BootstrapMeanCI
	perm := resp.Stats.PermutationMeanGtZero

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Symbol:\t%s\t\n", resp.Symbol)
	fmt.Fprintf(w, "Bars:\t%d\t\n", len(resp.Equity))
	fmt.Fprintf(w, "Final equity:\t%.2f\t\n", final)
	fmt.Fprintf(w, "Trades:\t%d\t\n", m.Trades)
	fmt.Fprintf(w, "Sharpe:\t%s\t\n", opt(m.Sharpe))
	fmt.Fprintf(w, "Sortino:\t%s\t\n", opt(m.Sortino))
	fmt.Fprintf(w, "Max drawdown %%:\t%s\t\n", opt(m.MaxDrawdownPct))
	fmt.Fprintf(w, "Profit factor:\t%s\t\n", opt(m.ProfitFactor))
	fmt.Fprintf(w, "Win rate:\t%s\t\n", opt(m.WinRate))
	fmt.Fprintf(w, "Mean bar PnL (95%% CI):\t%.4f [%.4f, %.4f]\t\n", ci.Mean, ci.Lo, ci.Hi)
	fmt.Fprintf(w, "P(mean <= 0):\t%.4f\t\n", perm.PValue)
	w.Flush()
}

func printSweep(out io.Writer, resp *backtest.SweepResponse) {
	if len(resp.Top) == 0 {
		fmt.Fprintln(out, "No rows.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tLOOKBACK\tFEE BPS\tSLIP BPS\tSCORE\tTRADES\tFINAL EQUITY\t")
	fmt.Fprintln(w, "----\t--------\t-------\t--------\t-----\t------\t------------\t")
	for i, row := range resp.Top {
		fmt.Fprintf(w, "%d\t%.0f\t%g\t%g\t%s\t%d\t%s\t\n",
			i+1,
			row.Params[backtest.ParamLookback],
			row.Params[backtest.ParamFeeBps],
			row.Params[backtest.ParamSlippageBps],
			opt(row.Score), row.Trades, opt(row.FinalEquity))
	}
	w.Flush()
}

func printWalkForward(out io.Writer, resp *backtest.WalkForwardResponse) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHUNK\tBARS\tLOOKBACK\tTRADES\tSHARPE\tMAX DD %\tWIN RATE\t")
	fmt.Fprintln(w, "-----\t----\t--------\t------\t------\t--------\t--------\t")
	for i, chunk := range resp.Chunks {
		var m performance.Metrics
		if i < len(resp.ChunkMetrics) {
			m = resp.ChunkMetrics[i].Metrics
		}
		lookback := "-"
		if chunk.Lookback > 0 {
			lookback = strconv.Itoa(chunk.Lookback)
		}
		fmt.Fprintf(w, "%d\t[%d,%d)\t%s\t%d\t%s\t%s\t%s\t\n",
			i, chunk.Start, chunk.End, lookback, m.Trades, opt(m.Sharpe), opt(m.MaxDrawdownPct), opt(m.WinRate))
	}
	w.Flush()
}
