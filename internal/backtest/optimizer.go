package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"apexsim/internal/models"
)

// StrategyFactory builds a strategy instance from one parameter set.
// Each worker gets its own instance so strategies may keep state.
type StrategyFactory func(params map[string]float64) Strategy

// OptimizerResult pairs one parameter set with the backtest it produced.
type OptimizerResult struct {
	Params map[string]float64
	Result *Result
	Err    error
}

// Optimizer runs a backtest for every combination of the configured
// parameter ranges and ranks the outcomes. Runs execute concurrently
// on a fixed worker pool.
type Optimizer struct {
	config  Config
	factory StrategyFactory
	workers int

	params map[string][]float64

	runsTotal atomic.Uint64
	runsDone  atomic.Uint64
}

// NewOptimizer creates an optimizer. If workers is 0 it defaults to
// runtime.NumCPU().
func NewOptimizer(config Config, factory StrategyFactory, workers int) *Optimizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Optimizer{
		config:  config,
		factory: factory,
		workers: workers,
		params:  make(map[string][]float64),
	}
}

// AddParam registers the candidate values for one parameter.
func (o *Optimizer) AddParam(name string, values []float64) {
	o.params[name] = values
}

// AddParamRange registers an inclusive arithmetic range for one parameter.
func (o *Optimizer) AddParamRange(name string, from, to, step float64) error {
	if step <= 0 {
		return fmt.Errorf("param %s: step must be positive", name)
	}
	if to < from {
		return fmt.Errorf("param %s: empty range [%v, %v]", name, from, to)
	}
	var values []float64
	for v := from; v <= to+step/2; v += step {
		values = append(values, v)
	}
	o.params[name] = values
	return nil
}

// Progress reports completed and total run counts.
func (o *Optimizer) Progress() (done, total uint64) {
	return o.runsDone.Load(), o.runsTotal.Load()
}

// Run backtests every parameter combination over the given candles and
// returns the results sorted by Sharpe ratio, best first. Cancelling the
// context stops scheduling new runs; runs already started finish.
func (o *Optimizer) Run(ctx context.Context, symbol string, candles []models.Candle) ([]OptimizerResult, error) {
	combos := o.combinations()
	if len(combos) == 0 {
		return nil, fmt.Errorf("no parameters registered")
	}
	o.runsTotal.Store(uint64(len(combos)))
	o.runsDone.Store(0)

	tasks := make(chan map[string]float64)
	results := make([]OptimizerResult, 0, len(combos))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for params := range tasks {
				res := o.runOne(symbol, candles, params)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				o.runsDone.Add(1)
			}
		}()
	}

	var cancelled bool
dispatch:
	for _, params := range combos {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case tasks <- params:
		}
	}
	close(tasks)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return sharpeOf(results[i]) > sharpeOf(results[j])
	})
	if cancelled {
		return results, ctx.Err()
	}
	return results, nil
}

func (o *Optimizer) runOne(symbol string, candles []models.Candle, params map[string]float64) OptimizerResult {
	out := OptimizerResult{Params: params}

	strategy := o.factory(params)
	if strategy == nil {
		out.Err = fmt.Errorf("factory returned no strategy for %v", params)
		return out
	}

	engine := NewEngine(o.config)
	result, err := engine.Run(symbol, candles, strategy)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = result
	return out
}

// combinations expands the registered parameter ranges into the full
// cartesian product. Parameter names are iterated in sorted order so
// the expansion is deterministic.
func (o *Optimizer) combinations() []map[string]float64 {
	names := make([]string, 0, len(o.params))
	for name := range o.params {
		if len(o.params[name]) == 0 {
			return nil
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}

	combos := []map[string]float64{{}}
	for _, name := range names {
		next := make([]map[string]float64, 0, len(combos)*len(o.params[name]))
		for _, base := range combos {
			for _, value := range o.params[name] {
				combo := make(map[string]float64, len(base)+1)
				for k, v := range base {
					combo[k] = v
				}
				combo[name] = value
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}

func sharpeOf(r OptimizerResult) float64 {
	if r.Err != nil || r.Result == nil {
		return -1e18
	}
	return r.Result.Summary.SharpeRatio
}
