package automation

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/experiment"
	"github.com/san-kum/batsim/internal/sim"
)

// Scenario is a scripted list of runs.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Runs        []ScenarioRun `yaml:"runs"`
}

// ScenarioRun is one model driven through one experiment. Params holds
// overrides keyed by "domain.key". A relative Experiment path is resolved
// against the scenario file.
type ScenarioRun struct {
	Model      string                  `yaml:"model"`
	Preset     string                  `yaml:"preset"`
	ParamsFile string                  `yaml:"params_file"`
	Params     map[string]any          `yaml:"params"`
	Experiment string                  `yaml:"experiment"`
	Steps      []experiment.StepConfig `yaml:"steps"`
}

// RunResult is the outcome of one scenario run or sweep point.
type RunResult struct {
	Label    string
	Params   config.Params
	Cycle    *sim.CycleSolution
	Success  bool
	Statuses []sim.Status
	Metrics  map[string]float64
	Err      error
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfig, path, err)
	}
	if len(scenario.Runs) == 0 {
		return nil, fmt.Errorf("%w: scenario %s has no runs", dynamo.ErrConfig, path)
	}

	dir := filepath.Dir(path)
	for i := range scenario.Runs {
		r := &scenario.Runs[i]
		if r.Experiment != "" && !filepath.IsAbs(r.Experiment) {
			r.Experiment = filepath.Join(dir, r.Experiment)
		}
		if r.ParamsFile != "" && !filepath.IsAbs(r.ParamsFile) {
			r.ParamsFile = filepath.Join(dir, r.ParamsFile)
		}
	}
	return &scenario, nil
}

// Runner executes runs against a model registry.
type Runner struct {
	Registry *experiment.Registry
	Log      logrus.FieldLogger
	// Options are passed to every simulation.
	Options []sim.Option
}

func NewRunner(registry *experiment.Registry, log logrus.FieldLogger) *Runner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{Registry: registry, Log: log}
}

// RunScenario executes every run of the scenario in order. A failing run is
// recorded in its result and does not stop the scenario; configuration
// errors do.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]RunResult, error) {
	results := make([]RunResult, 0, len(scenario.Runs))

	for i, run := range scenario.Runs {
		r.Log.WithFields(logrus.Fields{"run": i + 1, "of": len(scenario.Runs), "model": run.Model}).Info("running scenario step")

		params, err := run.resolveParams()
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}
		exp, err := run.experiment()
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}

		res := r.Run(ctx, run.Model, params, exp)
		res.Label = fmt.Sprintf("%s/%d", scenario.Name, i+1)
		results = append(results, res)

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}

	return results, nil
}

func (run ScenarioRun) resolveParams() (config.Params, error) {
	p, err := resolveBase(run.Model, run.Preset, run.ParamsFile)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(run.Params))
	for k := range run.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := p.Set(k, run.Params[k]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func resolveBase(model, preset, file string) (config.Params, error) {
	cfg := config.Config{Model: model, Preset: preset, Params: file}
	if cfg.Model == "" {
		cfg.Model = config.DefaultModel
	}
	if cfg.Preset == "" {
		cfg.Preset = config.DefaultPreset
	}
	return cfg.ResolveParams()
}

func (run ScenarioRun) experiment() (*experiment.Experiment, error) {
	if run.Experiment != "" {
		return experiment.Load(run.Experiment)
	}
	return experiment.FromConfig(experiment.Config{Steps: run.Steps})
}

// Run builds the model and drives it through exp. Errors are reported in
// the result.
func (r *Runner) Run(ctx context.Context, model string, params config.Params, exp *experiment.Experiment) RunResult {
	res := RunResult{Label: model, Params: params}
	if model == "" {
		model = config.DefaultModel
	}

	m, err := r.Registry.NewModel(model, params)
	if err != nil {
		res.Err = err
		return res
	}
	s, err := sim.New(m, r.Options...)
	if err != nil {
		res.Err = err
		return res
	}
	for _, metric := range r.Registry.DefaultMetrics() {
		s.AddMetric(metric)
	}

	start := time.Now()
	cycle, err := s.Run(ctx, exp.Steps(), exp.RunOptions())
	res.Cycle = cycle
	res.Err = err
	if cycle != nil {
		res.Success = cycle.Success() && err == nil
		res.Statuses = cycle.Statuses()
		res.Metrics = cycle.Metrics
	}
	r.Log.WithFields(logrus.Fields{
		"model":   model,
		"success": res.Success,
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("run finished")
	return res
}

// Axis is one swept parameter.
type Axis struct {
	Path   string
	Values []float64
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// ParseAxis reads "domain.key=lo:hi:n" or "domain.key=v1,v2,...".
func ParseAxis(s string) (Axis, error) {
	path, spec, ok := strings.Cut(s, "=")
	if !ok || strings.Count(path, ".") != 1 {
		return Axis{}, fmt.Errorf("%w: axis %q is not domain.key=values", dynamo.ErrConfig, s)
	}
	ax := Axis{Path: strings.TrimSpace(path)}

	if parts := strings.Split(spec, ":"); len(parts) == 3 {
		lo, err1 := cast.ToFloat64E(strings.TrimSpace(parts[0]))
		hi, err2 := cast.ToFloat64E(strings.TrimSpace(parts[1]))
		n, err3 := cast.ToIntE(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil || n < 1 {
			return Axis{}, fmt.Errorf("%w: axis %q: bad range", dynamo.ErrConfig, s)
		}
		ax.Values = Linspace(lo, hi, n)
		return ax, nil
	}

	for _, f := range strings.Split(spec, ",") {
		v, err := cast.ToFloat64E(strings.TrimSpace(f))
		if err != nil {
			return Axis{}, fmt.Errorf("%w: axis %q: %v", dynamo.ErrConfig, s, err)
		}
		ax.Values = append(ax.Values, v)
	}
	return ax, nil
}

// ParameterSweep runs one experiment over the cartesian product of its
// axes. A nil Base uses the default preset of Model.
type ParameterSweep struct {
	Model      string
	Base       config.Params
	Axes       []Axis
	Experiment *experiment.Experiment
	// Workers > 1 runs points in parallel.
	Workers int
}

// Points returns every combination of axis values, last axis fastest.
func (sw *ParameterSweep) Points() []map[string]float64 {
	points := []map[string]float64{{}}
	for _, ax := range sw.Axes {
		next := make([]map[string]float64, 0, len(points)*len(ax.Values))
		for _, p := range points {
			for _, v := range ax.Values {
				q := make(map[string]float64, len(p)+1)
				for k, pv := range p {
					q[k] = pv
				}
				q[ax.Path] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

func label(point map[string]float64) string {
	keys := make([]string, 0, len(point))
	for k := range point {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, point[k])
	}
	return strings.Join(parts, ",")
}

// RunSweep executes every sweep point. Results are in Points order.
func (r *Runner) RunSweep(ctx context.Context, sw *ParameterSweep) ([]RunResult, error) {
	if sw.Experiment == nil || sw.Experiment.Len() == 0 {
		return nil, fmt.Errorf("%w: sweep has no experiment", dynamo.ErrConfig)
	}
	for _, ax := range sw.Axes {
		if len(ax.Values) == 0 {
			return nil, fmt.Errorf("%w: axis %s has no values", dynamo.ErrConfig, ax.Path)
		}
	}

	if sw.Base == nil {
		base, err := resolveBase(sw.Model, "", "")
		if err != nil {
			return nil, err
		}
		sw.Base = base
	}

	points := sw.Points()
	results := make([]RunResult, len(points))

	sweepChunk := func(start, end int) {
		// Each chunk rebuilds the experiment so targets are not shared
		// between goroutines.
		exp, err := rebuild(sw.Experiment)
		for i := start; i < end; i++ {
			if err == nil {
				results[i] = r.runPoint(ctx, sw, exp, points[i])
			} else {
				results[i] = RunResult{Label: label(points[i]), Err: err}
			}
			r.Log.WithFields(logrus.Fields{"point": i + 1, "of": len(points), "params": results[i].Label}).Info("sweep point done")
		}
	}

	if sw.Workers > 1 {
		dynamo.ParallelFor(len(points), int(math.Ceil(float64(len(points))/float64(sw.Workers))), sweepChunk)
	} else {
		sweepChunk(0, len(points))
	}
	return results, ctx.Err()
}

func (r *Runner) runPoint(ctx context.Context, sw *ParameterSweep, exp *experiment.Experiment, point map[string]float64) RunResult {
	p := sw.Base.Clone()
	for k, v := range point {
		if err := p.Set(k, v); err != nil {
			return RunResult{Label: label(point), Err: err}
		}
	}
	res := r.Run(ctx, sw.Model, p, exp)
	res.Label = label(point)
	return res
}

func rebuild(e *experiment.Experiment) (*experiment.Experiment, error) {
	out := experiment.New()
	out.Name = e.Name
	out.SetRunOptions(e.RunOptions())
	for _, sc := range e.Configs() {
		if err := out.Add(sc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MonteCarloConfig perturbs parameters by a uniform relative amount.
type MonteCarloConfig struct {
	Model      string
	Base       config.Params
	Paths      []string
	Spread     float64
	NumTrials  int
	Experiment *experiment.Experiment
	Seed       int64
}

// MonteCarloResult is one trial.
type MonteCarloResult struct {
	TrialID int
	Values  map[string]float64
	RunResult
}

// RunMonteCarlo executes trials with every path scaled by a factor drawn
// from [1-Spread, 1+Spread].
func (r *Runner) RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig) ([]MonteCarloResult, error) {
	if cfg.Spread < 0 || cfg.Spread >= 1 {
		return nil, fmt.Errorf("%w: spread must be in [0, 1), got %g", dynamo.ErrConfig, cfg.Spread)
	}
	if cfg.Experiment == nil || cfg.Experiment.Len() == 0 {
		return nil, fmt.Errorf("%w: monte carlo has no experiment", dynamo.ErrConfig)
	}
	if cfg.Base == nil {
		base, err := resolveBase(cfg.Model, "", "")
		if err != nil {
			return nil, err
		}
		cfg.Base = base
	}

	nominal := make(map[string]float64, len(cfg.Paths))
	for _, path := range cfg.Paths {
		v, ok := cfg.Base.Get(path)
		if !ok {
			return nil, fmt.Errorf("%w: %s", dynamo.ErrMissingParam, path)
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a number", dynamo.ErrConfig, path)
		}
		nominal[path] = f
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	results := make([]MonteCarloResult, 0, cfg.NumTrials)
	for trial := 0; trial < cfg.NumTrials; trial++ {
		values := make(map[string]float64, len(cfg.Paths))
		for _, path := range cfg.Paths {
			values[path] = nominal[path] * (1 + (rng.Float64()-0.5)*2*cfg.Spread)
		}

		sw := &ParameterSweep{Model: cfg.Model, Base: cfg.Base}
		res := r.runPoint(ctx, sw, cfg.Experiment, values)
		results = append(results, MonteCarloResult{TrialID: trial, Values: values, RunResult: res})

		if (trial+1)%10 == 0 {
			r.Log.Infof("monte carlo: %d/%d trials complete", trial+1, cfg.NumTrials)
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}

	return results, nil
}

// MonteCarloStats counts trials that completed every step.
func MonteCarloStats(results []MonteCarloResult) (succeeded int, failed int) {
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return
}
