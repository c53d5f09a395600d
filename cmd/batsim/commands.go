package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/san-kum/batsim/internal/automation"
	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/experiment"
	"github.com/san-kum/batsim/internal/integrators"
	"github.com/san-kum/batsim/internal/materials"
	"github.com/san-kum/batsim/internal/metrics"
	"github.com/san-kum/batsim/internal/optim"
	"github.com/san-kum/batsim/internal/sim"
	"github.com/san-kum/batsim/internal/storage"
	"github.com/san-kum/batsim/internal/tui"
	"github.com/san-kum/batsim/internal/viz"
)

func modelName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Model
}

// resolveParams applies --preset, --params and --set on top of the config.
func resolveParams(model string) (config.Params, error) {
	c := *cfg
	c.Model = model
	if preset != "" {
		c.Preset = preset
	}
	if paramsFile != "" {
		c.Params = paramsFile
	}
	p, err := c.ResolveParams()
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		path, raw, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("override %q is not domain.key=value", o)
		}
		var v any = strings.TrimSpace(raw)
		if f, err := cast.ToFloat64E(v); err == nil {
			v = f
		}
		if err := p.Set(strings.TrimSpace(path), v); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func solverOptions() []sim.Option {
	o := integrators.DefaultOptions()
	if cfg.Solver.RTol > 0 {
		o.RTol = cfg.Solver.RTol
	}
	if cfg.Solver.ATol > 0 {
		o.ATol = cfg.Solver.ATol
	}
	if cfg.Solver.MaxStep > 0 {
		o.MaxStep = cfg.Solver.MaxStep
	}
	if cfg.Solver.LinearSolver != "" {
		o.LinearSolver = cfg.Solver.LinearSolver
	}
	if rtol > 0 {
		o.RTol = rtol
	}
	if atol > 0 {
		o.ATol = atol
	}
	if linear != "" {
		o.LinearSolver = linear
	}
	n := cfg.Solver.Homotopy
	if homotopy >= 0 {
		n = homotopy
	}
	return []sim.Option{sim.WithOptions(o), sim.WithHomotopy(n), sim.WithLogger(log)}
}

// loadExperiment reads --experiment or builds a single step from the
// step flags.
func loadExperiment() (*experiment.Experiment, error) {
	if expFile != "" {
		return experiment.Load(expFile)
	}
	ls := make([]sim.Limit, 0, len(limits))
	for _, s := range limits {
		l, err := experiment.ParseLimit(s)
		if err != nil {
			return nil, err
		}
		ls = append(ls, l)
	}
	e, err := experiment.Single(mode, value, sim.TSpan{Max: duration, Dt: dt}, ls...)
	if err != nil {
		return nil, err
	}
	e.Name = mode
	return e, nil
}

func describeSteps(e *experiment.Experiment) []string {
	configs := e.Configs()
	out := make([]string, len(configs))
	for i, c := range configs {
		out[i] = c.String()
	}
	return out
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	model := modelName(args)
	params, err := resolveParams(model)
	if err != nil {
		return err
	}
	exp, err := loadExperiment()
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	m, err := registry.NewModel(model, params)
	if err != nil {
		return err
	}
	s, err := sim.New(m, solverOptions()...)
	if err != nil {
		return err
	}
	for _, metric := range registry.DefaultMetrics() {
		s.AddMetric(metric)
	}

	ctx, stop := signalContext()
	defer stop()

	steps := describeSteps(exp)
	log.WithFields(logrus.Fields{"model": model, "size": m.Size(), "steps": len(steps)}).Info("running experiment")
	start := time.Now()

	var cycle *sim.CycleSolution
	var runErr error
	if live {
		cycle, runErr = tui.Run(ctx, fmt.Sprintf("%s  %s", model, exp.Name), steps,
			func(ctx context.Context, obs sim.Observer) (*sim.CycleSolution, error) {
				s.AddObserver(obs)
				return s.Run(ctx, exp.Steps(), exp.RunOptions())
			})
	} else {
		cycle, runErr = s.Run(ctx, exp.Steps(), exp.RunOptions())
	}
	if cycle == nil {
		return runErr
	}
	if runErr != nil {
		log.WithError(runErr).Warn("experiment stopped early")
	}
	checkBalance(m, cycle)

	info := storage.RunInfo{
		Model:      model,
		Preset:     preset,
		Params:     paramsFile,
		Experiment: exp.Name,
		Steps:      steps,
	}
	meta := storage.Describe(info, cycle)
	if !noSave {
		st := storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		if meta.ID, err = st.Save(info, cycle); err != nil {
			return err
		}
	}

	fmt.Println(viz.Summary(&meta))
	fmt.Printf("completed in %v\n", time.Since(start).Round(time.Millisecond))

	if observable != "" {
		chart, err := viz.PlotSeries(cycle, observable, 80, 12)
		if err != nil {
			return err
		}
		fmt.Println(chart)
		if pngPath != "" {
			if err := viz.SaveChart(pngPath, model, cycle, sim.TimeS, observable); err != nil {
				return err
			}
			fmt.Printf("chart written to %s\n", pngPath)
		}
	}
	return runErr
}

// checkBalance logs how well each step conserves charge between the
// electrodes and the terminal.
func checkBalance(m sim.Model, cycle *sim.CycleSolution) {
	poster, ok := m.(sim.Poster)
	if !ok {
		return
	}
	for _, sol := range cycle.Steps {
		if !sol.Status.Done() {
			continue
		}
		b, err := metrics.ChargeBalance(poster, sol, 1e-6)
		entry := log.WithFields(logrus.Fields{"step": sol.Index, "balance": b})
		switch {
		case err != nil:
			entry.WithError(err).Warn("charge balance unavailable")
		case b > 1e-2:
			entry.Warn("reaction current does not match the terminal current")
		default:
			entry.Debug("charge balance")
		}
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	model := modelName(args)
	if len(axes) == 0 {
		return fmt.Errorf("sweep needs at least one --axis")
	}
	base, err := resolveParams(model)
	if err != nil {
		return err
	}
	exp, err := loadExperiment()
	if err != nil {
		return err
	}

	sw := &automation.ParameterSweep{Model: model, Base: base, Experiment: exp, Workers: workers}
	for _, a := range axes {
		ax, err := automation.ParseAxis(a)
		if err != nil {
			return err
		}
		sw.Axes = append(sw.Axes, ax)
	}

	runner := automation.NewRunner(experiment.NewRegistry(), log)
	runner.Options = solverOptions()

	ctx, stop := signalContext()
	defer stop()

	results, err := runner.RunSweep(ctx, sw)
	if err != nil {
		return err
	}
	if err := printResults(results); err != nil {
		return err
	}
	if best == "" {
		return nil
	}
	r, v, err := optim.NewGridSearch(best, maximize).Best(results)
	if err != nil {
		return err
	}
	fmt.Printf("\nbest %s = %.6g at %s\n", best, v, r.Label)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	runner := automation.NewRunner(experiment.NewRegistry(), log)
	runner.Options = solverOptions()

	ctx, stop := signalContext()
	defer stop()

	results, err := runner.RunScenario(ctx, scenario)
	if perr := printResults(results); perr != nil {
		return perr
	}
	return err
}

var resultMetrics = []string{"charge_throughput_Ah", "energy_Wh", "voltage_min_V", "voltage_max_V"}

func printResults(results []automation.RunResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSUCCESS\t"+strings.Join(resultMetrics, "\t")+"\tERROR")
	for _, r := range results {
		row := []string{r.Label, fmt.Sprint(r.Success)}
		for _, name := range resultMetrics {
			if v, ok := r.Metrics[name]; ok {
				row = append(row, fmt.Sprintf("%.5g", v))
			} else {
				row = append(row, "-")
			}
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintln(w, strings.Join(append(row, errText), "\t"))
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(cfg.DataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tPRESET\tTIME\tSTEPS\tSUCCESS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\n",
			run.ID,
			run.Model,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			len(run.Steps),
			run.Success,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(cfg.DataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.Summary(meta))

	if observable == "" {
		return nil
	}
	sol, err := st.LoadSolution(args[0])
	if err != nil {
		return err
	}
	chart, err := viz.PlotSeries(sol, observable, 80, 12)
	if err != nil {
		return err
	}
	fmt.Println(chart)
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	names := args[1:]
	if len(names) == 0 {
		names = []string{sim.VoltageV}
	}

	st := storage.New(cfg.DataDir)
	sol, err := st.LoadSolution(runID)
	if err != nil {
		return err
	}
	if len(sol.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	if pngPath != "" {
		if err := viz.SaveChart(pngPath, runID, sol, sim.TimeS, names...); err != nil {
			return err
		}
		fmt.Printf("chart written to %s\n", pngPath)
		return nil
	}

	for _, name := range names {
		chart, err := viz.PlotSeries(sol, name, 80, 10)
		if err != nil {
			return err
		}
		fmt.Println(chart)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(cfg.DataDir)
	if outPath == "" {
		return st.Export(args[0], os.Stdout)
	}
	if err := st.ExportFile(args[0], outPath); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outPath)
	return nil
}

func showBandwidth(cmd *cobra.Command, args []string) error {
	model := modelName(args)
	params, err := resolveParams(model)
	if err != nil {
		return err
	}
	m, err := experiment.NewRegistry().NewModel(model, params)
	if err != nil {
		return err
	}

	rest := &sim.Step{
		BC:    sim.Current{Value: sim.Constant(0), Units: sim.Amps},
		TSpan: sim.TSpan{Max: 1, Dt: 1},
	}
	r, err := sim.ProbeBandwidth(m, rest)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "model\t%s\n", r.Model)
	fmt.Fprintf(w, "unknowns\t%d\n", r.Size)
	fmt.Fprintf(w, "declared\t(%d, %d)\n", r.LBand, r.UBand)
	fmt.Fprintf(w, "probed\t(%d, %d)\n", r.ProbedL, r.ProbedU)
	fmt.Fprintf(w, "nonzeros\t%d\n", r.NonZeros)
	fmt.Fprintf(w, "sound\t%v\n", r.Sound())
	if err := w.Flush(); err != nil {
		return err
	}

	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := storage.WritePattern(f, r.Pattern); err != nil {
			return err
		}
	}
	if !r.Sound() {
		return fmt.Errorf("probed bandwidth (%d, %d) exceeds declared (%d, %d)", r.ProbedL, r.ProbedU, r.LBand, r.UBand)
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	model := modelName(args)
	presets := config.ListPresets(model)
	if len(presets) == 0 {
		fmt.Printf("no presets for model: %s\n", model)
		return nil
	}
	fmt.Printf("presets for %s:\n", model)
	for _, p := range presets {
		fmt.Printf("  %s\n", p)
	}
	fmt.Printf("electrode materials: %s\n", strings.Join(materials.ListElectrodes(), ", "))
	fmt.Printf("electrolyte materials: %s\n", strings.Join(materials.ListElectrolytes(), ", "))
	return nil
}

func showParams(cmd *cobra.Command, args []string) error {
	p, err := resolveParams(modelName(args))
	if err != nil {
		return err
	}
	_, err = pretty.Println(p)
	return err
}
